package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/enrichment"
)

// Common errors
var (
	ErrNilRunner       = errors.New("attempt runner cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")
	ErrEmptyArticleID  = errors.New("article ID cannot be empty")
	ErrInvalidPayload  = errors.New("invalid task payload")
	ErrEnrichmentEnded = errors.New("enrichment ended without a generated result")
)

// AttemptRunner runs single enrichment attempts. *enrichment.Worker satisfies it.
type AttemptRunner interface {
	RunAttempt(ctx context.Context, t enrichment.Task) enrichment.Outcome
	RetryDelay(next enrichment.Task) time.Duration
}

// articleEnrichmentPayload is the serialized form stored in the tasks table.
type articleEnrichmentPayload struct {
	ArticleID   uuid.UUID `json:"article_id"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	TimeoutMS   int64     `json:"timeout_ms"`
}

// ArticleEnrichmentTask runs one enrichment attempt as a persisted task.
// A failed attempt with budget left continues as a new task carrying the
// next attempt number.
type ArticleEnrichmentTask struct {
	id      uuid.UUID
	attempt enrichment.Task
	runner  AttemptRunner
	base    *slog.Logger
	logger  *slog.Logger

	mu     sync.Mutex
	status TaskStatus
}

// NewArticleEnrichmentTask creates a task for one attempt.
func NewArticleEnrichmentTask(
	id uuid.UUID,
	attempt enrichment.Task,
	runner AttemptRunner,
	logger *slog.Logger,
) (*ArticleEnrichmentTask, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if attempt.ArticleID == uuid.Nil {
		return nil, ErrEmptyArticleID
	}

	return &ArticleEnrichmentTask{
		id:      id,
		attempt: attempt,
		runner:  runner,
		base:    logger,
		logger: logger.With(
			"task_type", TaskTypeArticleEnrichment,
			"article_id", attempt.ArticleID,
			"attempt", attempt.Attempt,
		),
		status: TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *ArticleEnrichmentTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *ArticleEnrichmentTask) Type() string {
	return TaskTypeArticleEnrichment
}

// Attempt returns the enrichment attempt this task carries.
func (t *ArticleEnrichmentTask) Attempt() enrichment.Task {
	return t.attempt
}

// Payload returns the task data as a byte slice
func (t *ArticleEnrichmentTask) Payload() []byte {
	data, err := json.Marshal(articleEnrichmentPayload{
		ArticleID:   t.attempt.ArticleID,
		Attempt:     t.attempt.Attempt,
		MaxAttempts: t.attempt.MaxAttempts,
		TimeoutMS:   t.attempt.Timeout.Milliseconds(),
	})
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *ArticleEnrichmentTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *ArticleEnrichmentTask) setStatus(s TaskStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Execute runs the attempt. It returns nil on success, a *RetryError when
// another attempt should follow, and a plain error once the task has ended
// in the terminal failure state.
func (t *ArticleEnrichmentTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)
	t.logger.Info("starting article enrichment attempt")

	out := t.runner.RunAttempt(ctx, t.attempt)

	switch out.State {
	case enrichment.StateSucceeded:
		t.setStatus(TaskStatusCompleted)
		return nil

	case enrichment.StateRunning:
		t.setStatus(TaskStatusFailed)
		next, err := NewArticleEnrichmentTask(uuid.New(), *out.Next, t.runner, t.base)
		if err != nil {
			return fmt.Errorf("failed to build follow-up task: %w", err)
		}
		return &RetryError{Next: next, After: t.runner.RetryDelay(*out.Next), Err: out.Err}

	default:
		t.setStatus(TaskStatusFailed)
		if out.Err != nil {
			return fmt.Errorf("%w: %w", ErrEnrichmentEnded, out.Err)
		}
		return ErrEnrichmentEnded
	}
}

// ArticleEnrichmentTaskFactory creates and rehydrates enrichment tasks.
type ArticleEnrichmentTaskFactory struct {
	runner      AttemptRunner
	maxAttempts int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewArticleEnrichmentTaskFactory creates a factory. Non-positive limits take
// the enrichment defaults.
func NewArticleEnrichmentTaskFactory(
	runner AttemptRunner,
	maxAttempts int,
	timeout time.Duration,
	logger *slog.Logger,
) *ArticleEnrichmentTaskFactory {
	return &ArticleEnrichmentTaskFactory{
		runner:      runner,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		logger:      logger.With("component", "article_enrichment_task_factory"),
	}
}

// CreateTask creates the first attempt for articleID.
func (f *ArticleEnrichmentTaskFactory) CreateTask(articleID uuid.UUID) (Task, error) {
	t, err := NewArticleEnrichmentTask(
		uuid.New(),
		enrichment.NewTask(articleID, f.maxAttempts, f.timeout),
		f.runner,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Decode rebuilds a stored task. It is registered with a Registry.
func (f *ArticleEnrichmentTaskFactory) Decode(id uuid.UUID, payload []byte) (Task, error) {
	var p articleEnrichmentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	attempt := enrichment.NewTask(p.ArticleID, p.MaxAttempts, time.Duration(p.TimeoutMS)*time.Millisecond)
	if p.Attempt > 1 {
		attempt.Attempt = p.Attempt
	}
	t, err := NewArticleEnrichmentTask(id, attempt, f.runner, f.logger)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Register installs the factory's decoder in r.
func (f *ArticleEnrichmentTaskFactory) Register(r *Registry) {
	r.Register(TaskTypeArticleEnrichment, f.Decode)
}
