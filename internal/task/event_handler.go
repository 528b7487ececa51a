package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/enrichment"
	"github.com/phrazzld/quill-api/internal/events"
)

// EnrichmentRequestPayload is the payload of an article_enrichment event.
type EnrichmentRequestPayload struct {
	ArticleID string `json:"article_id"`
}

// NewEnrichmentRequestEvent builds the event that asks for articleID to be enriched.
func NewEnrichmentRequestEvent(articleID uuid.UUID) (*events.TaskRequestEvent, error) {
	return events.NewTaskRequestEvent(TaskTypeArticleEnrichment, EnrichmentRequestPayload{
		ArticleID: articleID.String(),
	})
}

// TaskFactory creates the first task for an article.
type TaskFactory interface {
	CreateTask(articleID uuid.UUID) (Task, error)
}

// TaskSubmitter accepts tasks for background execution. *TaskRunner satisfies it.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler implements the events.EventHandler interface
// to handle enrichment events and delegate them to the task factory and runner.
type TaskFactoryEventHandler struct {
	taskFactory TaskFactory
	taskRunner  TaskSubmitter
	logger      *slog.Logger
}

// NewTaskFactoryEventHandler creates a new event handler that uses the given task factory
// to create tasks, and submits them to the provided task runner.
func NewTaskFactoryEventHandler(
	taskFactory TaskFactory,
	taskRunner TaskSubmitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		taskFactory: taskFactory,
		taskRunner:  taskRunner,
		logger:      logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent creates an enrichment task for the event's article and submits it.
func (h *TaskFactoryEventHandler) HandleEvent(
	ctx context.Context,
	event *events.TaskRequestEvent,
) error {
	articleID, ok, err := enrichmentTarget(event, h.logger)
	if !ok || err != nil {
		return err
	}

	task, err := h.taskFactory.CreateTask(articleID)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"article_id", articleID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.taskRunner.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", task.ID(),
			"article_id", articleID,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task created and submitted successfully",
		"task_id", task.ID(),
		"article_id", articleID,
		"event_id", event.ID)
	return nil
}

// Processor runs an enrichment task to completion. *enrichment.Worker satisfies it.
type Processor interface {
	Process(ctx context.Context, t enrichment.Task) enrichment.Outcome
}

// InlineEnrichmentHandler runs enrichment synchronously in the emitting
// goroutine instead of queueing it.
type InlineEnrichmentHandler struct {
	processor   Processor
	maxAttempts int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewInlineEnrichmentHandler creates an inline handler.
func NewInlineEnrichmentHandler(
	processor Processor,
	maxAttempts int,
	timeout time.Duration,
	logger *slog.Logger,
) *InlineEnrichmentHandler {
	return &InlineEnrichmentHandler{
		processor:   processor,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		logger:      logger.With("component", "inline_enrichment_handler"),
	}
}

// HandleEvent enriches the article before returning. The outcome is logged,
// never returned: enrichment must not fail the write that triggered it.
func (h *InlineEnrichmentHandler) HandleEvent(
	ctx context.Context,
	event *events.TaskRequestEvent,
) error {
	articleID, ok, err := enrichmentTarget(event, h.logger)
	if !ok || err != nil {
		return err
	}

	out := h.processor.Process(context.WithoutCancel(ctx),
		enrichment.NewTask(articleID, h.maxAttempts, h.timeout))

	h.logger.Info("inline enrichment finished",
		"article_id", articleID,
		"event_id", event.ID,
		"state", out.State,
		"slug", out.Slug)
	return nil
}

// enrichmentTarget extracts the article id from an enrichment event.
// ok is false for events of other types.
func enrichmentTarget(event *events.TaskRequestEvent, logger *slog.Logger) (uuid.UUID, bool, error) {
	if event.Type != TaskTypeArticleEnrichment {
		logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return uuid.Nil, false, nil
	}

	var payload EnrichmentRequestPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return uuid.Nil, true, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	articleID, err := uuid.Parse(payload.ArticleID)
	if err != nil {
		logger.Error("invalid article ID",
			"error", err,
			"article_id", payload.ArticleID,
			"event_id", event.ID)
		return uuid.Nil, true, fmt.Errorf("invalid article ID: %w", err)
	}
	return articleID, true, nil
}

var (
	_ events.EventHandler = (*TaskFactoryEventHandler)(nil)
	_ events.EventHandler = (*InlineEnrichmentHandler)(nil)
)
