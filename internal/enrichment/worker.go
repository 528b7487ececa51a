package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc/panics"

	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/redact"
	"github.com/phrazzld/quill-api/internal/store"
)

// Worker defaults.
const (
	DefaultMaxSlugConflicts = 3
	DefaultRetryBaseDelay   = time.Second
	DefaultRetryMaxDelay    = 30 * time.Second
)

// ArticleRepository is the persistence the worker needs.
type ArticleRepository interface {
	SlugChecker
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error)
	UpdateSlugAndSummary(ctx context.Context, id uuid.UUID, slug, summary string) error
}

// WorkerConfig holds the retry pacing and conflict budget.
type WorkerConfig struct {
	// MaxSlugConflicts bounds re-resolution when the write loses a slug race.
	MaxSlugConflicts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// Worker executes enrichment attempts.
type Worker struct {
	articles     ArticleRepository
	content      ContentGenerator
	resolver     *SlugResolver
	locker       ArticleLocker
	maxConflicts int
	baseDelay    time.Duration
	maxDelay     time.Duration
	logger       *slog.Logger
}

// NewWorker creates a Worker. A nil locker uses an in-process KeyedLocker.
func NewWorker(
	articles ArticleRepository,
	content ContentGenerator,
	locker ArticleLocker,
	cfg WorkerConfig,
	logger *slog.Logger,
) *Worker {
	if locker == nil {
		locker = NewKeyedLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSlugConflicts <= 0 {
		cfg.MaxSlugConflicts = DefaultMaxSlugConflicts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}

	return &Worker{
		articles:     articles,
		content:      content,
		resolver:     NewSlugResolver(articles),
		locker:       locker,
		maxConflicts: cfg.MaxSlugConflicts,
		baseDelay:    cfg.RetryBaseDelay,
		maxDelay:     cfg.RetryMaxDelay,
		logger:       logger.With("component", "enrichment_worker"),
	}
}

// RunAttempt executes one attempt of t.
//
// The outcome is StateSucceeded when the pair was written, StateRunning with
// Next set when a persistence failure leaves budget for another attempt, and
// StateFailedTerminal otherwise. A terminal failure for an existing article
// has already written the fallback pair.
func (w *Worker) RunAttempt(ctx context.Context, t Task) Outcome {
	log := w.logger.With(
		"article_id", t.ArticleID,
		"attempt", t.Attempt,
		"max_attempts", t.MaxAttempts,
	)

	var (
		out Outcome
		err error
	)
	var catcher panics.Catcher
	catcher.Try(func() {
		attemptCtx, cancel := context.WithTimeout(ctx, t.Timeout)
		defer cancel()
		out, err = w.attempt(attemptCtx, t, log)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		log.Error("enrichment attempt panicked", "panic", recovered.Value)
		return w.fail(ctx, t, recovered.AsError())
	}

	switch {
	case err == nil:
		log.Info("enrichment succeeded", "slug", out.Slug)
		return out
	case errors.Is(err, store.ErrArticleNotFound):
		log.Warn("article no longer exists, nothing to enrich")
		return Outcome{State: StateFailedTerminal, Err: err}
	case t.Final():
		return w.fail(ctx, t, err)
	}

	next := t.Next()
	log.Warn("enrichment attempt failed, another attempt remains",
		"error", redact.Error(err))
	return Outcome{State: StateRunning, Next: &next, Err: err}
}

// Process runs t inline until it reaches a terminal state, sleeping between
// attempts with capped exponential backoff.
func (w *Worker) Process(ctx context.Context, t Task) Outcome {
	remaining := t.MaxAttempts - t.Attempt
	if remaining < 0 {
		remaining = 0
	}
	backoff := retry.WithMaxRetries(uint64(remaining), w.backoff())

	current := t
	var out Outcome
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out = w.RunAttempt(ctx, current)
		if out.State == StateRunning {
			current = *out.Next
			return retry.RetryableError(out.Err)
		}
		return nil
	})

	if out.State == StateRunning {
		// Cancelled while waiting for the next attempt.
		return w.fail(ctx, current, errors.Join(out.Err, err))
	}
	return out
}

// RetryDelay is the wait before running next, for queue-driven retries.
func (w *Worker) RetryDelay(next Task) time.Duration {
	b := w.backoff()
	var d time.Duration
	for i := 1; i < next.Attempt; i++ {
		d, _ = b.Next()
	}
	return d
}

func (w *Worker) backoff() retry.Backoff {
	return retry.WithCappedDuration(w.maxDelay, retry.NewExponential(w.baseDelay))
}

func (w *Worker) attempt(ctx context.Context, t Task, log *slog.Logger) (Outcome, error) {
	release, err := w.locker.Lock(ctx, t.ArticleID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to lock article: %w", err)
	}
	defer release()

	article, err := w.articles.GetByID(ctx, t.ArticleID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load article: %w", err)
	}

	candidate := w.content.GenerateSlug(ctx, article.Title, article.Content)
	summary := w.content.GenerateSummary(ctx, article.Content)

	slug, err := w.persist(ctx, article.ID, candidate, summary, log)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{State: StateSucceeded, Slug: slug, Summary: summary}, nil
}

// persist resolves candidate and writes the pair, re-resolving when another
// writer claimed the slug between lookup and write.
func (w *Worker) persist(ctx context.Context, id uuid.UUID, candidate, summary string, log *slog.Logger) (string, error) {
	for conflicts := 0; ; conflicts++ {
		slug, err := w.resolver.Resolve(ctx, candidate, id)
		if err != nil {
			return "", err
		}

		err = w.articles.UpdateSlugAndSummary(ctx, id, slug, summary)
		if err == nil {
			return slug, nil
		}
		if !errors.Is(err, store.ErrSlugTaken) || conflicts >= w.maxConflicts {
			return "", fmt.Errorf("failed to write slug and summary: %w", err)
		}
		log.Warn("slug claimed by a concurrent writer, resolving again",
			"slug", slug,
			"conflicts", conflicts+1)
	}
}

// fail writes the deterministic fallback pair without consulting the
// generator and ends the task. It runs detached from ctx cancellation.
func (w *Worker) fail(ctx context.Context, t Task, cause error) Outcome {
	log := w.logger.With(
		"article_id", t.ArticleID,
		"attempt", t.Attempt,
		"max_attempts", t.MaxAttempts,
	)
	log.Error("enrichment failed, writing fallback slug and summary",
		"error", redact.Error(cause))

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.Timeout)
	defer cancel()

	release, err := w.locker.Lock(fctx, t.ArticleID)
	if err != nil {
		log.Error("failed to lock article for fallback write", "error", err)
		return Outcome{State: StateFailedTerminal, Err: errors.Join(cause, err)}
	}
	defer release()

	article, err := w.articles.GetByID(fctx, t.ArticleID)
	if err != nil {
		if errors.Is(err, store.ErrArticleNotFound) {
			log.Warn("article no longer exists, skipping fallback write")
		} else {
			log.Error("failed to load article for fallback write", "error", err)
		}
		return Outcome{State: StateFailedTerminal, Err: errors.Join(cause, err)}
	}

	summary := domain.FallbackSummary(article.Content)
	slug, err := w.persist(fctx, article.ID, domain.FallbackSlug(article.Title), summary, log)
	if err != nil {
		log.Error("fallback write failed", "error", redact.Error(err))
		return Outcome{State: StateFailedTerminal, Err: errors.Join(cause, err)}
	}

	log.Info("fallback slug and summary written", "slug", slug)
	return Outcome{State: StateFailedTerminal, Slug: slug, Summary: summary, Err: cause}
}
