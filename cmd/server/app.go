package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/quill-api/internal/config"
	"github.com/phrazzld/quill-api/internal/enrichment"
	"github.com/phrazzld/quill-api/internal/events"
	"github.com/phrazzld/quill-api/internal/generation"
	"github.com/phrazzld/quill-api/internal/platform/gemini"
	"github.com/phrazzld/quill-api/internal/platform/openai"
	"github.com/phrazzld/quill-api/internal/platform/postgres"
	"github.com/phrazzld/quill-api/internal/platform/redis"
	"github.com/phrazzld/quill-api/internal/service"
	"github.com/phrazzld/quill-api/internal/service/auth"
	"github.com/phrazzld/quill-api/internal/store"
	"github.com/phrazzld/quill-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *goredis.Client

	articleStore  store.ArticleStore
	categoryStore store.CategoryStore

	jwtService      auth.JWTService
	articleService  service.ArticleService
	categoryService service.CategoryService

	eventEmitter *events.InMemoryEventEmitter

	// taskRunner is nil in inline enrichment mode.
	taskRunner *task.TaskRunner
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.articleStore = postgres.NewPostgresArticleStore(db, logger)
	app.categoryStore = postgres.NewPostgresCategoryStore(db, logger)

	worker, err := app.setupEnrichment(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	switch cfg.Enrichment.Mode {
	case config.ModeInline:
		app.eventEmitter.RegisterHandler(task.NewInlineEnrichmentHandler(
			worker,
			cfg.Enrichment.MaxAttempts,
			cfg.Enrichment.AttemptTimeout(),
			logger,
		))
	default:
		if err := app.setupTaskRunner(worker); err != nil {
			app.cleanup()
			return nil, err
		}
	}
	logger.Info("enrichment pipeline initialized",
		"mode", cfg.Enrichment.Mode,
		"max_attempts", cfg.Enrichment.MaxAttempts,
		"distributed_lock", app.redis != nil)

	app.articleService, err = service.NewArticleService(db, app.articleStore, app.categoryStore, app.eventEmitter, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create article service: %w", err)
	}
	app.categoryService, err = service.NewCategoryService(app.categoryStore, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create category service: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupEnrichment builds the generator, content client, lock and worker.
func (app *application) setupEnrichment(ctx context.Context) (*enrichment.Worker, error) {
	cfg := app.config

	generator, err := newGenerator(ctx, cfg.LLM, app.logger.With("component", "llm_generator"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}

	prompts, err := enrichment.LoadPrompts(cfg.LLM.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	content := enrichment.NewContentClient(generator, prompts, enrichment.ContentClientConfig{
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		CacheTTL:          time.Duration(cfg.LLM.CacheTTLMinutes) * time.Minute,
		SlugMaxLength:     cfg.Enrichment.SlugMaxLength,
		CallTimeout:       cfg.LLM.Timeout(),
	}, app.logger)

	var locker enrichment.ArticleLocker
	if cfg.Redis.Enabled() {
		app.redis, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = redis.NewArticleLock(app.redis, time.Duration(cfg.Enrichment.LockTTLSeconds)*time.Second, app.logger)
	}

	return enrichment.NewWorker(app.articleStore, content, locker, enrichment.WorkerConfig{
		MaxSlugConflicts: cfg.Enrichment.MaxSlugConflicts,
		RetryBaseDelay:   cfg.Enrichment.RetryBaseDelay(),
		RetryMaxDelay:    cfg.Enrichment.RetryMaxDelay(),
	}, app.logger), nil
}

// newGenerator selects the generative-text backend for cfg.Provider.
func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Generator, error) {
	switch cfg.Provider {
	case config.ProviderGeminiSDK:
		g, err := gemini.NewSDKGenerator(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ProviderOpenAI:
		g, err := openai.NewGenerator(cfg, cfg.EndpointURL, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ProviderGeminiREST:
		g, err := gemini.NewRESTGenerator(cfg, &http.Client{Timeout: cfg.Timeout()}, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

// setupTaskRunner wires deferred enrichment: events become persisted tasks
// executed by the runner's worker pool, one task per attempt.
func (app *application) setupTaskRunner(worker *enrichment.Worker) error {
	cfg := app.config

	registry := task.NewRegistry()
	factory := task.NewArticleEnrichmentTaskFactory(
		worker,
		cfg.Enrichment.MaxAttempts,
		cfg.Enrichment.AttemptTimeout(),
		app.logger,
	)
	factory.Register(registry)

	taskStore := postgres.NewPostgresTaskStore(app.db, registry, app.logger)
	app.taskRunner = task.NewTaskRunner(taskStore, task.TaskRunnerConfig{
		WorkerCount:            cfg.Task.WorkerCount,
		QueueSize:              cfg.Task.QueueSize,
		StuckTaskAge:           time.Duration(cfg.Task.StuckTaskAgeMinutes) * time.Minute,
		StuckTaskCheckInterval: time.Duration(cfg.Task.StuckCheckIntervalMinutes) * time.Minute,
	}, app.logger)

	if err := app.taskRunner.Start(); err != nil {
		app.taskRunner = nil
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	app.eventEmitter.RegisterHandler(task.NewTaskFactoryEventHandler(factory, app.taskRunner, app.logger))
	return nil
}

// Run serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
