package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	pool       *WorkerPool
	ctx        context.Context
	cancelFunc context.CancelFunc
	monitor    conc.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	timersMu sync.Mutex
	timers   map[uuid.UUID]*time.Timer
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	r := &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		timers:     make(map[uuid.UUID]*time.Timer),
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
	r.pool = NewWorkerPool(r.queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, r.processTask, logger)
	r.pool.SetErrorHandler(r.handlePanic)
	return r
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit adds a new task to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		// The saved row stays pending and is picked up by Recover on next start.
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// SubmitAfter saves task now and enqueues it once delay has elapsed.
// A task still waiting when the runner stops stays pending in the store.
func (r *TaskRunner) SubmitAfter(ctx context.Context, task Task, delay time.Duration) error {
	if delay <= 0 {
		return r.Submit(ctx, task)
	}
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	r.timersMu.Lock()
	defer r.timersMu.Unlock()
	if r.ctx.Err() != nil {
		return nil
	}

	id := task.ID()
	r.timers[id] = time.AfterFunc(delay, func() {
		r.timersMu.Lock()
		delete(r.timers, id)
		r.timersMu.Unlock()

		if r.ctx.Err() != nil {
			return
		}
		if err := r.queue.Enqueue(task); err != nil {
			r.logger.Error("failed to enqueue delayed task",
				"task_id", id,
				"task_type", task.Type(),
				"error", err)
		}
	})
	r.logger.Debug("task scheduled", "task_id", id, "task_type", task.Type(), "delay", delay)
	return nil
}

// Start initializes the worker pool and begins processing tasks
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start()
	r.monitor.Go(r.stuckTaskMonitor)

	return nil
}

// Stop gracefully shuts down the task runner
func (r *TaskRunner) Stop() {
	r.cancelFunc()

	r.timersMu.Lock()
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
	r.timersMu.Unlock()

	r.pool.Stop()
	r.monitor.Wait()
	r.queue.Close()
}

// Recover loads any unfinished tasks from the database
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	// Tasks left in processing state were interrupted by a crash or shutdown.
	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, task := range pendingTasks {
		if err := r.queue.Enqueue(task); err != nil {
			r.logger.Error("failed to requeue pending task",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		}
	}

	for _, task := range processingTasks {
		r.requeue(ctx, task, "Reset after recovery")
	}

	return nil
}

// requeue resets task to pending and puts it back on the queue.
func (r *TaskRunner) requeue(ctx context.Context, task Task, reason string) {
	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusPending, reason); err != nil {
		r.logger.Error("failed to reset task status",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"error", err)
		return
	}

	if err := r.queue.Enqueue(task); err != nil {
		r.logger.Error("failed to requeue task",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"error", err)
		return
	}
	r.logger.Info("requeued task", "task_id", task.ID(), "task_type", task.Type())
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	ctx := context.Background()
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}

	logger.Info("processing task")

	err := task.Execute(ctx)
	if err == nil {
		logger.Info("task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			logger.Error("failed to update task status to completed", "error", updateErr)
		}
		return
	}

	if retry, ok := AsRetry(err); ok {
		logger.Warn("task attempt failed, scheduling follow-up",
			"next_task_id", retry.Next.ID(),
			"delay", retry.After,
			"error", err)
		msg := fmt.Sprintf("%v (continued as task %s)", retry.Err, retry.Next.ID())
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, msg); updateErr != nil {
			logger.Error("failed to update task status to failed", "error", updateErr)
		}
		if submitErr := r.SubmitAfter(ctx, retry.Next, retry.After); submitErr != nil {
			logger.Error("failed to submit follow-up task", "error", submitErr)
			r.errHandler(task, submitErr)
		}
		return
	}

	logger.Error("task execution failed", "error", err)
	if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
		logger.Error("failed to update task status to failed", "error", updateErr)
	}
	r.errHandler(task, err)
}

func (r *TaskRunner) handlePanic(task Task, err error) {
	if updateErr := r.store.UpdateTaskStatus(context.Background(), task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
		r.logger.Error("failed to update task status after panic",
			"task_id", task.ID(),
			"error", updateErr)
	}
	r.errHandler(task, err)
}

// stuckTaskMonitor periodically checks for tasks that have been in "processing"
// state for too long and resets them
func (r *TaskRunner) stuckTaskMonitor() {
	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}

			if len(stuckTasks) > 0 {
				r.logger.Info("found stuck tasks", "count", len(stuckTasks))
				for _, task := range stuckTasks {
					r.requeue(ctx, task, "Reset after being stuck in processing state")
				}
			}
		}
	}
}
