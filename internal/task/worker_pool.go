package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Handler processes one task on behalf of a worker.
type Handler func(task Task, workerID int)

// WorkerPool manages a pool of worker goroutines that process tasks
// from a task queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	taskQueue   TaskQueueReader
	workerCount int
	handle      Handler

	// wg tracks active worker goroutines for clean shutdown
	wg conc.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger

	// errorHandler is called when a handler panics.
	// If nil, panics are only logged.
	errorHandler func(task Task, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(
	taskQueue TaskQueueReader,
	config WorkerPoolConfig,
	handle Handler,
	logger *slog.Logger,
) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		workerCount: workerCount,
		handle:      handle,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With("component", "worker_pool"),
	}
}

// SetErrorHandler allows setting a custom error handler for handler panics
func (p *WorkerPool) SetErrorHandler(handler func(task Task, err error)) {
	p.errorHandler = handler
}

// Start launches the workers. It must be called at most once.
func (p *WorkerPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		id := i
		p.wg.Go(func() { p.worker(id) })
	}
	p.logger.Info("worker pool started", "worker_count", p.workerCount)
}

// Stop signals workers to exit and waits for in-flight tasks to finish.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	p.logger.Debug("starting worker", "worker_id", id)
	tasks := p.taskQueue.GetChannel()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-tasks:
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			p.run(task, id)
		}
	}
}

// run executes the handler and turns a panic into an error for this task only.
func (p *WorkerPool) run(task Task, workerID int) {
	var catcher panics.Catcher
	catcher.Try(func() { p.handle(task, workerID) })

	if recovered := catcher.Recovered(); recovered != nil {
		err := fmt.Errorf("task handler panicked: %w", recovered.AsError())
		p.logger.Error("recovered panic in worker",
			"worker_id", workerID,
			"task_id", task.ID(),
			"task_type", task.Type(),
			"error", err)
		if p.errorHandler != nil {
			p.errorHandler(task, err)
		}
	}
}
