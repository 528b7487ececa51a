package task

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/enrichment"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// mockTask is a Task with a pluggable Execute.
type mockTask struct {
	id        uuid.UUID
	taskType  string
	payload   []byte
	status    TaskStatus
	executeFn func(ctx context.Context) error
}

func newMockTask(executeFn func(ctx context.Context) error) *mockTask {
	if executeFn == nil {
		executeFn = func(context.Context) error { return nil }
	}
	return &mockTask{
		id:        uuid.New(),
		taskType:  "mock_task",
		payload:   []byte(`{}`),
		status:    TaskStatusPending,
		executeFn: executeFn,
	}
}

func (t *mockTask) ID() uuid.UUID                     { return t.id }
func (t *mockTask) Type() string                      { return t.taskType }
func (t *mockTask) Payload() []byte                   { return t.payload }
func (t *mockTask) Status() TaskStatus                { return t.status }
func (t *mockTask) Execute(ctx context.Context) error { return t.executeFn(ctx) }

type statusChange struct {
	Status TaskStatus
	Msg    string
}

// memTaskStore is an in-memory TaskStore that records status history.
type memTaskStore struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]Task
	status   map[uuid.UUID]TaskStatus
	since    map[uuid.UUID]time.Time
	history  map[uuid.UUID][]statusChange
	order    []uuid.UUID
	saveErr  error
	changed  chan uuid.UUID
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{
		tasks:   make(map[uuid.UUID]Task),
		status:  make(map[uuid.UUID]TaskStatus),
		since:   make(map[uuid.UUID]time.Time),
		history: make(map[uuid.UUID][]statusChange),
		changed: make(chan uuid.UUID, 100),
	}
}

func (s *memTaskStore) SaveTask(_ context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tasks[task.ID()] = task
	s.status[task.ID()] = task.Status()
	s.since[task.ID()] = time.Now()
	s.order = append(s.order, task.ID())
	return nil
}

func (s *memTaskStore) UpdateTaskStatus(_ context.Context, id uuid.UUID, status TaskStatus, msg string) error {
	s.mu.Lock()
	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	s.status[id] = status
	s.since[id] = time.Now()
	s.history[id] = append(s.history[id], statusChange{Status: status, Msg: msg})
	s.mu.Unlock()

	select {
	case s.changed <- id:
	default:
	}
	return nil
}

func (s *memTaskStore) GetPendingTasks(_ context.Context) ([]Task, error) {
	return s.byStatus(TaskStatusPending, 0), nil
}

func (s *memTaskStore) GetProcessingTasks(_ context.Context, olderThan time.Duration) ([]Task, error) {
	return s.byStatus(TaskStatusProcessing, olderThan), nil
}

func (s *memTaskStore) WithTx(*sql.Tx) TaskStore { return s }

func (s *memTaskStore) byStatus(status TaskStatus, olderThan time.Duration) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, id := range s.order {
		if s.status[id] != status {
			continue
		}
		if olderThan > 0 && time.Since(s.since[id]) <= olderThan {
			continue
		}
		out = append(out, s.tasks[id])
	}
	return out
}

func (s *memTaskStore) statusOf(id uuid.UUID) TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

func (s *memTaskStore) historyOf(id uuid.UUID) []statusChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statusChange(nil), s.history[id]...)
}

func (s *memTaskStore) saved() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}

// scriptedRunner is an AttemptRunner that answers from a list of states.
type scriptedRunner struct {
	mu     sync.Mutex
	states []enrichment.State
	seen   []enrichment.Task
	delay  time.Duration
}

func (r *scriptedRunner) RunAttempt(_ context.Context, t enrichment.Task) enrichment.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, t)

	state := enrichment.StateSucceeded
	if len(r.states) > 0 {
		state = r.states[0]
		r.states = r.states[1:]
	}
	switch state {
	case enrichment.StateRunning:
		next := t.Next()
		return enrichment.Outcome{State: state, Next: &next, Err: errWrite}
	case enrichment.StateFailedTerminal:
		return enrichment.Outcome{State: state, Slug: "fallback", Err: errWrite}
	}
	return enrichment.Outcome{State: state, Slug: "generated"}
}

func (r *scriptedRunner) RetryDelay(enrichment.Task) time.Duration {
	return r.delay
}

func (r *scriptedRunner) attempts() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.seen))
	for _, t := range r.seen {
		out = append(out, t.Attempt)
	}
	return out
}
