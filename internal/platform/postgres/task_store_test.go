package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/quill-api/internal/task"
)

const stubTaskType = "stub"

type stubTask struct {
	id      uuid.UUID
	payload []byte
}

func (t *stubTask) ID() uuid.UUID                { return t.id }
func (t *stubTask) Type() string                 { return stubTaskType }
func (t *stubTask) Payload() []byte              { return t.payload }
func (t *stubTask) Status() task.TaskStatus      { return task.TaskStatusPending }
func (t *stubTask) Execute(context.Context) error { return nil }

func stubRegistry() *task.Registry {
	r := task.NewRegistry()
	r.Register(stubTaskType, func(id uuid.UUID, payload []byte) (task.Task, error) {
		if string(payload) == "corrupt" {
			return nil, errors.New("cannot decode stub payload")
		}
		return &stubTask{id: id, payload: payload}, nil
	})
	return r
}

func TestPostgresTaskStore_SaveTask(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, stubRegistry(), discardLogger())
	tk := &stubTask{id: uuid.New(), payload: []byte(`{"article_id":"x"}`)}

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(tk.id, stubTaskType, tk.payload, "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tasks").
		WillReturnError(pgError(uniqueViolationCode, "tasks_pkey"))

	require.NoError(t, s.SaveTask(context.Background(), tk))
	err := s.SaveTask(context.Background(), tk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save task")
}

func TestPostgresTaskStore_UpdateTaskStatus(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, stubRegistry(), discardLogger())
	id := uuid.New()

	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs("failed", "boom", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs("completed", nil, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE tasks SET status").
		WillReturnError(errors.New("connection lost"))

	require.NoError(t, s.UpdateTaskStatus(context.Background(), id, task.TaskStatusFailed, "boom"))
	// A vanished row is not an error.
	require.NoError(t, s.UpdateTaskStatus(context.Background(), id, task.TaskStatusCompleted, ""))
	assert.Error(t, s.UpdateTaskStatus(context.Background(), id, task.TaskStatusCompleted, ""))
}

func TestPostgresTaskStore_GetPendingTasks(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, stubRegistry(), discardLogger())

	good, corrupt, unknown := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT id, type, payload FROM tasks WHERE status = \$1 ORDER BY created_at ASC`).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "payload"}).
			AddRow(good.String(), stubTaskType, []byte(`{}`)).
			AddRow(corrupt.String(), stubTaskType, []byte("corrupt")).
			AddRow(unknown.String(), "retired_type", []byte(`{}`)))
	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs("failed", "cannot decode stub payload", sqlmock.AnyArg(), corrupt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs("failed", "unknown task type: retired_type", sqlmock.AnyArg(), unknown).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tasks, err := s.GetPendingTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, good, tasks[0].ID())
}

func TestPostgresTaskStore_GetProcessingTasks(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, stubRegistry(), discardLogger())

	mock.ExpectQuery(`FROM tasks WHERE status = \$1 AND updated_at < \$2`).
		WithArgs("processing", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "payload"}))

	tasks, err := s.GetProcessingTasks(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
