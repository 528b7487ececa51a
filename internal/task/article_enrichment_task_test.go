package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/quill-api/internal/enrichment"
)

var errWrite = errors.New("write failed")

func TestNewArticleEnrichmentTask_Validation(t *testing.T) {
	t.Parallel()

	attempt := enrichment.NewTask(uuid.New(), 3, time.Second)
	runner := &scriptedRunner{}

	_, err := NewArticleEnrichmentTask(uuid.New(), attempt, nil, discardLogger())
	assert.ErrorIs(t, err, ErrNilRunner)

	_, err = NewArticleEnrichmentTask(uuid.New(), attempt, runner, nil)
	assert.ErrorIs(t, err, ErrNilLogger)

	_, err = NewArticleEnrichmentTask(uuid.New(), enrichment.Task{}, runner, discardLogger())
	assert.ErrorIs(t, err, ErrEmptyArticleID)

	task, err := NewArticleEnrichmentTask(uuid.New(), attempt, runner, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, TaskTypeArticleEnrichment, task.Type())
	assert.Equal(t, TaskStatusPending, task.Status())
}

func TestArticleEnrichmentTask_Execute(t *testing.T) {
	t.Parallel()

	t.Run("succeeded", func(t *testing.T) {
		t.Parallel()
		task, err := NewArticleEnrichmentTask(uuid.New(),
			enrichment.NewTask(uuid.New(), 3, time.Second), &scriptedRunner{}, discardLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusCompleted, task.Status())
	})

	t.Run("running continues as next attempt", func(t *testing.T) {
		t.Parallel()
		runner := &scriptedRunner{
			states: []enrichment.State{enrichment.StateRunning},
			delay:  5 * time.Second,
		}
		articleID := uuid.New()
		task, err := NewArticleEnrichmentTask(uuid.New(),
			enrichment.NewTask(articleID, 3, time.Second), runner, discardLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		retry, ok := AsRetry(err)
		require.True(t, ok)
		assert.ErrorIs(t, err, errWrite)
		assert.Equal(t, 5*time.Second, retry.After)
		assert.Equal(t, TaskStatusFailed, task.Status())

		next, ok := retry.Next.(*ArticleEnrichmentTask)
		require.True(t, ok)
		assert.NotEqual(t, task.ID(), next.ID())
		assert.Equal(t, 2, next.Attempt().Attempt)
		assert.Equal(t, articleID, next.Attempt().ArticleID)
		assert.Equal(t, TaskStatusPending, next.Status())
	})

	t.Run("terminal failure", func(t *testing.T) {
		t.Parallel()
		runner := &scriptedRunner{states: []enrichment.State{enrichment.StateFailedTerminal}}
		task, err := NewArticleEnrichmentTask(uuid.New(),
			enrichment.NewTask(uuid.New(), 1, time.Second), runner, discardLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		assert.ErrorIs(t, err, ErrEnrichmentEnded)
		assert.ErrorIs(t, err, errWrite)
		_, retry := AsRetry(err)
		assert.False(t, retry)
	})
}

func TestArticleEnrichmentTaskFactory_RoundTrip(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{}
	factory := NewArticleEnrichmentTaskFactory(runner, 4, 45*time.Second, discardLogger())
	registry := NewRegistry()
	factory.Register(registry)

	articleID := uuid.New()
	created, err := factory.CreateTask(articleID)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(created.Payload(), &payload))
	assert.Equal(t, articleID.String(), payload["article_id"])
	assert.EqualValues(t, 1, payload["attempt"])
	assert.EqualValues(t, 4, payload["max_attempts"])

	// A later attempt survives persistence with its counter intact.
	later := created.(*ArticleEnrichmentTask).Attempt().Next().Next()
	stored, err := NewArticleEnrichmentTask(uuid.New(), later, runner, discardLogger())
	require.NoError(t, err)

	decoded, err := registry.Decode(stored.ID(), TaskTypeArticleEnrichment, stored.Payload())
	require.NoError(t, err)
	got := decoded.(*ArticleEnrichmentTask)
	assert.Equal(t, stored.ID(), got.ID())
	assert.Equal(t, later, got.Attempt())
}

func TestArticleEnrichmentTaskFactory_DecodeErrors(t *testing.T) {
	t.Parallel()

	factory := NewArticleEnrichmentTaskFactory(&scriptedRunner{}, 0, 0, discardLogger())

	_, err := factory.Decode(uuid.New(), []byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = factory.Decode(uuid.New(), []byte(`{"attempt":1}`))
	assert.ErrorIs(t, err, ErrEmptyArticleID)

	decoded, err := factory.Decode(uuid.New(), []byte(`{"article_id":"`+uuid.NewString()+`"}`))
	require.NoError(t, err)
	attempt := decoded.(*ArticleEnrichmentTask).Attempt()
	assert.Equal(t, enrichment.DefaultMaxAttempts, attempt.MaxAttempts)
	assert.Equal(t, enrichment.DefaultTimeout, attempt.Timeout)
	assert.Equal(t, 1, attempt.Attempt)
}

func TestRegistry_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Decode(uuid.New(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}
