package enrichment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_SerializesSameArticle(t *testing.T) {
	t.Parallel()

	l := NewKeyedLocker()
	id := uuid.New()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), id)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, l.size())
}

func TestKeyedLocker_DifferentArticlesDoNotBlock(t *testing.T) {
	t.Parallel()

	l := NewKeyedLocker()
	releaseA, err := l.Lock(context.Background(), uuid.New())
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := l.Lock(ctx, uuid.New())
	require.NoError(t, err)
	releaseB()
}

func TestKeyedLocker_ContextCancel(t *testing.T) {
	t.Parallel()

	l := NewKeyedLocker()
	id := uuid.New()
	release, err := l.Lock(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.size())

	release()
	release()
	assert.Zero(t, l.size())
}
