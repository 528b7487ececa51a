package enrichment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ArticleLocker serializes enrichment per article id. Lock blocks until the
// lock is held or ctx ends, and returns the release function.
type ArticleLocker interface {
	Lock(ctx context.Context, articleID uuid.UUID) (func(), error)
}

// KeyedLocker is an in-process ArticleLocker.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyedLocker creates an empty KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[uuid.UUID]*keyedLock)}
}

var _ ArticleLocker = (*KeyedLocker)(nil)

func (l *KeyedLocker) Lock(ctx context.Context, articleID uuid.UUID) (func(), error) {
	l.mu.Lock()
	k, ok := l.locks[articleID]
	if !ok {
		k = &keyedLock{sem: make(chan struct{}, 1)}
		l.locks[articleID] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(articleID, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.sem
			l.drop(articleID, k)
		})
	}, nil
}

// drop forgets the entry once nobody holds or waits for it.
func (l *KeyedLocker) drop(articleID uuid.UUID, k *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, articleID)
	}
}
