// Package redis provides a distributed per-article lock so that enrichment
// for one article runs on at most one instance at a time.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/phrazzld/quill-api/internal/config"
)

const (
	keyPrefix      = "quill:enrichment:lock:"
	pollInterval   = 50 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// ErrLockNotAcquired is returned when ctx ends before the lock frees up.
var ErrLockNotAcquired = errors.New("article lock not acquired")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another instance is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ArticleLock is a SET NX PX lock keyed by article id.
type ArticleLock struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewArticleLock creates a lock whose keys expire after ttl, which must
// exceed the longest enrichment attempt.
func NewArticleLock(client goredis.UniversalClient, ttl time.Duration, logger *slog.Logger) *ArticleLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleLock{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "redis_article_lock"),
	}
}

// Lock blocks until the lock for articleID is held or ctx ends.
// The returned function releases it and is safe to call once.
func (l *ArticleLock) Lock(ctx context.Context, articleID uuid.UUID) (func(), error) {
	key := lockKey(articleID)
	token := uuid.NewString()

	backoff := retry.NewConstant(pollInterval)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("setnx %s: %w", key, err)
		}
		if !ok {
			return retry.RetryableError(ErrLockNotAcquired)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		}
		return nil, err
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release article lock",
				"article_id", articleID,
				"error", err)
		}
	}, nil
}

func lockKey(articleID uuid.UUID) string {
	return keyPrefix + articleID.String()
}
