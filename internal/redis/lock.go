package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrLockNotAcquired = errors.New("batch lock not acquired")
)

// Locker guards the submission of one reminder batch per user.
type Locker interface {
	WithBatchLock(ctx context.Context, userID, batchID string, fn func(ctx context.Context) error) error
}

type redisBatchLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisBatchLocker creates a locker that uses a per batch Redis key. The
// key expires after ttl even if the holder never releases it.
func NewRedisBatchLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &redisBatchLocker{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func lockKey(userID, batchID string) string {
	return fmt.Sprintf("lock:reminder-batch:%s:%s", userID, batchID)
}

func (l *redisBatchLocker) WithBatchLock(ctx context.Context, userID, batchID string, fn func(ctx context.Context) error) error {
	key := lockKey(userID, batchID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer l.unlock(context.WithoutCancel(ctx), key, token)

	return fn(ctx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// unlock releases the lock. A failed release leaves the key to expire
// after the TTL, blocking resubmission until then.
func (l *redisBatchLocker) unlock(ctx context.Context, key, token string) {
	if err := l.release(ctx, key, token); err != nil {
		l.logger.Warn().Err(err).
			Str("lock_key", key).
			Dur("expires_in", l.ttl).
			Msg("batch lock not released, waiting for TTL")
	}
}

func (l *redisBatchLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release batch lock: %w", err)
	}
	return nil
}

// NoopLocker runs fn without any locking. Used when Redis is not configured.
type NoopLocker struct{}

func (NoopLocker) WithBatchLock(ctx context.Context, _, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
