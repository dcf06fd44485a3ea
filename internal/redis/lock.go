package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("window lock not acquired")
)

// Locker serializes the read-validate-insert sequence of bookings on one
// availability window. It narrows the race between concurrent bookings; the
// unique index on consultations stays the authoritative guard.
type Locker interface {
	WithWindowLock(ctx context.Context, windowID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisWindowLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisWindowLocker creates a locker that uses a per window Redis key
func NewRedisWindowLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisWindowLocker{
		client: client,
		ttl:    ttl,
	}
}

func lockKey(windowID uuid.UUID) string {
	return fmt.Sprintf("lock:window:%s", windowID.String())
}

func (l *redisWindowLocker) WithWindowLock(ctx context.Context, windowID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(windowID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire window lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release even if ctx was cancelled inside fn
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisWindowLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release window lock: %w", err)
	}
	return nil
}
