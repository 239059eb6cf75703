package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL     = 30 * time.Second
	defaultBackoff = 50 * time.Millisecond
)

// Locker serialises lifecycle work on a booking across API and worker
// processes with a Redis SETNX lock. Each acquisition carries a random token
// so release can never delete a lock a slower holder lost to TTL expiry.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// WithLock runs fn while holding key, polling until the lock is free or ctx
// is cancelled. The lock is released on return regardless of fn's error; a
// non-positive ttl defaults to 30s.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	switch {
	case l.R == nil:
		return errors.New("lock: redis client not configured")
	case fn == nil:
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()

	for {
		acquired, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if acquired {
			break
		}
		if err := l.wait(ctx); err != nil {
			return err
		}
	}

	// release on a fresh context so cancellation cannot leak the lock
	defer l.release(context.Background(), key, token)
	return fn(ctx)
}

func (l Locker) wait(ctx context.Context) error {
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// release deletes the key only when it still holds our token. The Lua
// compare-and-delete keeps the check atomic; servers without scripting fall
// back to an unconditional delete.
func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	err := l.R.Eval(ctx, script, []string{key}, token).Err()
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "unknown command") {
		_ = l.R.Del(ctx, key).Err()
	}
}
