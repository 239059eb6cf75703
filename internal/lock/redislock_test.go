package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-travio/internal/lock"
)

func newLockRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWithLockSerialisesHolders(t *testing.T) {
	locker := lock.Locker{R: newLockRedis(t), RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	const key = "booking:lifecycle:b1"
	var order []string
	var mu sync.Mutex
	firstHolding := make(chan struct{})
	releaseFirst := make(chan struct{})

	go func() {
		err := locker.WithLock(ctx, key, 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "cancel")
			mu.Unlock()
			close(firstHolding)
			<-releaseFirst
			return nil
		})
		require.NoError(t, err)
	}()

	<-firstHolding

	go func() {
		err := locker.WithLock(ctx, key, 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "modify")
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}()

	close(releaseFirst)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"cancel", "modify"}, order)
}

func TestWithLockHonoursContextCancellation(t *testing.T) {
	client := newLockRedis(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}

	// hold the key so the second caller has to wait
	require.NoError(t, client.SetNX(context.Background(), "busy", "token", time.Minute).Err())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "busy", time.Minute, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
