package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-travio/internal/queue"
)

func newQueueRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEnqueueAndProcess(t *testing.T) {
	client := newQueueRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "travio"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"bookingId":"b1"}`)
	require.NoError(t, enq.Enqueue(ctx, queue.Task{
		Kind:           queue.KindBookingNotification,
		Payload:        payload,
		IdempotencyKey: "notify-b1",
	}))

	processed := make(chan queue.Task, 1)
	worker := queue.Worker{
		R:                 client,
		Prefix:            "travio",
		Kind:              queue.KindBookingNotification,
		Concurrency:       1,
		VisibilityTimeout: time.Second,
		RetryBase:         10 * time.Millisecond,
		Handler: func(ctx context.Context, task queue.Task) error {
			processed <- task
			cancel()
			return nil
		},
	}
	go func() { _ = worker.Run(ctx) }()

	select {
	case task := <-processed:
		require.Equal(t, payload, task.Payload)
		require.Equal(t, "notify-b1", task.IdempotencyKey)
		require.Equal(t, 1, task.Attempt)
	case <-time.After(time.Second):
		t.Fatal("task never reached the handler")
	}
}

func TestEnqueueDedupesByKey(t *testing.T) {
	client := newQueueRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "travio", DedupTTL: time.Minute}
	ctx := context.Background()

	task := queue.Task{Kind: queue.KindPaymentCapture, Payload: []byte("x"), IdempotencyKey: "cap-1"}
	require.NoError(t, enq.Enqueue(ctx, task))
	require.NoError(t, enq.Enqueue(ctx, task))

	depth, err := client.ZCard(ctx, "travio:queue:"+queue.KindPaymentCapture).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)
}

func TestWorkerRetriesFailedTask(t *testing.T) {
	client := newQueueRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "travio"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, enq.Enqueue(ctx, queue.Task{
		Kind:           queue.KindPaymentCapture,
		Payload:        []byte(`{"bookingId":"b2"}`),
		IdempotencyKey: "cap-b2",
		MaxAttempts:    3,
	}))

	var attempts atomic.Int32
	worker := queue.Worker{
		R:                 client,
		Prefix:            "travio",
		Kind:              queue.KindPaymentCapture,
		Concurrency:       1,
		VisibilityTimeout: time.Second,
		RetryBase:         5 * time.Millisecond,
		RetryJitter:       0.1,
		Handler: func(ctx context.Context, task queue.Task) error {
			if attempts.Add(1) == 1 {
				return errors.New("provider unavailable")
			}
			cancel()
			return nil
		},
	}
	go func() { _ = worker.Run(ctx) }()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker never retried")
	}
	require.GreaterOrEqual(t, attempts.Load(), int32(2))
}
