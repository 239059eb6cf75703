package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client, Prefix: "travio:rl:"}

	ctx := context.Background()
	window := 2 * time.Second
	const max = 2

	for i := 1; i <= max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "bucket", window, max)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d should pass", i)
		}
		if remaining != max-i {
			t.Fatalf("request %d: remaining = %d, want %d", i, remaining, max-i)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "bucket", window, max)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if allowed || remaining != 0 {
		t.Fatalf("over-limit request: allowed=%v remaining=%d", allowed, remaining)
	}

	// old events fall out of the window, so the bucket refills
	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "bucket", window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("request after window should pass")
	}
}

func TestLimiterDisabledWithoutPolicy(t *testing.T) {
	limiter := Limiter{}
	allowed, _, _, err := limiter.Allow(context.Background(), "bucket", 0, 0)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatal("limiter without client or policy must pass everything")
	}
}
