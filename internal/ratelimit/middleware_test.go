package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	handler := Handler{
		Limiter: Limiter{Client: newTestRedis(t), Prefix: "travio:rl:"},
		Config: Config{
			Key:    func(*http.Request) string { return "203.0.113.7" },
			Window: time.Second,
			Max:    1,
		},
	}

	wrapped := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)

	first := httptest.NewRecorder()
	wrapped.ServeHTTP(first, req.Clone(req.Context()))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got %d", first.Code)
	}

	second := httptest.NewRecorder()
	wrapped.ServeHTTP(second, req.Clone(req.Context()))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", second.Code)
	}
	if got := second.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("X-RateLimit-Limit = %q", got)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing on rejection")
	}
}

func TestMiddlewareFailsOpenOnLimiterError(t *testing.T) {
	// unreachable address forces the pipeline to error
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	var limiterErr error
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "travio:rl:"},
		Config: Config{
			Key:    func(*http.Request) string { return "203.0.113.8" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(err error) { limiterErr = err },
	}

	wrapped := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected fail-open passthrough, got %d", rr.Code)
	}
	if limiterErr == nil {
		t.Fatal("expected OnError to receive the limiter error")
	}
}
