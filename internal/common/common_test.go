package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestParsePaginationDefaultsAndClamp(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	page, perPage := ParsePagination(req, 20)
	if page != 1 || perPage != 20 {
		t.Fatalf("defaults: page=%d perPage=%d", page, perPage)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings?page=3&limit=50", nil)
	page, perPage = ParsePagination(req, 20)
	if page != 3 || perPage != 50 {
		t.Fatalf("explicit: page=%d perPage=%d", page, perPage)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings?limit=9999", nil)
	_, perPage = ParsePagination(req, 20)
	if perPage != maxPerPage {
		t.Fatalf("clamp: perPage=%d want %d", perPage, maxPerPage)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings?page=-1&limit=abc", nil)
	page, perPage = ParsePagination(req, 20)
	if page != 1 || perPage != 20 {
		t.Fatalf("garbage input: page=%d perPage=%d", page, perPage)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:43210"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.4")
	if got := ClientIP(req); got != "198.51.100.4" {
		t.Fatalf("ClientIP = %q", got)
	}

	req.Header.Del("X-Real-IP")
	if got := ClientIP(req); got != "10.0.0.9" {
		t.Fatalf("ClientIP = %q", got)
	}
}

func TestUserIDRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := UserID(req.Context()); ok {
		t.Fatal("unauthenticated context must not yield a requester id")
	}
	ctx := WithUserID(req.Context(), "req-123")
	id, ok := UserID(ctx)
	if !ok || id != "req-123" {
		t.Fatalf("UserID = %q, %v", id, ok)
	}
}

func TestIdemMiddlewareRejectsDuplicateKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	idem := Idem{R: client, TTL: time.Minute}
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/abc/cancel", nil)
	req.Header.Set("Idempotency-Key", "cancel-once")

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req.Clone(req.Context()))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req.Clone(req.Context()))
	if second.Code != http.StatusConflict {
		t.Fatalf("duplicate request: got %d, want 409", second.Code)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}

	// no key, no guard
	plain := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/abc/cancel", nil)
	third := httptest.NewRecorder()
	handler.ServeHTTP(third, plain)
	if third.Code != http.StatusOK {
		t.Fatalf("keyless request: got %d", third.Code)
	}
}

func TestInMemoryEmailRecords(t *testing.T) {
	var sender InMemoryEmail
	if err := sender.Send("guest@example.com", "Booking confirmed", "<p>HTL-ABC123</p>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sender.Outbox) != 1 || sender.Outbox[0].Subject != "Booking confirmed" {
		t.Fatalf("outbox = %+v", sender.Outbox)
	}
}
