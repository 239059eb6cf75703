package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noah-isme/backend-travio/internal/health"
)

type probeStub struct {
	dbErr    error
	redisErr error
}

func (p probeStub) PingDB(context.Context, time.Duration) error    { return p.dbErr }
func (p probeStub) PingRedis(context.Context, time.Duration) error { return p.redisErr }

func TestLiveIgnoresDependencies(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("want body ok, got %q", got)
	}
}

func TestReadyReportsPerDependency(t *testing.T) {
	h := health.Handler{Checker: probeStub{}, DBTimeout: 50 * time.Millisecond, RedisTimeout: 50 * time.Millisecond}
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("want json content type, got %q", ct)
	}
	var status map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode readiness body: %v", err)
	}
	if status["db"] != "ok" || status["redis"] != "ok" {
		t.Fatalf("unexpected probe results %#v", status)
	}
}

func TestReadyFailsWhenDatabaseDown(t *testing.T) {
	h := health.Handler{Checker: probeStub{dbErr: errors.New("pool exhausted")}}
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rr.Code)
	}
	var status map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode readiness body: %v", err)
	}
	if status["db"] != "pool exhausted" {
		t.Fatalf("want db error surfaced, got %#v", status)
	}
	if status["redis"] != "ok" {
		t.Fatalf("redis probe should still run, got %#v", status)
	}
}
