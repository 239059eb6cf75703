package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/backend-travio/internal/obs"
)

func TestMiddlewareRecordsRouteLabelledMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("travio", []float64{1, 10}, registry)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	handler = obs.HTTPObs{Metrics: metrics}.Middleware(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/bookings"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/bookings", "201"))
	if total != 1 {
		t.Fatalf("want one request counted under the route pattern, got %v", total)
	}
	if samples := testutil.CollectAndCount(metrics.ReqDur); samples == 0 {
		t.Fatal("want a duration sample for the request")
	}
	if metrics.InFlight != nil {
		if inflight := testutil.ToFloat64(metrics.InFlight); inflight != 0 {
			t.Fatalf("in-flight gauge should return to zero, got %v", inflight)
		}
	}
}

func TestMiddlewareFallsBackWithoutRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("travio", nil, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/whatever", nil))

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unknown", "200"))
	if total != 1 {
		t.Fatalf("unmatched requests should collapse into the unknown label, got %v", total)
	}
}
