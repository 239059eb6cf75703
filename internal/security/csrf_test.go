package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func csrfHandler(status int) http.Handler {
	csrf := CSRF{}
	return csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	rr := httptest.NewRecorder()
	csrfHandler(http.StatusOK).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/bookings/abc/cancel", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rr.Code)
	}
}

func TestCSRFRejectsMismatchedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/abc/cancel", nil)
	req.Header.Set("X-CSRF-Token", "token-a")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "token-b"})
	rr := httptest.NewRecorder()
	csrfHandler(http.StatusOK).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rr.Code)
	}
}

func TestCSRFAllowsMatchingPair(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/abc/cancel", nil)
	req.Header.Set("X-CSRF-Token", "matching-token")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "matching-token"})
	rr := httptest.NewRecorder()
	csrfHandler(http.StatusOK).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
}

func TestCSRFSkipsBearerAndReads(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer eyJ.header.sig")
	rr := httptest.NewRecorder()
	csrfHandler(http.StatusAccepted).ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("bearer request: got %d, want 202", rr.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	rr = httptest.NewRecorder()
	csrfHandler(http.StatusOK).ServeHTTP(rr, get)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET request: got %d, want 200", rr.Code)
	}
}
