package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Config sets the limiting policy: Key derives the bucket (client IP for the
// booking API), Window the sliding interval, Max the allowed requests per
// window.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler applies the limiter in front of a route group.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware answers 429 with Retry-After once a bucket is exhausted. Limiter
// errors fail open: a Redis hiccup must not block bookings, so the request
// passes through and OnError gets the error.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		h.writeLimitHeaders(w.Header(), remaining, resetAt)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(secondsUntil(resetAt)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h Handler) writeLimitHeaders(headers http.Header, remaining int, resetAt time.Time) {
	limit := h.Config.Max
	if limit < 0 {
		limit = 0
	}
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func secondsUntil(t time.Time) int {
	s := int(time.Until(t).Seconds())
	if s < 0 {
		return 0
	}
	return s
}
