package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-travio/internal/common"
)

var errNoToken = errors.New("identity: token missing")

// Middleware resolves the requester identity for HTTP handlers.
type Middleware struct {
	Verifier     Verifier
	AccessCookie string
}

// Authenticate attaches the requester id to the context when a valid token is
// present but lets anonymous requests through.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth enforces a valid token before the next handler runs.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	token := m.extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	subject, err := m.Verifier.ParseSubject(token)
	if err != nil {
		return r.Context(), err
	}
	return common.WithUserID(r.Context(), subject), nil
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.AccessCookie != "" {
		if cookie, err := r.Cookie(m.AccessCookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
