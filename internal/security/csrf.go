package security

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// CSRF double-submit guard for cookie sessions. Bearer-token requests skip
// the check because a cross-site attacker cannot attach an Authorization
// header.
type CSRF struct {
	Header string
}

// Middleware requires mutating requests to carry a token header that matches
// the cookie of the same name.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(c.Header)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromCSRF(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		if token == "" {
			http.Error(w, "missing csrf token", http.StatusForbidden)
			return
		}
		cookie, err := r.Cookie(headerName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			http.Error(w, "missing csrf cookie", http.StatusForbidden)
			return
		}
		if !tokensEqual(token, cookie.Value) {
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// exemptFromCSRF covers safe methods and bearer-authenticated calls.
func exemptFromCSRF(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	auth := strings.ToLower(strings.TrimSpace(r.Header.Get("Authorization")))
	return strings.HasPrefix(auth, "bearer ")
}

func tokensEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
