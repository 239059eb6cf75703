package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-travio/internal/common"
	"github.com/noah-isme/backend-travio/internal/identity"
)

func testVerifier() identity.Verifier {
	return identity.Verifier{
		Secret:   []byte("0123456789abcdef0123456789abcdef"),
		Issuer:   "travio-identity",
		Audience: "travio-api",
	}
}

func TestParseSubjectRoundTrip(t *testing.T) {
	v := testVerifier()
	token, err := v.Sign("user-123", time.Minute)
	require.NoError(t, err)

	subject, err := v.ParseSubject(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", subject)
}

func TestParseSubjectRejectsExpired(t *testing.T) {
	v := testVerifier()
	v.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := v.Sign("user-123", time.Minute)
	require.NoError(t, err)

	v.Now = nil
	_, err = v.ParseSubject(token)
	require.Error(t, err)
}

func TestParseSubjectRejectsWrongAlgorithm(t *testing.T) {
	v := testVerifier()
	builder := jwt.NewBuilder().Subject("user-123").Expiration(time.Now().Add(time.Minute))
	tok, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, v.Secret))
	require.NoError(t, err)

	_, err = v.ParseSubject(string(signed))
	require.ErrorContains(t, err, "algorithm")
}

func TestRequireAuthMiddleware(t *testing.T) {
	v := testVerifier()
	mw := identity.Middleware{Verifier: v}
	var gotUser string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := v.Sign("user-77", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "user-77", gotUser)
}
