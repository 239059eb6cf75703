package common

import "context"

type ctxKey string

const userIDKey ctxKey = "identity/requester-id"

// WithUserID attaches the authenticated requester id to the context. The
// booking handlers read it back to scope every query to the caller.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the requester id placed on the context by the identity
// middleware, or false when the request carried no authentication.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
