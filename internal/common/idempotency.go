package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem rejects repeated Idempotency-Key submissions with a Redis SETNX guard.
// It fronts the lifecycle endpoints (cancel, modify); booking creation keeps
// its own table-backed replay and must not be mounted behind this.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// hashKey hides the raw client key from Redis key listings.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "travio:idem:" + hex.EncodeToString(sum[:])
}

// Middleware passes requests without a key straight through; a duplicate key
// inside the TTL window answers 409 before the handler runs.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := hashKey(header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		defer func() {
			// keep the guard expiring even when the handler panics
			_ = i.R.Expire(context.Background(), key, i.TTL).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
