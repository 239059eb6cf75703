package app

import (
	"context"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies names the shared services a binary wires at startup. Keeping
// the inventory in one struct makes it obvious which backends a new module
// may lean on without growing its own connections.
type Dependencies struct {
	Context         context.Context
	DB              *pgxpool.Pool
	Redis           *redis.Client
	Validator       *validator.Validate
	Limiter         *limiter.Limiter
	LimiterStore    limiter.Store
	TaskClient      *asynq.Client
	TaskServer      *asynq.Server
	MetricsRegistry *prometheus.Registry
	TracerProvider  trace.TracerProvider
	MeterProvider   metric.MeterProvider
}

// MigrateUp applies pending schema migrations from sourceURL, e.g.
// "file://db/migrations". An already current schema is not an error.
func MigrateUp(sourceURL, databaseURL string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// NewAdminLimiter builds a Redis-backed fixed-rate limiter for the operator
// surface. The booking path has its own sliding-window limiter; operator
// endpoints get the stock one since their traffic is tiny.
func NewAdminLimiter(rdb *redis.Client, perMinute int64) (*limiter.Limiter, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "travio:admin-rl"})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, limiter.Rate{Period: time.Minute, Limit: perMinute}), nil
}

// HashOperatorSecret hashes an operator credential for storage in
// configuration, so the plaintext never has to live in the environment.
func HashOperatorSecret(secret string) (string, error) {
	return argon2id.CreateHash(secret, argon2id.DefaultParams)
}

// VerifyOperatorSecret checks a presented credential against its stored
// form. A value that is not an argon2id hash is compared as an opaque
// plaintext token by the caller instead.
func VerifyOperatorSecret(secret, stored string) (bool, error) {
	if !strings.HasPrefix(stored, "$argon2id$") {
		return false, nil
	}
	return argon2id.ComparePasswordAndHash(secret, stored)
}
