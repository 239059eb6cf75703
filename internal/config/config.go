package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the environment-derived configuration shared by the API and
// worker binaries.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string
	PaymentServerKey   string
	DefaultCurrency    string
	CodeRetries        int
	LifecycleLockTTL   time.Duration
}

// Load reads the process environment, after letting godotenv seed it from a
// local .env file. Missing connection strings fail fast here rather than at
// first use.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             stringOr(k.String("APP_ENV"), "development"),
		Port:               stringOr(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: csvList(k.String("CORS_ALLOWED_ORIGINS")),
		PaymentServerKey:   k.String("PAYMENT_SERVER_KEY"),
		DefaultCurrency:    stringOr(k.String("DEFAULT_CURRENCY"), "USD"),
		CodeRetries:        positiveIntOr(k.String("REFERENCE_CODE_RETRIES"), 3),
		LifecycleLockTTL:   durationOr(k.String("LIFECYCLE_LOCK_TTL"), 15*time.Second),
	}

	switch {
	case cfg.DatabaseURL == "":
		return nil, errors.New("DATABASE_URL is required")
	case cfg.RedisURL == "":
		return nil, errors.New("REDIS_URL is required")
	case cfg.JWTSecret == "":
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr normalises PORT into a listen address.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func stringOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func csvList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func positiveIntOr(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
