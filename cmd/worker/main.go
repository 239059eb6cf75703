package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-travio/internal/common"
	"github.com/noah-isme/backend-travio/internal/config"
	"github.com/noah-isme/backend-travio/internal/lock"
	"github.com/noah-isme/backend-travio/internal/notify"
	"github.com/noah-isme/backend-travio/internal/obs"
	"github.com/noah-isme/backend-travio/internal/payment"
	"github.com/noah-isme/backend-travio/internal/queue"
	"github.com/noah-isme/backend-travio/internal/resilience"
	"github.com/noah-isme/backend-travio/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "travio-worker"

	pool, err := pgxpool.NewWithConfig(bootCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(bootCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	st := store.New(pool)

	notifier := notify.NotificationWorker{
		Mail:    common.NopEmailSender{},
		Locker:  lock.Locker{R: redisClient},
		LockTTL: 30 * time.Second,
	}

	var providerHTTP *resilience.HTTPClient
	if envBool("PAYMENT_HTTP_ENABLED", false) {
		providerHTTP = &resilience.HTTPClient{
			Client:      &http.Client{},
			Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("midtrans-snap").WithLogger(logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Timeout:     10 * time.Second,
		}
	}
	paymentSvc := &payment.Service{
		Store: st,
		Provider: payment.Midtrans{
			ServerKey: cfg.PaymentServerKey,
			Sandbox:   cfg.AppEnv != "production",
			HTTP:      providerHTTP,
		},
		Breaker:         resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("payment-provider").WithLogger(logger),
		CallbackBaseURL: envOrDefault("PAYMENT_CALLBACK_BASE_URL", ""),
	}

	concurrency := envInt("WORKER_CONCURRENCY", 4)
	dlq := queue.NewStore(pool)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w := queue.Worker{
			R:           redisClient,
			Prefix:      "travio",
			Kind:        queue.KindBookingNotification,
			Concurrency: concurrency,
			Store:       dlq,
			Logger:      &logger,
			Handler: func(ctx context.Context, t queue.Task) error {
				return notifier.Handle(ctx, t.IdempotencyKey, t.Payload)
			},
		}
		return w.Run(gctx)
	})
	g.Go(func() error {
		w := queue.Worker{
			R:           redisClient,
			Prefix:      "travio",
			Kind:        queue.KindPaymentCapture,
			Concurrency: concurrency,
			Store:       dlq,
			Logger:      &logger,
			Handler: func(ctx context.Context, t queue.Task) error {
				return capturePayment(ctx, paymentSvc, t.Payload)
			},
		}
		return w.Run(gctx)
	})

	logger.Info().Int("concurrency", concurrency).Msg("worker starting")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
	logger.Info().Msg("worker stopped")
}

func capturePayment(ctx context.Context, svc *payment.Service, payload []byte) error {
	var body struct {
		BookingID string `json:"bookingId"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("capture: decode payload: %w", err)
	}
	if strings.TrimSpace(body.BookingID) == "" {
		return nil
	}
	id, err := store.ToUUID(body.BookingID)
	if err != nil {
		return fmt.Errorf("capture: parse booking id: %w", err)
	}
	if _, err := svc.CreateCapture(ctx, id); err != nil {
		if errors.Is(err, payment.ErrProviderUnavailable) {
			return err
		}
		// Terminal outcomes (cancelled booking, already paid) must not keep
		// the task retrying.
		return nil
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
