package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/noah-isme/backend-travio/internal/app"
	"github.com/noah-isme/backend-travio/internal/booking"
	"github.com/noah-isme/backend-travio/internal/common"
	"github.com/noah-isme/backend-travio/internal/config"
	"github.com/noah-isme/backend-travio/internal/events"
	"github.com/noah-isme/backend-travio/internal/health"
	"github.com/noah-isme/backend-travio/internal/identity"
	"github.com/noah-isme/backend-travio/internal/lock"
	"github.com/noah-isme/backend-travio/internal/notify"
	"github.com/noah-isme/backend-travio/internal/obs"
	"github.com/noah-isme/backend-travio/internal/payment"
	"github.com/noah-isme/backend-travio/internal/queue"
	"github.com/noah-isme/backend-travio/internal/ratelimit"
	"github.com/noah-isme/backend-travio/internal/resilience"
	"github.com/noah-isme/backend-travio/internal/security"
	"github.com/noah-isme/backend-travio/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "travio-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "travio-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if envBool("DB_AUTO_MIGRATE", false) {
		source := envOrDefault("DB_MIGRATIONS_URL", "file://db/migrations")
		if err := app.MigrateUp(source, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Str("source", source).Msg("migrations applied")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	st := store.New(pool)

	enqueuer := queue.Enqueuer{R: redisClient, Prefix: "travio"}
	mailer := common.NopEmailSender{}
	bus := &events.Bus{
		Store:     st,
		Scheduler: notify.QueueScheduler{Queue: enqueuer},
		Notifiers: []events.Notifier{notify.EmailNotifier{
			Mail:    mailer,
			Enabled: envBool("NOTIFY_EMAIL_ENABLED", false),
			From:    envOrDefault("NOTIFY_EMAIL_FROM", "bookings@travio.example"),
		}},
	}

	bookingSvc := &booking.Service{
		Store:       st,
		Tx:          booking.PG{Pool: pool},
		Events:      bus,
		Locks:       lock.Locker{R: redisClient},
		LockTTL:     cfg.LifecycleLockTTL,
		Currency:    cfg.DefaultCurrency,
		CodeRetries: cfg.CodeRetries,
	}
	bookingHandler := &booking.Handler{Svc: bookingSvc, Validate: validator.New()}

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
	providers := map[string]payment.Provider{
		"midtrans": payment.Midtrans{
			ServerKey: cfg.PaymentServerKey,
			Sandbox:   cfg.AppEnv != "production",
			HTTP:      providerHTTP,
		},
		"xendit": payment.Xendit{SecretKey: cfg.PaymentServerKey},
	}
	activeProvider := providers[envOrDefault("PAYMENT_PROVIDER", "midtrans")]
	if activeProvider == nil {
		activeProvider = providers["midtrans"]
	}
	paymentSvc := &payment.Service{
		Store:           st,
		Provider:        activeProvider,
		Breaker:         resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("payment-provider").WithLogger(logger),
		CallbackBaseURL: envOrDefault("PAYMENT_CALLBACK_BASE_URL", ""),
	}
	paymentHandler := &payment.Handler{Svc: paymentSvc}

	verifier := identity.Verifier{
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    envOrDefault("JWT_ISSUER", "travio-identity"),
		Audience:  envOrDefault("JWT_AUDIENCE", "travio-api"),
		ClockSkew: 30 * time.Second,
	}
	authMiddleware := identity.Middleware{Verifier: verifier}

	idem := common.Idem{R: redisClient, TTL: 24 * time.Hour}
	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "travio:rl"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return common.ClientIP(r) },
			Window: time.Minute,
			Max:    envInt("RATE_LIMIT_PER_MINUTE", 120),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limit") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics("travio", buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:                true,
		EnableHSTS:            cfg.AppEnv == "production",
		HSTSIncludeSubdomains: true,
	}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)
			authR.Use(security.CSRF{}.Middleware)
			authR.Use(limiter.Middleware)
			authR.Post("/bookings", bookingHandler.Create)
			authR.Get("/bookings", bookingHandler.List)
			authR.Get("/bookings/{id}", bookingHandler.Get)
			authR.With(idem.Middleware).Post("/bookings/{id}/cancel", bookingHandler.Cancel)
			authR.With(idem.Middleware).Post("/bookings/{id}/modify", bookingHandler.Modify)
			authR.Get("/bookings/{id}/payment", paymentHandler.Status)
			authR.Get("/loyalty", bookingHandler.Loyalty)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(requireOpsToken(envOrDefault("OPS_API_TOKEN", "")))
			if adminLimiter, err := app.NewAdminLimiter(redisClient, int64(envInt("ADMIN_RATE_LIMIT_PER_MINUTE", 60))); err != nil {
				logger.Error().Err(err).Msg("admin rate limiter disabled")
			} else {
				admin.Use(limiterstdlib.NewMiddleware(adminLimiter).Handler)
			}
			admin.Get("/commission-review", bookingHandler.CommissionReview)

			queueAdmin := &queue.AdminHandler{Store: queue.NewStore(pool), Queue: enqueuer, Logger: logger}
			admin.Get("/queue/dlq", queueAdmin.ListDLQ)
			admin.Post("/queue/dlq/replay", queueAdmin.ReplayDLQ)
			admin.Get("/queue/stats", queueAdmin.Stats)
		})

		v.Post("/webhooks/payment", paymentHandler.Webhook)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		health.SetReady(false)
		drain := envDurationMillis("SHUTDOWN_DRAIN_MS", 3000)
		logger.Info().Dur("drain", drain).Msg("draining before shutdown")
		time.Sleep(drain)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	<-shutdownDone
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// requireOpsToken gates operator endpoints on X-Ops-Token. The configured
// value may be either the token itself or its argon2id hash, so deployments
// can keep the plaintext out of the environment.
func requireOpsToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "operator access not configured", nil)
				return
			}
			provided := strings.TrimSpace(r.Header.Get("X-Ops-Token"))
			if !opsTokenMatches(provided, token) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func opsTokenMatches(provided, configured string) bool {
	if strings.HasPrefix(configured, "$argon2id$") {
		ok, err := app.VerifyOperatorSecret(provided, configured)
		return err == nil && ok
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
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

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
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

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
