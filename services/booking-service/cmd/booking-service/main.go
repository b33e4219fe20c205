package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/auth"
	"github.com/md-rashed-zaman/storefront/libs/config"
	"github.com/md-rashed-zaman/storefront/libs/db"
	"github.com/md-rashed-zaman/storefront/libs/httpx"
	"github.com/md-rashed-zaman/storefront/libs/kafkax"
	otelx "github.com/md-rashed-zaman/storefront/libs/otel"
	"github.com/md-rashed-zaman/storefront/libs/runtime"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/reservations"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/storefront/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/storefront/services/booking-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.LoadDotEnv()

	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	if err := run(ctx, service, logger); err != nil {
		logger.Error("booking-service exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return err
	}

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	if config.Bool("DB_MIGRATE", true) {
		if err := db.Migrate(ctx, pool, migrations.FS, ".", logger); err != nil {
			return err
		}
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true})
	}

	var (
		rdb         *redis.Client
		cache       *slotcache.Cache
		publicLimit httpx.Middleware
	)
	limit := config.Int("PUBLIC_RATE_LIMIT", 120)
	window := config.Duration("PUBLIC_RATE_WINDOW", time.Minute, time.Second)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer rdb.Close()
		cache = slotcache.New(rdb, config.Duration("SLOT_CACHE_TTL", 5*time.Minute, time.Second))
		publicLimit = httpx.NewRedisRateLimiter(rdb, limit, window, "rl:booking:public").Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Optional: true,
		})
	} else {
		publicLimit = httpx.NewRateLimiter(limit, window).Middleware()
	}

	m := metrics.New()
	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewBookingRepository(pool, outboxRepo)

	gateway := payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:    config.String("STRIPE_SECRET_KEY", ""),
		SuccessURL:   config.String("CHECKOUT_SUCCESS_URL", "http://localhost:3000/bookings/success"),
		CancelURL:    config.String("CHECKOUT_CANCEL_URL", "http://localhost:3000/bookings/cancel"),
		ExpiresAfter: config.Duration("CHECKOUT_EXPIRES_AFTER", 30*time.Minute, time.Minute),
	})
	var gw payments.Gateway
	if gateway != nil {
		gw = gateway
	} else {
		logger.Warn("stripe not configured; paid reservations stay pending without checkout")
	}

	availabilitySvc := availability.NewService(repo, cache, m, logger)
	reservationSvc := reservations.NewService(repo, gw, cache, m, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second, time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	grpcSrv := grpcserver.New(logger, 10*time.Second, readyChecks...)
	if _, err := grpcSrv.Start(ctx, ":"+grpcPort); err != nil {
		return err
	}

	jwtSecret := config.String("JWT_SECRET", "")
	jwks := jwksClient()
	if jwtSecret == "" && jwks == nil {
		logger.Warn("neither JWT_SECRET nor JWKS_URL set; every session will be rejected")
	}
	verifier := auth.NewVerifier(jwtSecret, jwks)
	h := handlers.New(availabilitySvc, reservationSvc, repo, handlers.WebhookConfig{
		StripeSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
		StripeTolerance: config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute, time.Second),
	}, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("GET /metrics", m.Handler())
	h.Register(mux, verifier, publicLimit)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id", "Idempotent-Replayed", "Retry-After"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(256<<10),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 10*time.Second, time.Second)),
		// Innermost: the mux sets r.Pattern on the request it receives.
		m.Middleware,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
}

func jwksClient() *auth.JWKSClient {
	url := config.String("JWKS_URL", "")
	if url == "" {
		return nil
	}
	return auth.NewJWKSClient(url, config.Duration("JWKS_CACHE_TTL", 5*time.Minute, time.Second), &http.Client{
		Timeout:   3 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}
