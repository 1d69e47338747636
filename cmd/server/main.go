package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/offledger/internal/adapter/http"
	"github.com/iho/offledger/internal/adapter/http/handler"
	"github.com/iho/offledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/offledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/offledger/internal/adapter/repository/redis"
	"github.com/iho/offledger/internal/infrastructure/auth"
	"github.com/iho/offledger/internal/infrastructure/config"
	"github.com/iho/offledger/internal/infrastructure/eventpublisher"
	"github.com/iho/offledger/internal/infrastructure/idgen"
	"github.com/iho/offledger/internal/infrastructure/logger"
	"github.com/iho/offledger/internal/infrastructure/metrics"
	"github.com/iho/offledger/internal/infrastructure/postgres"
	"github.com/iho/offledger/internal/infrastructure/redis"
	"github.com/iho/offledger/internal/infrastructure/signing"
	"github.com/iho/offledger/internal/usecase"
)

// limiterIdleTimeout is how long an unused per-IP limiter is kept.
const limiterIdleTimeout = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "offledger-server"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, &log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, redis.Config{
		URL:         cfg.RedisURL,
		PoolSize:    cfg.RedisPoolSize,
		DialTimeout: cfg.RedisDialTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	profileRepo := postgresRepo.NewProfileRepository(pool)
	entryRepo := postgresRepo.NewLedgerEntryRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	balanceCache := redisRepo.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)
	idGen := idgen.NewULIDGenerator()

	var verifier usecase.SignatureVerifier
	if cfg.SigningSecret != "" {
		verifier = signing.NewHMACSigner(cfg.SigningSecret)
	} else {
		log.Warn().Msg("SIGNING_SECRET is empty, entry fingerprints will not be verified")
	}

	reconciliationUC := usecase.NewReconciliationUseCase(
		txManager,
		profileRepo,
		entryRepo,
		outboxRepo,
		verifier,
		balanceCache,
		postgresRepo.NewRetrier(log),
		idGen,
		m,
		log,
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	routerCfg := httpAdapter.RouterConfig{
		ProfileHandler:   handler.NewProfileHandler(reconciliationUC),
		BatchHandler:     handler.NewBatchHandler(reconciliationUC),
		EntryHandler:     handler.NewEntryHandler(reconciliationUC),
		HealthHandler:    handler.NewHealthHandler(healthChecks(pool, redisClient)),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		Metrics:          m,
		Logger:           log,
	}
	if cfg.AuthEnabled {
		routerCfg.TokenVerifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	} else {
		log.Warn().Msg("authentication disabled")
	}

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewRedisStreamPublisher(redisClient, cfg.EventStream),
		Logger:     log,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	go func() {
		if err := publisher.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()
	go cleanupLimiters(workerCtx, rateLimiter, log)

	server := newHTTPServer(cfg, httpAdapter.NewRouter(routerCfg))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

func healthChecks(pool *pgxpool.Pool, client *goredis.Client) map[string]handler.HealthCheck {
	return map[string]handler.HealthCheck{
		"postgres": pool.Ping,
		"redis":    redis.Ping(client),
	}
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter, log zerolog.Logger) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.CleanupLimiters(limiterIdleTimeout); n > 0 {
				log.Debug().Int("removed", n).Msg("dropped idle rate limiters")
			}
		}
	}
}
