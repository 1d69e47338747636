package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/offledger/internal/adapter/http/handler"
	"github.com/iho/offledger/internal/adapter/http/middleware"
	"github.com/iho/offledger/internal/infrastructure/metrics"
	"github.com/iho/offledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ProfileHandler   *handler.ProfileHandler
	BatchHandler     *handler.BatchHandler
	EntryHandler     *handler.EntryHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	// TokenVerifier enables bearer authentication on /api/v1 when set.
	TokenVerifier  middleware.TokenVerifier
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.TokenVerifier != nil {
			r.Use(middleware.AuthMiddleware(cfg.TokenVerifier, cfg.Metrics))
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		r.Post("/profiles", cfg.ProfileHandler.Create)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(middleware.RequireUserParam("userID", cfg.Metrics))

			r.Get("/", cfg.ProfileHandler.Get)
			r.Get("/balance", cfg.ProfileHandler.Balance)
			r.Get("/reconcile", cfg.ProfileHandler.Reconcile)
			r.Get("/entries", cfg.EntryHandler.List)
			r.Post("/batches", cfg.BatchHandler.Apply)
		})
	})

	return r
}
