package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/offledger/internal/adapter/http/middleware"
	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/auth"
	"github.com/iho/offledger/internal/infrastructure/metrics"
	"github.com/iho/offledger/internal/usecase"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1, nil)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"user_id":"alice","opening_balance":"10"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !store.updateCalled {
		t.Fatalf("expected successful response to be stored")
	}
}

func TestNewRouter_AuthGuardsUserRoutes(t *testing.T) {
	verifier := stubVerifier{tokens: map[string]string{"alice-token": "alice"}}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.TokenVerifier = verifier
	}))

	do := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("/api/v1/users/alice/balance", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := do("/api/v1/users/alice/balance", "alice-token"); code != http.StatusOK {
		t.Fatalf("expected 200 for own balance, got %d", code)
	}
	if code := do("/api/v1/users/bob/balance", "alice-token"); code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's balance, got %d", code)
	}
	if code := do("/health", ""); code != http.StatusOK {
		t.Fatalf("expected health to stay public, got %d", code)
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /api/v1/profiles",
		"GET /api/v1/users/{userID}/",
		"GET /api/v1/users/{userID}/balance",
		"GET /api/v1/users/{userID}/reconcile",
		"GET /api/v1/users/{userID}/entries",
		"POST /api/v1/users/{userID}/batches",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered, have %v", route, seen)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	svc := stubService{}

	cfg := RouterConfig{
		HealthHandler:  handler.NewHealthHandler(nil),
		ProfileHandler: handler.NewProfileHandler(svc),
		BatchHandler:   handler.NewBatchHandler(svc),
		EntryHandler:   handler.NewEntryHandler(svc),
		Metrics:        metrics.NewWithRegistry(prometheus.NewRegistry()),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubService struct{}

func (stubService) ApplyBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error) {
	return domain.NewBatchResult(req.BatchID), nil
}

func (stubService) CreateProfile(ctx context.Context, userID string, opening decimal.Decimal) (*domain.Profile, error) {
	return &domain.Profile{UserID: userID, Balance: opening, OpeningBalance: opening}, nil
}

func (stubService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return &domain.Profile{UserID: userID}, nil
}

func (stubService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (stubService) ListEntries(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	return []*domain.LedgerEntry{}, nil
}

func (stubService) ReconcileProfile(ctx context.Context, userID string) (*usecase.ReconciliationResult, error) {
	return &usecase.ReconciliationResult{UserID: userID, IsReconciled: true}, nil
}

type stubVerifier struct {
	tokens map[string]string
}

func (s stubVerifier) Verify(token string) (*auth.Claims, error) {
	userID, ok := s.tokens[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return &auth.Claims{UserID: userID}, nil
}

type stubIdempotencyStore struct {
	checkCalled  bool
	updateCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.updateCalled = true
	return nil
}

func (s *stubIdempotencyStore) Release(ctx context.Context, key string) error {
	return nil
}
