package handler

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/usecase"
)

type reconciliationServiceStub struct {
	applyFn     func(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error)
	createFn    func(ctx context.Context, userID string, opening decimal.Decimal) (*domain.Profile, error)
	profileFn   func(ctx context.Context, userID string) (*domain.Profile, error)
	balanceFn   func(ctx context.Context, userID string) (decimal.Decimal, error)
	entriesFn   func(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error)
	reconcileFn func(ctx context.Context, userID string) (*usecase.ReconciliationResult, error)
}

func (s *reconciliationServiceStub) ApplyBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error) {
	return s.applyFn(ctx, req)
}

func (s *reconciliationServiceStub) CreateProfile(ctx context.Context, userID string, opening decimal.Decimal) (*domain.Profile, error) {
	return s.createFn(ctx, userID, opening)
}

func (s *reconciliationServiceStub) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.profileFn(ctx, userID)
}

func (s *reconciliationServiceStub) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.balanceFn(ctx, userID)
}

func (s *reconciliationServiceStub) ListEntries(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	return s.entriesFn(ctx, userID, limit, offset)
}

func (s *reconciliationServiceStub) ReconcileProfile(ctx context.Context, userID string) (*usecase.ReconciliationResult, error) {
	return s.reconcileFn(ctx, userID)
}
