package handler

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/usecase"
)

// ReconciliationService defines the behavior needed by the API handlers.
type ReconciliationService interface {
	ApplyBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error)
	CreateProfile(ctx context.Context, userID string, openingBalance decimal.Decimal) (*domain.Profile, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	ListEntries(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error)
	ReconcileProfile(ctx context.Context, userID string) (*usecase.ReconciliationResult, error)
}
