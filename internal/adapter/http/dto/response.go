package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/usecase"
)

// ProfileResponse represents a profile in API responses.
type ProfileResponse struct {
	UserID         string          `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Version        int64           `json:"version"`
	LastSyncedAt   *time.Time      `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProfileFromDomain converts a domain profile to a response.
func ProfileFromDomain(p *domain.Profile) *ProfileResponse {
	return &ProfileResponse{
		UserID:         p.UserID,
		Balance:        p.Balance,
		OpeningBalance: p.OpeningBalance,
		Version:        p.Version,
		LastSyncedAt:   p.LastSyncedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// BalanceResponse is the authoritative balance of a user.
type BalanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID              string          `json:"id"`
	Sequence        int64           `json:"sequence"`
	OfflineID       string          `json:"offline_id"`
	UserID          string          `json:"user_id"`
	RecipientID     *string         `json:"recipient_id,omitempty"`
	Kind            domain.Kind     `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	Description     string          `json:"description,omitempty"`
	ClientTimestamp time.Time       `json:"client_timestamp"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EntryFromDomain converts a domain ledger entry to a response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:              e.ID,
		Sequence:        e.Sequence,
		OfflineID:       e.OfflineID,
		UserID:          e.UserID,
		RecipientID:     e.RecipientID,
		Kind:            e.Kind,
		Amount:          e.Amount,
		BalanceAfter:    e.BalanceAfter,
		Description:     e.Description,
		ClientTimestamp: e.ClientTimestamp,
		CreatedAt:       e.CreatedAt,
	}
}

// EntriesFromDomain converts domain ledger entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// ReconciliationResponse reports whether a profile matches its ledger.
type ReconciliationResponse struct {
	UserID            string          `json:"user_id"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	IsReconciled      bool            `json:"is_reconciled"`
	LastChecked       time.Time       `json:"last_checked"`
}

// ReconciliationFromUseCase converts a reconciliation result to a response.
func ReconciliationFromUseCase(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		UserID:            r.UserID,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		IsReconciled:      r.IsReconciled,
		LastChecked:       r.LastChecked,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
