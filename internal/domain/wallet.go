package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultStaleAfter is how long a wallet may go without a successful sync
// before its cached balance is reported as possibly outdated.
const DefaultStaleAfter = 24 * time.Hour

// WalletState is the per-user local projection of the authoritative balance.
type WalletState struct {
	LastUpdated     time.Time
	LastSyncSuccess *time.Time
	UserID          string
	CachedBalance   decimal.Decimal
	ShadowBalance   decimal.Decimal
	PendingDebits   decimal.Decimal
	PendingCredits  decimal.Decimal
}

// NewWalletState creates a wallet seeded with an authoritative balance.
func NewWalletState(userID string, seed decimal.Decimal, now time.Time) *WalletState {
	return &WalletState{
		UserID:         userID,
		CachedBalance:  seed,
		ShadowBalance:  seed,
		PendingDebits:  decimal.Zero,
		PendingCredits: decimal.Zero,
		LastUpdated:    now,
	}
}

// Recompute derives the shadow balance from the cached balance and the
// aggregates of outstanding entries.
func (w *WalletState) Recompute(pendingDebits, pendingCredits decimal.Decimal, now time.Time) {
	w.PendingDebits = pendingDebits
	w.PendingCredits = pendingCredits
	w.ShadowBalance = w.CachedBalance.Sub(pendingDebits).Add(pendingCredits)
	w.LastUpdated = now
}

// IsStale reports whether the wallet has not synced successfully within horizon.
func (w *WalletState) IsStale(now time.Time, horizon time.Duration) bool {
	if w.LastSyncSuccess == nil {
		return true
	}

	return now.Sub(*w.LastSyncSuccess) > horizon
}

// PendingTotals sums the debits and credits not yet judged by the server.
func PendingTotals(txs []*Transaction) (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero

	for _, t := range txs {
		if !t.SyncStatus.CountsTowardShadow() {
			continue
		}

		switch t.Kind {
		case KindDebit:
			debits = debits.Add(t.Amount)
		case KindCredit:
			credits = credits.Add(t.Amount)
		}
	}

	return debits, credits
}
