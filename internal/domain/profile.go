package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Profile holds the authoritative balance of a user.
type Profile struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastSyncedAt   *time.Time
	UserID         string
	Balance        decimal.Decimal
	OpeningBalance decimal.Decimal
	Version        int64
}

// ValidateDebit checks the running balance covers amount.
func (p *Profile) ValidateDebit(amount decimal.Decimal) error {
	if amount.GreaterThan(p.Balance) {
		return ErrInsufficientBalance
	}
	return nil
}

// Apply returns the balance after applying an entry of kind and amount.
func (p *Profile) Apply(kind Kind, amount decimal.Decimal) decimal.Decimal {
	if kind == KindDebit {
		return p.Balance.Sub(amount)
	}
	return p.Balance.Add(amount)
}

// LedgerEntry is the append-only authoritative record of an accepted transaction.
type LedgerEntry struct {
	CreatedAt       time.Time
	ClientTimestamp time.Time
	RecipientID     *string
	ID              string
	OfflineID       string
	UserID          string
	Description     string
	Signature       string
	Kind            Kind
	Amount          decimal.Decimal
	BalanceAfter    decimal.Decimal
	Sequence        int64
}

// SignedAmount returns the effect of the entry on its owner's balance.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Kind == KindDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}
