package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction relative to its owner's balance.
type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

// IsValid reports whether k is credit or debit.
func (k Kind) IsValid() bool {
	return k == KindCredit || k == KindDebit
}

// Transaction is a monetary movement recorded on a device, possibly while offline.
// OfflineID is assigned once at creation and is the idempotency key everywhere.
type Transaction struct {
	CreatedAt       time.Time
	ClientTimestamp time.Time
	LastSyncAttempt *time.Time
	RecipientID     *string
	Seq             int64
	OfflineID       string
	UserID          string
	Description     string
	Signature       string
	FailureReason   string
	Kind            Kind
	SyncStatus      SyncStatus
	Amount          decimal.Decimal
	RetryCount      int
}

// Validate checks the creation-time invariants.
func (t *Transaction) Validate() error {
	if err := ValidateUserID(t.UserID); err != nil {
		return err
	}

	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}

	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}

	if err := ValidateRecipientID(t.RecipientID, t.UserID); err != nil {
		return err
	}

	return ValidateDescription(t.Description)
}

// Transition moves the transaction to next if the transition table allows it.
func (t *Transaction) Transition(next SyncStatus) error {
	if !t.SyncStatus.CanTransitionTo(next) {
		return illegalTransition(t.SyncStatus, next)
	}

	t.SyncStatus = next

	return nil
}

// SignedAmount returns the effect of the transaction on its owner's balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Kind == KindDebit {
		return t.Amount.Neg()
	}

	return t.Amount
}

// NeedsAttention reports whether the entry requires user action.
func (t *Transaction) NeedsAttention() bool {
	return t.SyncStatus == SyncStatusFailed || t.SyncStatus == SyncStatusConflict
}
