package sqlite

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
)

// TransactionModel is the local row of an offline transaction.
// Amounts are stored as TEXT so no precision is lost.
type TransactionModel struct {
	CreatedAt       time.Time       `gorm:"not null"`
	ClientTimestamp time.Time       `gorm:"not null"`
	LastSyncAttempt *time.Time
	RecipientID     *string         `gorm:"size:128"`
	OfflineID       string          `gorm:"size:64;uniqueIndex;not null"`
	UserID          string          `gorm:"size:128;index;not null"`
	Kind            string          `gorm:"size:8;not null"`
	Description     string          `gorm:"size:512"`
	Signature       string          `gorm:"size:128;not null"`
	SyncStatus      string          `gorm:"size:16;index;not null"`
	FailureReason   string
	Amount          decimal.Decimal `gorm:"type:text;not null"`
	Seq             int64           `gorm:"primaryKey;autoIncrement"`
	RetryCount      int             `gorm:"not null;default:0"`
}

// TableName overrides the gorm default.
func (TransactionModel) TableName() string { return "transactions" }

// WalletModel is the local row of a wallet projection.
type WalletModel struct {
	LastUpdated     time.Time `gorm:"not null"`
	LastSyncSuccess *time.Time
	UserID          string          `gorm:"primaryKey;size:128"`
	CachedBalance   decimal.Decimal `gorm:"type:text;not null"`
	ShadowBalance   decimal.Decimal `gorm:"type:text;not null"`
	PendingDebits   decimal.Decimal `gorm:"type:text;not null"`
	PendingCredits  decimal.Decimal `gorm:"type:text;not null"`
}

// TableName overrides the gorm default.
func (WalletModel) TableName() string { return "wallet_states" }

func toTransactionModel(t *domain.Transaction) *TransactionModel {
	return &TransactionModel{
		Seq:             t.Seq,
		OfflineID:       t.OfflineID,
		UserID:          t.UserID,
		RecipientID:     t.RecipientID,
		Kind:            string(t.Kind),
		Amount:          t.Amount,
		Description:     t.Description,
		ClientTimestamp: t.ClientTimestamp.UTC(),
		Signature:       t.Signature,
		SyncStatus:      string(t.SyncStatus),
		RetryCount:      t.RetryCount,
		LastSyncAttempt: utcPtr(t.LastSyncAttempt),
		FailureReason:   t.FailureReason,
		CreatedAt:       t.CreatedAt.UTC(),
	}
}

func (m *TransactionModel) toDomain() *domain.Transaction {
	return &domain.Transaction{
		Seq:             m.Seq,
		OfflineID:       m.OfflineID,
		UserID:          m.UserID,
		RecipientID:     m.RecipientID,
		Kind:            domain.Kind(m.Kind),
		Amount:          m.Amount,
		Description:     m.Description,
		ClientTimestamp: m.ClientTimestamp.UTC(),
		Signature:       m.Signature,
		SyncStatus:      domain.SyncStatus(m.SyncStatus),
		RetryCount:      m.RetryCount,
		LastSyncAttempt: utcPtr(m.LastSyncAttempt),
		FailureReason:   m.FailureReason,
		CreatedAt:       m.CreatedAt.UTC(),
	}
}

func toWalletModel(w *domain.WalletState) *WalletModel {
	return &WalletModel{
		UserID:          w.UserID,
		CachedBalance:   w.CachedBalance,
		ShadowBalance:   w.ShadowBalance,
		PendingDebits:   w.PendingDebits,
		PendingCredits:  w.PendingCredits,
		LastUpdated:     w.LastUpdated.UTC(),
		LastSyncSuccess: utcPtr(w.LastSyncSuccess),
	}
}

func (m *WalletModel) toDomain() *domain.WalletState {
	return &domain.WalletState{
		UserID:          m.UserID,
		CachedBalance:   m.CachedBalance,
		ShadowBalance:   m.ShadowBalance,
		PendingDebits:   m.PendingDebits,
		PendingCredits:  m.PendingCredits,
		LastUpdated:     m.LastUpdated.UTC(),
		LastSyncSuccess: utcPtr(m.LastSyncSuccess),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()

	return &u
}
