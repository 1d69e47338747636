package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
)

// ProfileRepository defines data access for authoritative balances.
type ProfileRepository interface {
	Create(ctx context.Context, tx Transaction, profile *domain.Profile) error
	GetByUserID(ctx context.Context, userID string) (*domain.Profile, error)
	GetByUserIDForUpdate(ctx context.Context, tx Transaction, userID string) (*domain.Profile, error)
	UpdateBalance(ctx context.Context, tx Transaction, userID string, balance decimal.Decimal, syncedAt time.Time) error
}

// LedgerEntryRepository defines data access for authoritative ledger entries.
type LedgerEntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	GetByOfflineIDs(ctx context.Context, tx Transaction, offlineIDs []string) (map[string]*domain.LedgerEntry, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error)
	SumByUser(ctx context.Context, userID string) (credits, debits decimal.Decimal, err error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// BalanceCache caches authoritative balances between batches.
type BalanceCache interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, bool, error)
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error
	Invalidate(ctx context.Context, userID string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key whose request did not complete, so it may be retried.
	Release(ctx context.Context, key string) error
}

// SignatureVerifier checks the fingerprint of a submitted entry.
type SignatureVerifier interface {
	VerifyEntry(userID string, entry domain.BatchEntry) bool
}

// LocalTransactionRepository defines device-side storage of offline transactions.
type LocalTransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByOfflineID(ctx context.Context, offlineID string) (*domain.Transaction, error)
	// ListByUser returns entries in creation order. No statuses means all.
	ListByUser(ctx context.Context, userID string, statuses ...domain.SyncStatus) ([]*domain.Transaction, error)
	Update(ctx context.Context, t *domain.Transaction) error
	// DeleteByStatus removes entries in status created before the cutoff.
	// A zero cutoff removes all of them.
	DeleteByStatus(ctx context.Context, userID string, status domain.SyncStatus, before time.Time) (int64, error)
}

// WalletRepository defines device-side storage of wallet projections.
type WalletRepository interface {
	Get(ctx context.Context, userID string) (*domain.WalletState, error)
	Save(ctx context.Context, wallet *domain.WalletState) error
}

// TransactionSigner stamps a transaction with its fingerprint.
type TransactionSigner interface {
	SignTransaction(t *domain.Transaction)
}

// ReconciliationClient is the device's view of the authoritative service.
type ReconciliationClient interface {
	ApplyBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error)
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// ConnectivityChecker reports whether the reconciliation service is reachable.
type ConnectivityChecker interface {
	Online(ctx context.Context) bool
}
