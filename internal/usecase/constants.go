package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultMaxRetries is how many failed sync attempts an entry gets before
	// it is parked in conflict.
	DefaultMaxRetries = 5

	// DefaultRetentionHorizon is how long synced entries are kept on the device.
	DefaultRetentionHorizon = 30 * 24 * time.Hour

	// DefaultSyncInterval is the period of the background sync loop.
	DefaultSyncInterval = 30 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)
