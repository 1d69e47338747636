package domain

import "errors"

var (
	// Transaction errors
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidKind         = errors.New("kind must be credit or debit")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrIllegalTransition   = errors.New("illegal sync status transition")

	// Wallet errors
	ErrWalletNotFound = errors.New("wallet state not found")

	// Reconciliation errors
	ErrProfileNotFound     = errors.New("profile not found")
	ErrProfileExists       = errors.New("profile already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLedgerInconsistent  = errors.New("ledger inconsistency detected")

	// Sync errors
	ErrTransport        = errors.New("transport failure")
	ErrOffline          = errors.New("network unreachable")
	ErrSyncInProgress   = errors.New("sync cycle already in flight")
	ErrEmptyBatchResult = errors.New("response carried no batch result")
)

// Authentication errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("token does not grant access to this user")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
)
