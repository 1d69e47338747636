package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
)

// PhaseReporter exposes the current sync phase of a user.
type PhaseReporter interface {
	Phase(userID string) SyncPhase
}

// QueueItem is a read-only view of one local entry.
type QueueItem struct {
	ClientTimestamp time.Time
	LastSyncAttempt *time.Time
	RecipientID     *string
	OfflineID       string
	Description     string
	FailureReason   string
	Kind            domain.Kind
	Status          domain.SyncStatus
	Amount          decimal.Decimal
	RetryCount      int
	NeedsAttention  bool
}

// QueueSummary aggregates the local queue of a user.
type QueueSummary struct {
	OldestPending   *time.Time
	LastSyncSuccess *time.Time
	Counts          map[domain.SyncStatus]int
	UserID          string
	Phase           SyncPhase
	PendingDebits   decimal.Decimal
	PendingCredits  decimal.Decimal
	ShadowBalance   decimal.Decimal
	CachedBalance   decimal.Decimal
	Outstanding     int
	NeedsAttention  int
	Stale           bool
}

// OldestPendingAge returns how long the oldest outstanding entry has waited.
func (s *QueueSummary) OldestPendingAge(now time.Time) time.Duration {
	if s.OldestPending == nil {
		return 0
	}
	return now.Sub(*s.OldestPending)
}

// QueueInspector provides read-only views over the local queue.
type QueueInspector struct {
	txRepo     LocalTransactionRepository
	walletRepo WalletRepository
	phases     PhaseReporter
	now        func() time.Time
	staleAfter time.Duration
}

// NewQueueInspector creates a new QueueInspector. phases may be nil.
func NewQueueInspector(
	txRepo LocalTransactionRepository,
	walletRepo WalletRepository,
	phases PhaseReporter,
	staleAfter time.Duration,
) *QueueInspector {
	if staleAfter <= 0 {
		staleAfter = domain.DefaultStaleAfter
	}

	return &QueueInspector{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		phases:     phases,
		now:        func() time.Time { return time.Now().UTC() },
		staleAfter: staleAfter,
	}
}

// ListQueue returns every local entry of the user in creation order.
func (qi *QueueInspector) ListQueue(ctx context.Context, userID string) ([]QueueItem, error) {
	txs, err := qi.txRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]QueueItem, len(txs))
	for i, t := range txs {
		items[i] = QueueItem{
			OfflineID:       t.OfflineID,
			Kind:            t.Kind,
			Amount:          t.Amount,
			Description:     t.Description,
			RecipientID:     t.RecipientID,
			ClientTimestamp: t.ClientTimestamp,
			Status:          t.SyncStatus,
			RetryCount:      t.RetryCount,
			LastSyncAttempt: t.LastSyncAttempt,
			FailureReason:   t.FailureReason,
			NeedsAttention:  t.NeedsAttention(),
		}
	}

	return items, nil
}

// Summary aggregates the user's queue and wallet.
func (qi *QueueInspector) Summary(ctx context.Context, userID string) (*QueueSummary, error) {
	txs, err := qi.txRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &QueueSummary{
		UserID: userID,
		Counts: make(map[domain.SyncStatus]int),
		Phase:  PhaseIdle,
	}

	for _, t := range txs {
		summary.Counts[t.SyncStatus]++

		if t.NeedsAttention() {
			summary.NeedsAttention++
		}

		if !t.SyncStatus.IsOutstanding() {
			continue
		}

		summary.Outstanding++
		if summary.OldestPending == nil || t.CreatedAt.Before(*summary.OldestPending) {
			created := t.CreatedAt
			summary.OldestPending = &created
		}
	}

	summary.PendingDebits, summary.PendingCredits = domain.PendingTotals(txs)

	w, err := qi.walletRepo.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		w = domain.NewWalletState(userID, decimal.Zero, qi.now())
		w.Recompute(summary.PendingDebits, summary.PendingCredits, qi.now())
	case err != nil:
		return nil, err
	}

	summary.ShadowBalance = w.ShadowBalance
	summary.CachedBalance = w.CachedBalance
	summary.LastSyncSuccess = w.LastSyncSuccess
	summary.Stale = w.IsStale(qi.now(), qi.staleAfter)

	if qi.phases != nil {
		summary.Phase = qi.phases.Phase(userID)
	}

	return summary, nil
}
