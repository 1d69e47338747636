package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
)

// LedgerStoreConfig configures a LedgerStore.
type LedgerStoreConfig struct {
	Transactions     LocalTransactionRepository
	Wallets          WalletRepository
	Signer           TransactionSigner
	IDGen            IDGenerator
	Logger           zerolog.Logger
	Now              func() time.Time
	RetentionHorizon time.Duration
	StaleAfter       time.Duration
}

// LedgerStore is the only writer of local transactions and wallet state.
// Every status change goes through it and is followed by a wallet recompute.
type LedgerStore struct {
	mu         sync.Mutex
	txRepo     LocalTransactionRepository
	walletRepo WalletRepository
	signer     TransactionSigner
	idGen      IDGenerator
	logger     zerolog.Logger
	now        func() time.Time
	retention  time.Duration
	staleAfter time.Duration
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(cfg LedgerStoreConfig) *LedgerStore {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.RetentionHorizon <= 0 {
		cfg.RetentionHorizon = DefaultRetentionHorizon
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = domain.DefaultStaleAfter
	}

	return &LedgerStore{
		txRepo:     cfg.Transactions,
		walletRepo: cfg.Wallets,
		signer:     cfg.Signer,
		idGen:      cfg.IDGen,
		logger:     cfg.Logger.With().Str("component", "ledger_store").Logger(),
		now:        cfg.Now,
		retention:  cfg.RetentionHorizon,
		staleAfter: cfg.StaleAfter,
	}
}

// CreateTransactionInput represents input for recording a transaction.
type CreateTransactionInput struct {
	RecipientID *string
	UserID      string
	Description string
	Kind        domain.Kind
	Amount      decimal.Decimal
}

// BalanceView is the user-facing projection of a wallet.
type BalanceView struct {
	LastSyncSuccess *time.Time
	UserID          string
	ShadowBalance   decimal.Decimal
	CachedBalance   decimal.Decimal
	PendingDebits   decimal.Decimal
	PendingCredits  decimal.Decimal
	Stale           bool
}

// SyncSnapshot is the set of entries claimed by one sync cycle, in creation order.
type SyncSnapshot struct {
	prior   map[string]domain.SyncStatus
	UserID  string
	Entries []*domain.Transaction
}

// OfflineIDs lists the snapshot's entries in order.
func (s *SyncSnapshot) OfflineIDs() []string {
	ids := make([]string, len(s.Entries))
	for i, t := range s.Entries {
		ids[i] = t.OfflineID
	}
	return ids
}

// Contains reports whether offlineID belongs to the snapshot.
func (s *SyncSnapshot) Contains(offlineID string) bool {
	_, ok := s.prior[offlineID]
	return ok
}

// CreateTransaction validates, signs and persists a new pending transaction.
func (s *LedgerStore) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*domain.Transaction, error) {
	now := s.now()

	recipient := input.RecipientID
	if recipient != nil && strings.TrimSpace(*recipient) == "" {
		recipient = nil
	}

	t := &domain.Transaction{
		OfflineID:       s.idGen.Generate(),
		UserID:          strings.TrimSpace(input.UserID),
		RecipientID:     recipient,
		Kind:            input.Kind,
		Amount:          input.Amount,
		Description:     input.Description,
		ClientTimestamp: now.Truncate(time.Millisecond),
		SyncStatus:      domain.SyncStatusPending,
		CreatedAt:       now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	s.signer.SignTransaction(t)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.txRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	if _, err := s.recomputeLocked(ctx, t.UserID); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("offline_id", t.OfflineID).
		Str("user_id", t.UserID).
		Str("kind", string(t.Kind)).
		Str("amount", t.Amount.String()).
		Msg("transaction recorded")

	return t, nil
}

// Get returns a single local transaction.
func (s *LedgerStore) Get(ctx context.Context, offlineID string) (*domain.Transaction, error) {
	return s.txRepo.GetByOfflineID(ctx, offlineID)
}

// ListPending returns the user's outstanding entries in creation order.
func (s *LedgerStore) ListPending(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	return s.txRepo.ListByUser(ctx, userID, domain.OutstandingStatuses()...)
}

// BeginSync claims every outstanding entry of the user for one sync cycle.
func (s *LedgerStore) BeginSync(ctx context.Context, userID string) (*SyncSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.txRepo.ListByUser(ctx, userID, domain.OutstandingStatuses()...)
	if err != nil {
		return nil, err
	}

	snap := &SyncSnapshot{
		UserID:  userID,
		Entries: txs,
		prior:   make(map[string]domain.SyncStatus, len(txs)),
	}

	now := s.now()
	for _, t := range txs {
		prior := t.SyncStatus
		// left over from an interrupted cycle
		if prior == domain.SyncStatusSyncing {
			prior = domain.SyncStatusPending
		} else if err := t.Transition(domain.SyncStatusSyncing); err != nil {
			return nil, err
		}

		snap.prior[t.OfflineID] = prior
		t.LastSyncAttempt = &now

		if err := s.txRepo.Update(ctx, t); err != nil {
			return nil, fmt.Errorf("claim %s: %w", t.OfflineID, err)
		}
	}

	return snap, nil
}

// ReleaseSyncing returns entries still in syncing to the status they had
// before the cycle. With no ids every entry of the snapshot is released.
func (s *LedgerStore) ReleaseSyncing(ctx context.Context, snap *SyncSnapshot, offlineIDs ...string) error {
	if len(offlineIDs) == 0 {
		offlineIDs = snap.OfflineIDs()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, id := range offlineIDs {
		prior, ok := snap.prior[id]
		if !ok {
			continue
		}

		t, err := s.txRepo.GetByOfflineID(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if t.SyncStatus != domain.SyncStatusSyncing {
			continue
		}

		if err := t.Transition(prior); err != nil {
			errs = append(errs, err)
			continue
		}

		if err := s.txRepo.Update(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := s.recomputeLocked(ctx, snap.UserID); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// MarkSynced moves the given entries to synced. Already synced entries are skipped.
func (s *LedgerStore) MarkSynced(ctx context.Context, offlineIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[string]struct{})

	var errs []error
	for _, id := range offlineIDs {
		t, err := s.txRepo.GetByOfflineID(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		users[t.UserID] = struct{}{}

		if t.SyncStatus == domain.SyncStatusSynced {
			continue
		}

		if err := t.Transition(domain.SyncStatusSynced); err != nil {
			errs = append(errs, err)
			continue
		}

		t.FailureReason = ""

		if err := s.txRepo.Update(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}

	for userID := range users {
		if _, err := s.recomputeLocked(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// MarkFailed records a rejected attempt. Once the retry count reaches
// maxRetries the entry is parked in conflict. It returns the resulting status.
func (s *LedgerStore) MarkFailed(ctx context.Context, offlineID, reason string, maxRetries int) (domain.SyncStatus, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.txRepo.GetByOfflineID(ctx, offlineID)
	if err != nil {
		return "", err
	}

	if t.SyncStatus.IsTerminal() {
		return t.SyncStatus, nil
	}

	next := domain.SyncStatusFailed
	if t.RetryCount+1 >= maxRetries {
		next = domain.SyncStatusConflict
	}

	if err := t.Transition(next); err != nil {
		return t.SyncStatus, err
	}

	t.RetryCount++
	t.FailureReason = reason

	if err := s.txRepo.Update(ctx, t); err != nil {
		return "", err
	}

	if _, err := s.recomputeLocked(ctx, t.UserID); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("offline_id", t.OfflineID).
		Str("status", string(t.SyncStatus)).
		Int("retry_count", t.RetryCount).
		Str("reason", reason).
		Msg("sync attempt rejected")

	return t.SyncStatus, nil
}

// MarkConflict parks an entry until a manual retry.
func (s *LedgerStore) MarkConflict(ctx context.Context, offlineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.txRepo.GetByOfflineID(ctx, offlineID)
	if err != nil {
		return err
	}

	if t.SyncStatus.IsTerminal() {
		return nil
	}

	if err := t.Transition(domain.SyncStatusConflict); err != nil {
		return err
	}

	if err := s.txRepo.Update(ctx, t); err != nil {
		return err
	}

	_, err = s.recomputeLocked(ctx, t.UserID)
	return err
}

// Retry puts a failed or conflicted entry back in the queue.
func (s *LedgerStore) Retry(ctx context.Context, offlineID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.txRepo.GetByOfflineID(ctx, offlineID)
	if err != nil {
		return nil, err
	}

	switch t.SyncStatus {
	case domain.SyncStatusPending:
		return t, nil
	case domain.SyncStatusConflict:
		t.RetryCount = 0
	}

	if err := t.Transition(domain.SyncStatusPending); err != nil {
		return nil, err
	}

	t.FailureReason = ""

	if err := s.txRepo.Update(ctx, t); err != nil {
		return nil, err
	}

	if _, err := s.recomputeLocked(ctx, t.UserID); err != nil {
		return nil, err
	}

	return t, nil
}

// ClearTerminalFailed deletes the user's conflict entries.
func (s *LedgerStore) ClearTerminalFailed(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.txRepo.DeleteByStatus(ctx, userID, domain.SyncStatusConflict, time.Time{})
	if err != nil {
		return 0, err
	}

	if _, err := s.recomputeLocked(ctx, userID); err != nil {
		return n, err
	}

	return n, nil
}

// PurgeSynced deletes synced entries older than the retention horizon.
func (s *LedgerStore) PurgeSynced(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)

	n, err := s.txRepo.DeleteByStatus(ctx, userID, domain.SyncStatusSynced, cutoff)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info().Str("user_id", userID).Int64("purged", n).Msg("synced entries purged")
	}

	return n, nil
}

// RecomputeWallet rederives the shadow balance from the cached balance and
// the outstanding entries.
func (s *LedgerStore) RecomputeWallet(ctx context.Context, userID string) (*domain.WalletState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recomputeLocked(ctx, userID)
}

// ApplyAuthoritativeBalance records a balance confirmed by the server.
func (s *LedgerStore) ApplyAuthoritativeBalance(ctx context.Context, userID string, balance decimal.Decimal, at time.Time) (*domain.WalletState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.loadWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	w.CachedBalance = balance
	w.LastSyncSuccess = &at

	return s.saveRecomputed(ctx, w)
}

// SeedWallet creates the user's wallet from the authoritative opening balance.
// An existing wallet is returned unchanged.
func (s *LedgerStore) SeedWallet(ctx context.Context, userID string, balance decimal.Decimal) (*domain.WalletState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.walletRepo.Get(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		return nil, err
	}

	now := s.now()
	w = domain.NewWalletState(userID, balance, now)
	w.LastSyncSuccess = &now

	return s.saveRecomputed(ctx, w)
}

// GetShadowBalance returns the wallet projection without modifying it.
func (s *LedgerStore) GetShadowBalance(ctx context.Context, userID string) (*BalanceView, error) {
	s.mu.Lock()
	w, err := s.loadWallet(ctx, userID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &BalanceView{
		UserID:          w.UserID,
		ShadowBalance:   w.ShadowBalance,
		CachedBalance:   w.CachedBalance,
		PendingDebits:   w.PendingDebits,
		PendingCredits:  w.PendingCredits,
		LastSyncSuccess: w.LastSyncSuccess,
		Stale:           w.IsStale(s.now(), s.staleAfter),
	}, nil
}

func (s *LedgerStore) loadWallet(ctx context.Context, userID string) (*domain.WalletState, error) {
	w, err := s.walletRepo.Get(ctx, userID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		return domain.NewWalletState(userID, decimal.Zero, s.now()), nil
	}
	return w, err
}

func (s *LedgerStore) recomputeLocked(ctx context.Context, userID string) (*domain.WalletState, error) {
	w, err := s.loadWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.saveRecomputed(ctx, w)
}

func (s *LedgerStore) saveRecomputed(ctx context.Context, w *domain.WalletState) (*domain.WalletState, error) {
	txs, err := s.txRepo.ListByUser(ctx, w.UserID, domain.OutstandingStatuses()...)
	if err != nil {
		return nil, err
	}

	debits, credits := domain.PendingTotals(txs)
	w.Recompute(debits, credits, s.now())

	if err := s.walletRepo.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}

	return w, nil
}
