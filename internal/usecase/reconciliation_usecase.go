package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/metrics"
)

// ReconciliationUseCase applies device batches to the authoritative ledger.
type ReconciliationUseCase struct {
	txManager   TransactionManager
	profileRepo ProfileRepository
	entryRepo   LedgerEntryRepository
	outboxRepo  OutboxRepository
	verifier    SignatureVerifier
	cache       BalanceCache
	retrier     Retrier
	idGen       IDGenerator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case.
// verifier, cache, retrier and metrics are optional.
func NewReconciliationUseCase(
	txManager TransactionManager,
	profileRepo ProfileRepository,
	entryRepo LedgerEntryRepository,
	outboxRepo OutboxRepository,
	verifier SignatureVerifier,
	cache BalanceCache,
	retrier Retrier,
	idGen IDGenerator,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txManager:   txManager,
		profileRepo: profileRepo,
		entryRepo:   entryRepo,
		outboxRepo:  outboxRepo,
		verifier:    verifier,
		cache:       cache,
		retrier:     retrier,
		idGen:       idGen,
		metrics:     metrics,
		logger:      logger.With().Str("component", "reconciliation").Logger(),
	}
}

// ApplyBatch reconciles an ordered batch against the user's authoritative
// balance. Entries are evaluated in order against the running balance and
// the whole batch commits or nothing does.
func (uc *ReconciliationUseCase) ApplyBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	var result *domain.BatchResult
	op := func() error {
		r, err := uc.applyBatch(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}

	if err != nil {
		if uc.metrics != nil {
			uc.metrics.BatchesApplied.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.SetBalance(ctx, req.UserID, result.NewBalance); err != nil {
			uc.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("failed to refresh balance cache")
			_ = uc.cache.Invalidate(ctx, req.UserID)
		}
	}

	if uc.metrics != nil {
		uc.metrics.BatchesApplied.WithLabelValues("ok").Inc()
		uc.metrics.BatchDuration.Observe(time.Since(start).Seconds())
		uc.metrics.BatchSize.Observe(float64(len(req.Entries)))
		for _, rej := range result.Rejected {
			uc.metrics.EntriesRejected.WithLabelValues(string(rej.Reason)).Inc()
		}
	}

	uc.logger.Info().
		Str("user_id", req.UserID).
		Str("batch_id", req.BatchID).
		Int("entries", len(req.Entries)).
		Int("processed", len(result.Processed)).
		Int("rejected", len(result.Rejected)).
		Str("new_balance", result.NewBalance.String()).
		Msg("batch reconciled")

	return result, nil
}

func (uc *ReconciliationUseCase) applyBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// 1. Lock profile
	profile, err := uc.profileRepo.GetByUserIDForUpdate(txCtx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	// 2. Load entries already known by offline_id
	known, err := uc.entryRepo.GetByOfflineIDs(txCtx, tx, batchOfflineIDs(req.Entries))
	if err != nil {
		return nil, err
	}
	if known == nil {
		known = make(map[string]*domain.LedgerEntry)
	}

	// 3. Evaluate entries in order against the running balance
	now := time.Now().UTC()
	result := domain.NewBatchResult(req.BatchID)

	var applied, replayed int
	for _, e := range req.Entries {
		if prior, ok := known[e.OfflineID]; ok {
			if prior.UserID != req.UserID {
				result.Rejected = append(result.Rejected, domain.Rejection{OfflineID: e.OfflineID, Reason: domain.RejectDuplicateOfflineID})
				continue
			}
			result.Processed = append(result.Processed, e.OfflineID)
			replayed++
			continue
		}

		if reason, ok := uc.admit(req.UserID, profile, e); !ok {
			result.Rejected = append(result.Rejected, domain.Rejection{OfflineID: e.OfflineID, Reason: reason})
			continue
		}

		newBalance := profile.Apply(e.Kind, e.Amount)
		entry := &domain.LedgerEntry{
			ID:              uc.idGen.Generate(),
			OfflineID:       e.OfflineID,
			UserID:          req.UserID,
			RecipientID:     e.RecipientID,
			Kind:            e.Kind,
			Amount:          e.Amount,
			Description:     e.Description,
			Signature:       e.Signature,
			ClientTimestamp: e.ClientTimestamp,
			BalanceAfter:    newBalance,
			CreatedAt:       now,
		}

		if err := uc.entryRepo.Create(txCtx, tx, entry); err != nil {
			return nil, err
		}

		profile.Balance = newBalance
		known[e.OfflineID] = entry
		result.Processed = append(result.Processed, e.OfflineID)
		applied++

		if uc.metrics != nil {
			f, _ := e.Amount.Float64()
			uc.metrics.EntryAmount.Observe(f)
		}
	}

	// 4. Persist running balance
	if err := uc.profileRepo.UpdateBalance(txCtx, tx, req.UserID, profile.Balance, now); err != nil {
		return nil, err
	}

	result.NewBalance = profile.Balance

	// 5. Emit batch reconciled event
	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   req.UserID,
			AggregateType: domain.AggregateTypeProfile,
			EventType:     domain.EventTypeBatchReconciled,
			Payload: map[string]any{
				"batch_id":    req.BatchID,
				"user_id":     req.UserID,
				"processed":   len(result.Processed),
				"rejected":    len(result.Rejected),
				"new_balance": result.NewBalance.String(),
			},
			CreatedAt: now,
			Published: false,
		}
		if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesApplied.Add(float64(applied))
		uc.metrics.EntriesReplayed.Add(float64(replayed))
	}

	return result, nil
}

// admit decides whether a new entry may be applied on top of profile.
func (uc *ReconciliationUseCase) admit(userID string, profile *domain.Profile, e domain.BatchEntry) (domain.RejectReason, bool) {
	if strings.TrimSpace(e.Signature) == "" {
		return domain.RejectMissingSignature, false
	}

	// anything the ledger_entries columns cannot hold is refused here, not by Postgres
	if !e.Kind.IsValid() ||
		len(e.Signature) > domain.MaxSignatureLength ||
		domain.ValidateAmount(e.Amount) != nil ||
		domain.ValidateDescription(e.Description) != nil ||
		domain.ValidateRecipientID(e.RecipientID, userID) != nil {
		return domain.RejectInvalidEntry, false
	}

	if uc.verifier != nil && !uc.verifier.VerifyEntry(userID, e) {
		return domain.RejectInvalidSignature, false
	}

	if e.Kind == domain.KindDebit {
		if err := profile.ValidateDebit(e.Amount); err != nil {
			return domain.RejectInsufficientBalance, false
		}
	}

	return "", true
}

// GetBalance returns the authoritative balance, served from cache when possible.
func (uc *ReconciliationUseCase) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if uc.cache != nil {
		balance, ok, err := uc.cache.GetBalance(ctx, userID)
		if err != nil {
			uc.logger.Warn().Err(err).Str("user_id", userID).Msg("balance cache lookup failed")
		}
		if ok {
			uc.observeCache("hit")
			return balance, nil
		}
		uc.observeCache("miss")
	}

	profile, err := uc.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	if uc.cache != nil {
		if err := uc.cache.SetBalance(ctx, userID, profile.Balance); err != nil {
			uc.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to cache balance")
		}
	}

	return profile.Balance, nil
}

// GetProfile returns the authoritative profile, bypassing the cache.
func (uc *ReconciliationUseCase) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return uc.profileRepo.GetByUserID(ctx, userID)
}

// CreateProfile opens an authoritative balance for a user.
func (uc *ReconciliationUseCase) CreateProfile(ctx context.Context, userID string, openingBalance decimal.Decimal) (*domain.Profile, error) {
	userID = strings.TrimSpace(userID)
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	if openingBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	if !openingBalance.Equal(openingBalance.Round(domain.AmountScale)) {
		return nil, domain.ErrAmountPrecision
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()
	profile := &domain.Profile{
		UserID:         userID,
		Balance:        openingBalance,
		OpeningBalance: openingBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.profileRepo.Create(txCtx, tx, profile); err != nil {
		return nil, err
	}

	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   userID,
			AggregateType: domain.AggregateTypeProfile,
			EventType:     domain.EventTypeProfileCreated,
			Payload: map[string]any{
				"user_id":         userID,
				"opening_balance": openingBalance.String(),
			},
			CreatedAt: now,
			Published: false,
		}
		if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ProfilesCreated.Inc()
	}

	return profile, nil
}

// ListEntries lists a user's ledger entries in application order.
func (uc *ReconciliationUseCase) ListEntries(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}

	return uc.entryRepo.ListByUser(ctx, userID, limit, offset)
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	LastChecked       time.Time
	UserID            string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
}

// ReconcileProfile checks the stored balance against opening balance plus
// the sum of the user's ledger entries.
func (uc *ReconciliationUseCase) ReconcileProfile(ctx context.Context, userID string) (*ReconciliationResult, error) {
	profile, err := uc.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	credits, debits, err := uc.entryRepo.SumByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum entries of %s: %w", userID, err)
	}

	calculated := profile.OpeningBalance.Add(credits).Sub(debits)
	result := &ReconciliationResult{
		UserID:            userID,
		RecordedBalance:   profile.Balance,
		CalculatedBalance: calculated,
		Difference:        profile.Balance.Sub(calculated),
		IsReconciled:      profile.Balance.Equal(calculated),
		LastChecked:       time.Now().UTC(),
	}

	if uc.metrics != nil {
		label := "ok"
		if !result.IsReconciled {
			label = "mismatch"
		}
		uc.metrics.ReconciliationChecks.WithLabelValues(label).Inc()
	}

	if !result.IsReconciled {
		uc.logger.Error().
			Str("user_id", userID).
			Str("recorded", profile.Balance.String()).
			Str("calculated", calculated.String()).
			Msg("ledger inconsistency detected")
	}

	return result, nil
}

func (uc *ReconciliationUseCase) observeCache(result string) {
	if uc.metrics != nil {
		uc.metrics.BalanceCacheLookups.WithLabelValues(result).Inc()
	}
}

func batchOfflineIDs(entries []domain.BatchEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.OfflineID)
	}
	return ids
}
