package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
)

// SyncPhase is the state of a user's sync cycle.
type SyncPhase string

const (
	PhaseIdle       SyncPhase = "idle"
	PhaseCollecting SyncPhase = "collecting"
	PhaseSending    SyncPhase = "sending"
	PhaseApplying   SyncPhase = "applying-response"
	PhaseBackingOff SyncPhase = "backing-off"
)

// SyncEngineConfig configures a SyncEngine.
type SyncEngineConfig struct {
	Store          *LedgerStore
	Client         ReconciliationClient
	Connectivity   ConnectivityChecker
	IDGen          IDGenerator
	Logger         zerolog.Logger
	Now            func() time.Time
	MaxRetries     int
	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// SyncResult summarizes one sync cycle.
type SyncResult struct {
	BatchID    string
	Synced     []string
	Rejected   []domain.Rejection
	Conflicted []string
	Untouched  []string
	NewBalance decimal.Decimal
	Submitted  int
}

// Empty reports whether the cycle had nothing to send.
func (r *SyncResult) Empty() bool {
	return r.Submitted == 0
}

// SyncEngine replicates outstanding local entries to the reconciliation service.
// At most one cycle per user is in flight.
type SyncEngine struct {
	mu             sync.Mutex
	phases         map[string]SyncPhase
	store          *LedgerStore
	client         ReconciliationClient
	connectivity   ConnectivityChecker
	idGen          IDGenerator
	logger         zerolog.Logger
	now            func() time.Time
	maxRetries     int
	interval       time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewSyncEngine creates a new SyncEngine.
func NewSyncEngine(cfg SyncEngineConfig) *SyncEngine {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}

	return &SyncEngine{
		phases:         make(map[string]SyncPhase),
		store:          cfg.Store,
		client:         cfg.Client,
		connectivity:   cfg.Connectivity,
		idGen:          cfg.IDGen,
		logger:         cfg.Logger.With().Str("component", "sync_engine").Logger(),
		now:            cfg.Now,
		maxRetries:     cfg.MaxRetries,
		interval:       cfg.Interval,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// Phase reports where the user's sync cycle currently is.
func (e *SyncEngine) Phase(userID string) SyncPhase {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.phases[userID]; ok {
		return p
	}
	return PhaseIdle
}

// SyncOnce runs a single sync cycle for the user.
func (e *SyncEngine) SyncOnce(ctx context.Context, userID string) (*SyncResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrNotAuthenticated
	}

	if e.connectivity != nil && !e.connectivity.Online(ctx) {
		return nil, domain.ErrOffline
	}

	if !e.acquire(userID) {
		return nil, domain.ErrSyncInProgress
	}
	defer e.release(userID)

	// 1. Collect
	snap, err := e.store.BeginSync(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("collect outstanding entries: %w", err)
	}

	if len(snap.Entries) == 0 {
		return &SyncResult{}, nil
	}

	// 2. Send
	batchID := e.idGen.Generate()
	req := domain.NewBatchRequest(batchID, userID, snap.Entries)

	e.setPhase(userID, PhaseSending)

	res, err := e.client.ApplyBatch(ctx, req)
	if err == nil && res == nil {
		err = domain.ErrEmptyBatchResult
	}
	if err == nil && res.BatchID != batchID {
		err = fmt.Errorf("%w: response for batch %s, sent %s", domain.ErrMalformedBatch, res.BatchID, batchID)
	}
	if err != nil {
		if rerr := e.store.ReleaseSyncing(context.WithoutCancel(ctx), snap); rerr != nil {
			e.logger.Error().Err(rerr).Str("user_id", userID).Msg("failed to release entries")
		}

		e.logger.Warn().Err(err).
			Str("user_id", userID).
			Str("batch_id", batchID).
			Int("entries", len(snap.Entries)).
			Msg("sync cycle aborted")

		return nil, err
	}

	// 3. Apply response
	e.setPhase(userID, PhaseApplying)

	result, err := e.applyResponse(context.WithoutCancel(ctx), snap, res)
	if err != nil {
		return result, err
	}

	e.logger.Info().
		Str("user_id", userID).
		Str("batch_id", batchID).
		Int("synced", len(result.Synced)).
		Int("rejected", len(result.Rejected)).
		Int("conflicted", len(result.Conflicted)).
		Str("new_balance", result.NewBalance.String()).
		Msg("sync cycle completed")

	return result, nil
}

func (e *SyncEngine) applyResponse(ctx context.Context, snap *SyncSnapshot, res *domain.BatchResult) (*SyncResult, error) {
	result := &SyncResult{
		BatchID:    res.BatchID,
		NewBalance: res.NewBalance,
		Submitted:  len(snap.Entries),
	}

	seen := make(map[string]bool, len(snap.Entries))

	var errs []error

	processed := make([]string, 0, len(res.Processed))
	for _, id := range res.Processed {
		if !snap.Contains(id) || seen[id] {
			e.logger.Warn().Str("offline_id", id).Msg("response names an entry outside the batch")
			continue
		}
		seen[id] = true
		processed = append(processed, id)
	}

	if err := e.store.MarkSynced(ctx, processed); err != nil {
		errs = append(errs, err)
	}
	result.Synced = processed

	for _, rej := range res.Rejected {
		if !snap.Contains(rej.OfflineID) || seen[rej.OfflineID] {
			e.logger.Warn().Str("offline_id", rej.OfflineID).Msg("response names an entry outside the batch")
			continue
		}
		seen[rej.OfflineID] = true

		status, err := e.store.MarkFailed(ctx, rej.OfflineID, string(rej.Reason), e.maxRetries)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		result.Rejected = append(result.Rejected, rej)
		if status == domain.SyncStatusConflict {
			result.Conflicted = append(result.Conflicted, rej.OfflineID)
		}
	}

	for _, id := range snap.OfflineIDs() {
		if !seen[id] {
			result.Untouched = append(result.Untouched, id)
		}
	}

	if len(result.Untouched) > 0 {
		if err := e.store.ReleaseSyncing(ctx, snap, result.Untouched...); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := e.store.ApplyAuthoritativeBalance(ctx, snap.UserID, res.NewBalance, e.now()); err != nil {
		errs = append(errs, err)
	}

	return result, errors.Join(errs...)
}

// Run syncs the user periodically until ctx is done or the session is rejected.
// Transport failures back off exponentially; a successful cycle resets the backoff.
func (e *SyncEngine) Run(ctx context.Context, userID string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialBackoff
	b.MaxInterval = e.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		wait := e.interval

		_, err := e.SyncOnce(ctx, userID)
		switch {
		case err == nil:
			b.Reset()
		case errors.Is(err, domain.ErrNotAuthenticated):
			e.logger.Error().Err(err).Str("user_id", userID).Msg("sync stopped")
			return err
		case errors.Is(err, domain.ErrOffline), errors.Is(err, domain.ErrSyncInProgress):
			e.logger.Debug().Err(err).Str("user_id", userID).Msg("sync skipped")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			wait = b.NextBackOff()
			e.setPhase(userID, PhaseBackingOff)
			e.logger.Warn().Err(err).
				Str("user_id", userID).
				Dur("retry_in", wait).
				Msg("sync failed, backing off")
		}

		timer.Reset(wait)
	}
}

func (e *SyncEngine) acquire(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phases[userID] {
	case PhaseCollecting, PhaseSending, PhaseApplying:
		return false
	}

	e.phases[userID] = PhaseCollecting
	return true
}

func (e *SyncEngine) release(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.phases, userID)
}

func (e *SyncEngine) setPhase(userID string, phase SyncPhase) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.phases[userID] = phase
}
