package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/signing"
	"github.com/iho/offledger/internal/usecase"
	"github.com/iho/offledger/internal/usecase/mocks"
)

var batchTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func signedEntry(signer *signing.HMACSigner, userID, offlineID string, kind domain.Kind, amount string) domain.BatchEntry {
	e := domain.BatchEntry{
		OfflineID:       offlineID,
		Kind:            kind,
		Amount:          decimal.RequireFromString(amount),
		ClientTimestamp: batchTime,
	}
	e.Signature = signer.Sign(userID, offlineID, e.Amount, e.ClientTimestamp)
	return e
}

func newBatch(userID string, entries ...domain.BatchEntry) *domain.BatchRequest {
	return &domain.BatchRequest{
		Version: domain.BatchSchemaVersion,
		BatchID: "batch-1",
		UserID:  userID,
		Entries: entries,
	}
}

type serverFixture struct {
	signer   *signing.HMACSigner
	profiles *mocks.FakeProfileRepository
	entries  *mocks.FakeLedgerEntryRepository
	txMgr    *mocks.FakeTransactionManager
	uc       *usecase.ReconciliationUseCase
}

func newServerFixture(t *testing.T, balances map[string]int64) *serverFixture {
	t.Helper()

	f := &serverFixture{
		signer:   signing.NewHMACSigner(testSecret),
		profiles: mocks.NewFakeProfileRepository(),
		entries:  mocks.NewFakeLedgerEntryRepository(),
		txMgr:    mocks.NewFakeTransactionManager(),
	}
	f.uc = usecase.NewReconciliationUseCase(
		f.txMgr, f.profiles, f.entries, nil, f.signer, nil, nil,
		mocks.NewSequenceIDGenerator("entry"), nil, zerolog.Nop(),
	)

	for userID, balance := range balances {
		_, err := f.uc.CreateProfile(context.Background(), userID, decimal.NewFromInt(balance))
		require.NoError(t, err)
	}

	return f
}

func TestReconciliationUseCase_ApplyBatch_Rejections(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 100, "bob": 10})
	ctx := context.Background()

	// bob owns offline id "shared"
	_, err := f.uc.ApplyBatch(ctx, newBatch("bob", signedEntry(f.signer, "bob", "shared", domain.KindCredit, "1")))
	require.NoError(t, err)

	unsigned := signedEntry(f.signer, "alice", "unsigned", domain.KindCredit, "5")
	unsigned.Signature = ""

	tampered := signedEntry(f.signer, "alice", "tampered", domain.KindCredit, "5")
	tampered.Amount = decimal.NewFromInt(5000)

	zero := signedEntry(f.signer, "alice", "zero", domain.KindCredit, "5")
	zero.Amount = decimal.Zero

	result, err := f.uc.ApplyBatch(ctx, newBatch("alice",
		unsigned,
		tampered,
		zero,
		signedEntry(f.signer, "alice", "shared", domain.KindCredit, "1"),
		signedEntry(f.signer, "alice", "too-big", domain.KindDebit, "100.01"),
		signedEntry(f.signer, "alice", "ok", domain.KindDebit, "100"),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"ok"}, result.Processed)
	assert.Equal(t, []domain.Rejection{
		{OfflineID: "unsigned", Reason: domain.RejectMissingSignature},
		{OfflineID: "tampered", Reason: domain.RejectInvalidSignature},
		{OfflineID: "zero", Reason: domain.RejectInvalidEntry},
		{OfflineID: "shared", Reason: domain.RejectDuplicateOfflineID},
		{OfflineID: "too-big", Reason: domain.RejectInsufficientBalance},
	}, result.Rejected)
	assert.True(t, result.NewBalance.IsZero())
}

func TestReconciliationUseCase_ApplyBatch_OrderSensitivity(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 50})

	result, err := f.uc.ApplyBatch(context.Background(), newBatch("alice",
		signedEntry(f.signer, "alice", "d1", domain.KindDebit, "100"),
		signedEntry(f.signer, "alice", "c1", domain.KindCredit, "100"),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"c1"}, result.Processed)
	assert.Equal(t, []domain.Rejection{{OfflineID: "d1", Reason: domain.RejectInsufficientBalance}}, result.Rejected)
	assert.True(t, result.NewBalance.Equal(decimal.NewFromInt(150)))
}

func TestReconciliationUseCase_ApplyBatch_BalanceConservation(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 20})
	ctx := context.Background()

	batches := [][]domain.BatchEntry{
		{
			signedEntry(f.signer, "alice", "a1", domain.KindDebit, "15.50"),
			signedEntry(f.signer, "alice", "a2", domain.KindDebit, "10"),
			signedEntry(f.signer, "alice", "a3", domain.KindCredit, "7.25"),
		},
		{
			signedEntry(f.signer, "alice", "a2", domain.KindDebit, "10"),
			signedEntry(f.signer, "alice", "a1", domain.KindDebit, "15.50"),
			signedEntry(f.signer, "alice", "a4", domain.KindCredit, "0.01"),
		},
	}

	accepted := decimal.Zero
	for _, entries := range batches {
		result, err := f.uc.ApplyBatch(ctx, newBatch("alice", entries...))
		require.NoError(t, err)
		assert.True(t, result.NewBalance.GreaterThanOrEqual(decimal.Zero))
		assert.Equal(t, len(entries), len(result.Processed)+len(result.Rejected))
	}

	ledger, err := f.entries.ListByUser(ctx, "alice", 100, 0)
	require.NoError(t, err)
	for _, e := range ledger {
		accepted = accepted.Add(e.SignedAmount())
	}

	balance, err := f.uc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(20).Add(accepted)), "balance %s, accepted %s", balance, accepted)
	// 20 - 15.50 + 7.25 - 10 + 0.01, with a1 applied once
	assert.True(t, balance.Equal(dec("1.76")), "got %s", balance)
	assert.Len(t, ledger, 4)

	check, err := f.uc.ReconcileProfile(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, check.IsReconciled)
	assert.True(t, check.Difference.IsZero())
}

func TestReconciliationUseCase_ApplyBatch_DuplicateWithinBatch(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 100})

	e := signedEntry(f.signer, "alice", "once", domain.KindDebit, "30")
	result, err := f.uc.ApplyBatch(context.Background(), newBatch("alice", e, e))
	require.NoError(t, err)

	assert.Equal(t, []string{"once", "once"}, result.Processed)
	assert.True(t, result.NewBalance.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, 1, f.entries.Count())
}

func TestReconciliationUseCase_ApplyBatch_ResubmittedBatchIsIdempotent(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 100})
	ctx := context.Background()

	batch := newBatch("alice",
		signedEntry(f.signer, "alice", "r1", domain.KindDebit, "30"),
		signedEntry(f.signer, "alice", "r2", domain.KindCredit, "12.50"),
		signedEntry(f.signer, "alice", "r3", domain.KindDebit, "7.25"),
	)

	first, err := f.uc.ApplyBatch(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2", "r3"}, first.Processed)
	require.Empty(t, first.Rejected)
	assert.True(t, first.NewBalance.Equal(dec("75.25")), "got %s", first.NewBalance)

	second, err := f.uc.ApplyBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, first.Processed, second.Processed)
	assert.Empty(t, second.Rejected)
	assert.True(t, second.NewBalance.Equal(first.NewBalance), "got %s", second.NewBalance)

	assert.Equal(t, 3, f.entries.Count())
	balance, err := f.uc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("75.25")))

	check, err := f.uc.ReconcileProfile(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, check.IsReconciled)
}

func TestReconciliationUseCase_ApplyBatch_RejectsOversizedFields(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 100})

	withRecipient := func(offlineID, recipient string) domain.BatchEntry {
		e := signedEntry(f.signer, "alice", offlineID, domain.KindDebit, "1")
		e.RecipientID = &recipient
		return e
	}

	longSignature := signedEntry(f.signer, "alice", "long-sig", domain.KindDebit, "1")
	longSignature.Signature = strings.Repeat("a", domain.MaxSignatureLength+1)

	result, err := f.uc.ApplyBatch(context.Background(), newBatch("alice",
		withRecipient("long-recipient", strings.Repeat("r", domain.MaxUserIDLength+1)),
		withRecipient("self-recipient", "alice"),
		withRecipient("blank-recipient", "  "),
		longSignature,
		withRecipient("paid-bob", "bob"),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"paid-bob"}, result.Processed)
	assert.Equal(t, []domain.Rejection{
		{OfflineID: "long-recipient", Reason: domain.RejectInvalidEntry},
		{OfflineID: "self-recipient", Reason: domain.RejectInvalidEntry},
		{OfflineID: "blank-recipient", Reason: domain.RejectInvalidEntry},
		{OfflineID: "long-sig", Reason: domain.RejectInvalidEntry},
	}, result.Rejected)
	assert.True(t, result.NewBalance.Equal(decimal.NewFromInt(99)))
	assert.Equal(t, 1, f.entries.Count())
}

func TestReconciliationUseCase_ApplyBatch_RecordsBalanceAfter(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 100})
	ctx := context.Background()

	_, err := f.uc.ApplyBatch(ctx, newBatch("alice",
		signedEntry(f.signer, "alice", "x1", domain.KindDebit, "40"),
		signedEntry(f.signer, "alice", "x2", domain.KindCredit, "15"),
	))
	require.NoError(t, err)

	entries, err := f.uc.ListEntries(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].BalanceAfter.Equal(decimal.NewFromInt(60)))
	assert.True(t, entries[1].BalanceAfter.Equal(decimal.NewFromInt(75)))
	assert.Less(t, entries[0].Sequence, entries[1].Sequence)

	profile, err := f.uc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, profile.LastSyncedAt)
}

func TestReconciliationUseCase_ApplyBatch_InvalidEnvelope(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 100})
	ctx := context.Background()

	req := newBatch("alice")
	req.Version = 2
	_, err := f.uc.ApplyBatch(ctx, req)
	assert.ErrorIs(t, err, domain.ErrUnsupportedBatchVersion)

	req = newBatch("alice")
	req.BatchID = ""
	_, err = f.uc.ApplyBatch(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMalformedBatch)
	assert.Equal(t, 1, f.txMgr.Commits)
}

func TestReconciliationUseCase_ApplyBatch_ProfileNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)

	txMgr := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	profileRepo := mocks.NewMockProfileRepository(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)
	outboxRepo := mocks.NewMockOutboxRepository(ctrl)

	txMgr.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	profileRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), tx, "ghost").Return(nil, domain.ErrProfileNotFound)

	uc := usecase.NewReconciliationUseCase(txMgr, profileRepo, entryRepo, outboxRepo, nil, nil, nil,
		mocks.NewSequenceIDGenerator("id"), nil, zerolog.Nop())

	result, err := uc.ApplyBatch(context.Background(), newBatch("ghost",
		domain.BatchEntry{OfflineID: "o1", Kind: domain.KindCredit, Amount: decimal.NewFromInt(1), Signature: "s"},
	))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestReconciliationUseCase_ApplyBatch_CommitsOutboxAndCache(t *testing.T) {
	ctrl := gomock.NewController(t)

	txMgr := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	profileRepo := mocks.NewMockProfileRepository(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)
	outboxRepo := mocks.NewMockOutboxRepository(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)
	retrier := mocks.NewMockRetrier(ctrl)
	verifier := mocks.NewMockSignatureVerifier(ctrl)

	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, op func() error) error { return op() })
	txMgr.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	profileRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), tx, "alice").
		Return(&domain.Profile{UserID: "alice", Balance: decimal.NewFromInt(10)}, nil)
	entryRepo.EXPECT().GetByOfflineIDs(gomock.Any(), tx, []string{"o1"}).Return(nil, nil)
	verifier.EXPECT().VerifyEntry("alice", gomock.Any()).Return(true)
	entryRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ usecase.Transaction, e *domain.LedgerEntry) error {
			assert.Equal(t, "o1", e.OfflineID)
			assert.True(t, e.BalanceAfter.Equal(decimal.NewFromInt(15)))
			return nil
		})
	profileRepo.EXPECT().UpdateBalance(gomock.Any(), tx, "alice", gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ usecase.Transaction, _ string, balance decimal.Decimal, _ time.Time) error {
			assert.True(t, balance.Equal(decimal.NewFromInt(15)))
			return nil
		})
	outboxRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ usecase.Transaction, ev *domain.OutboxEvent) error {
			assert.Equal(t, domain.EventTypeBatchReconciled, ev.EventType)
			assert.Equal(t, "alice", ev.AggregateID)
			assert.Equal(t, "batch-1", ev.Payload["batch_id"])
			return nil
		})
	tx.EXPECT().Commit(gomock.Any()).Return(nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	cache.EXPECT().SetBalance(gomock.Any(), "alice", gomock.Any()).Return(nil)

	uc := usecase.NewReconciliationUseCase(txMgr, profileRepo, entryRepo, outboxRepo, verifier, cache, retrier,
		mocks.NewSequenceIDGenerator("id"), nil, zerolog.Nop())

	result, err := uc.ApplyBatch(context.Background(), newBatch("alice",
		domain.BatchEntry{OfflineID: "o1", Kind: domain.KindCredit, Amount: decimal.NewFromInt(5), Signature: "s"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, result.Processed)
	assert.True(t, result.NewBalance.Equal(decimal.NewFromInt(15)))
}

func TestReconciliationUseCase_ApplyBatch_StorageErrorAborts(t *testing.T) {
	ctrl := gomock.NewController(t)

	txMgr := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	profileRepo := mocks.NewMockProfileRepository(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)

	storageErr := errors.New("connection reset")

	txMgr.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	profileRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), tx, "alice").
		Return(&domain.Profile{UserID: "alice", Balance: decimal.NewFromInt(10)}, nil)
	entryRepo.EXPECT().GetByOfflineIDs(gomock.Any(), tx, gomock.Any()).Return(map[string]*domain.LedgerEntry{}, nil)
	entryRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(storageErr)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	uc := usecase.NewReconciliationUseCase(txMgr, profileRepo, entryRepo, nil, nil, nil, nil,
		mocks.NewSequenceIDGenerator("id"), nil, zerolog.Nop())

	_, err := uc.ApplyBatch(context.Background(), newBatch("alice",
		domain.BatchEntry{OfflineID: "o1", Kind: domain.KindCredit, Amount: decimal.NewFromInt(5), Signature: "s"},
	))
	assert.ErrorIs(t, err, storageErr)
}

func TestReconciliationUseCase_GetBalance_Cache(t *testing.T) {
	ctrl := gomock.NewController(t)

	profileRepo := mocks.NewMockProfileRepository(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)

	uc := usecase.NewReconciliationUseCase(nil, profileRepo, nil, nil, nil, cache, nil, nil, nil, zerolog.Nop())

	t.Run("hit", func(t *testing.T) {
		cache.EXPECT().GetBalance(gomock.Any(), "alice").Return(decimal.NewFromInt(42), true, nil)

		balance, err := uc.GetBalance(context.Background(), "alice")
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(42)))
	})

	t.Run("miss", func(t *testing.T) {
		cache.EXPECT().GetBalance(gomock.Any(), "bob").Return(decimal.Zero, false, nil)
		profileRepo.EXPECT().GetByUserID(gomock.Any(), "bob").Return(&domain.Profile{UserID: "bob", Balance: decimal.NewFromInt(7)}, nil)
		cache.EXPECT().SetBalance(gomock.Any(), "bob", decimal.NewFromInt(7)).Return(nil)

		balance, err := uc.GetBalance(context.Background(), "bob")
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(7)))
	})

	t.Run("cache down", func(t *testing.T) {
		cache.EXPECT().GetBalance(gomock.Any(), "carol").Return(decimal.Zero, false, errors.New("redis down"))
		profileRepo.EXPECT().GetByUserID(gomock.Any(), "carol").Return(&domain.Profile{UserID: "carol", Balance: decimal.NewFromInt(3)}, nil)
		cache.EXPECT().SetBalance(gomock.Any(), "carol", gomock.Any()).Return(errors.New("redis down"))

		balance, err := uc.GetBalance(context.Background(), "carol")
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(3)))
	})
}

func TestReconciliationUseCase_CreateProfile(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		opening     decimal.Decimal
		expectError error
	}{
		{name: "zero opening", userID: "alice", opening: decimal.Zero},
		{name: "positive opening", userID: "bob", opening: dec("12.50")},
		{name: "negative opening", userID: "carol", opening: decimal.NewFromInt(-1), expectError: domain.ErrInvalidAmount},
		{name: "sub-cent opening", userID: "dave", opening: dec("0.005"), expectError: domain.ErrAmountPrecision},
		{name: "empty user", userID: " ", opening: decimal.Zero, expectError: domain.ErrInvalidUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t, nil)

			profile, err := f.uc.CreateProfile(context.Background(), tt.userID, tt.opening)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}

			require.NoError(t, err)
			assert.True(t, profile.Balance.Equal(tt.opening))
			assert.True(t, profile.OpeningBalance.Equal(tt.opening))
		})
	}
}

func TestReconciliationUseCase_CreateProfile_Duplicate(t *testing.T) {
	f := newServerFixture(t, map[string]int64{"alice": 1})

	_, err := f.uc.CreateProfile(context.Background(), "alice", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrProfileExists)
}

func TestReconciliationUseCase_ReconcileProfile_Mismatch(t *testing.T) {
	ctrl := gomock.NewController(t)

	profileRepo := mocks.NewMockProfileRepository(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)

	profileRepo.EXPECT().GetByUserID(gomock.Any(), "alice").Return(&domain.Profile{
		UserID:         "alice",
		OpeningBalance: decimal.NewFromInt(100),
		Balance:        decimal.NewFromInt(90),
	}, nil)
	entryRepo.EXPECT().SumByUser(gomock.Any(), "alice").Return(decimal.NewFromInt(5), decimal.NewFromInt(10), nil)

	uc := usecase.NewReconciliationUseCase(nil, profileRepo, entryRepo, nil, nil, nil, nil, nil, nil, zerolog.Nop())

	result, err := uc.ReconcileProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, result.IsReconciled)
	assert.True(t, result.CalculatedBalance.Equal(decimal.NewFromInt(95)))
	assert.True(t, result.Difference.Equal(decimal.NewFromInt(-5)))
}
