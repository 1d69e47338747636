package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/signing"
	"github.com/iho/offledger/internal/usecase"
	"github.com/iho/offledger/internal/usecase/mocks"
)

const testSecret = "device-shared-secret"

var errConnRefused = fmt.Errorf("%w: connection refused", domain.ErrTransport)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires a device (store, engine, inspector) to an in-process
// reconciliation service backed by in-memory repositories.
type harness struct {
	clock     *testClock
	signer    *signing.HMACSigner
	txRepo    *mocks.FakeLocalTransactionRepository
	wallets   *mocks.FakeWalletRepository
	profiles  *mocks.FakeProfileRepository
	entries   *mocks.FakeLedgerEntryRepository
	server    *usecase.ReconciliationUseCase
	client    *mocks.FlakyClient
	conn      *mocks.FakeConnectivity
	store     *usecase.LedgerStore
	engine    *usecase.SyncEngine
	inspector *usecase.QueueInspector
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:    newTestClock(),
		signer:   signing.NewHMACSigner(testSecret),
		txRepo:   mocks.NewFakeLocalTransactionRepository(),
		wallets:  mocks.NewFakeWalletRepository(),
		profiles: mocks.NewFakeProfileRepository(),
		entries:  mocks.NewFakeLedgerEntryRepository(),
		conn:     &mocks.FakeConnectivity{},
	}

	h.server = usecase.NewReconciliationUseCase(
		mocks.NewFakeTransactionManager(),
		h.profiles,
		h.entries,
		nil,
		h.signer,
		nil,
		nil,
		mocks.NewSequenceIDGenerator("entry"),
		nil,
		zerolog.Nop(),
	)

	h.client = &mocks.FlakyClient{Next: h.server, Err: errConnRefused}

	h.store = usecase.NewLedgerStore(usecase.LedgerStoreConfig{
		Transactions: h.txRepo,
		Wallets:      h.wallets,
		Signer:       h.signer,
		IDGen:        mocks.NewSequenceIDGenerator("off"),
		Logger:       zerolog.Nop(),
		Now:          h.clock.Now,
	})

	h.engine = usecase.NewSyncEngine(usecase.SyncEngineConfig{
		Store:          h.store,
		Client:         h.client,
		Connectivity:   h.conn,
		IDGen:          mocks.NewSequenceIDGenerator("batch"),
		Logger:         zerolog.Nop(),
		Now:            h.clock.Now,
		Interval:       5 * time.Millisecond,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})

	h.inspector = usecase.NewQueueInspector(h.txRepo, h.wallets, h.engine, 0)

	return h
}

// openAccount creates the authoritative profile and seeds the device wallet from it.
func (h *harness) openAccount(t *testing.T, userID string, opening int64) {
	t.Helper()

	ctx := context.Background()
	_, err := h.server.CreateProfile(ctx, userID, decimal.NewFromInt(opening))
	require.NoError(t, err)

	_, err = h.store.SeedWallet(ctx, userID, decimal.NewFromInt(opening))
	require.NoError(t, err)
}

func (h *harness) record(t *testing.T, userID string, kind domain.Kind, amount int64) *domain.Transaction {
	t.Helper()

	tx, err := h.store.CreateTransaction(context.Background(), usecase.CreateTransactionInput{
		UserID: userID,
		Kind:   kind,
		Amount: decimal.NewFromInt(amount),
	})
	require.NoError(t, err)

	return tx
}

func (h *harness) wallet(t *testing.T, userID string) *domain.WalletState {
	t.Helper()

	w, err := h.wallets.Get(context.Background(), userID)
	require.NoError(t, err)

	return w
}

func (h *harness) serverBalance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()

	p, err := h.profiles.GetByUserID(context.Background(), userID)
	require.NoError(t, err)

	return p.Balance
}

func (h *harness) local(t *testing.T, offlineID string) *domain.Transaction {
	t.Helper()

	tx, err := h.txRepo.GetByOfflineID(context.Background(), offlineID)
	require.NoError(t, err)

	return tx
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
