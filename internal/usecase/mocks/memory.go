package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/usecase"
)

// FakeLocalTransactionRepository is an in-memory LocalTransactionRepository.
// It stores copies so callers cannot mutate persisted state by accident.
type FakeLocalTransactionRepository struct {
	mu   sync.RWMutex
	txs  map[string]*domain.Transaction
	next int64

	CreateFunc func(ctx context.Context, t *domain.Transaction) error
	UpdateFunc func(ctx context.Context, t *domain.Transaction) error
}

func NewFakeLocalTransactionRepository() *FakeLocalTransactionRepository {
	return &FakeLocalTransactionRepository{
		txs: make(map[string]*domain.Transaction),
	}
}

func (m *FakeLocalTransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[t.OfflineID]; ok {
		return fmt.Errorf("offline_id %s already stored", t.OfflineID)
	}
	m.next++
	t.Seq = m.next
	cp := *t
	m.txs[t.OfflineID] = &cp
	return nil
}

func (m *FakeLocalTransactionRepository) GetByOfflineID(ctx context.Context, offlineID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.txs[offlineID]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *FakeLocalTransactionRepository) ListByUser(ctx context.Context, userID string, statuses ...domain.SyncStatus) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[domain.SyncStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var out []*domain.Transaction
	for _, t := range m.txs {
		if t.UserID != userID {
			continue
		}
		if len(want) > 0 && !want[t.SyncStatus] {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *FakeLocalTransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[t.OfflineID]; !ok {
		return domain.ErrTransactionNotFound
	}
	cp := *t
	m.txs[t.OfflineID] = &cp
	return nil
}

func (m *FakeLocalTransactionRepository) DeleteByStatus(ctx context.Context, userID string, status domain.SyncStatus, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.txs {
		if t.UserID != userID || t.SyncStatus != status {
			continue
		}
		if !before.IsZero() && !t.CreatedAt.Before(before) {
			continue
		}
		delete(m.txs, id)
		n++
	}
	return n, nil
}

// Statuses returns the status of each stored entry of the user, in creation order.
func (m *FakeLocalTransactionRepository) Statuses(userID string) []domain.SyncStatus {
	txs, _ := m.ListByUser(context.Background(), userID)
	out := make([]domain.SyncStatus, len(txs))
	for i, t := range txs {
		out[i] = t.SyncStatus
	}
	return out
}

// FakeWalletRepository is an in-memory WalletRepository.
type FakeWalletRepository struct {
	mu      sync.RWMutex
	wallets map[string]*domain.WalletState

	SaveFunc func(ctx context.Context, wallet *domain.WalletState) error
}

func NewFakeWalletRepository() *FakeWalletRepository {
	return &FakeWalletRepository{
		wallets: make(map[string]*domain.WalletState),
	}
}

func (m *FakeWalletRepository) Get(ctx context.Context, userID string) (*domain.WalletState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.wallets[userID]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, domain.ErrWalletNotFound
}

func (m *FakeWalletRepository) Save(ctx context.Context, wallet *domain.WalletState) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, wallet)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *wallet
	m.wallets[wallet.UserID] = &cp
	return nil
}

// FakeProfileRepository is an in-memory ProfileRepository.
type FakeProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
}

func NewFakeProfileRepository() *FakeProfileRepository {
	return &FakeProfileRepository{
		profiles: make(map[string]*domain.Profile),
	}
}

func (m *FakeProfileRepository) Create(ctx context.Context, tx usecase.Transaction, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profile.UserID]; ok {
		return domain.ErrProfileExists
	}
	cp := *profile
	m.profiles[profile.UserID] = &cp
	return nil
}

func (m *FakeProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrProfileNotFound
}

func (m *FakeProfileRepository) GetByUserIDForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Profile, error) {
	return m.GetByUserID(ctx, userID)
}

func (m *FakeProfileRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, userID string, balance decimal.Decimal, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Balance = balance
	p.LastSyncedAt = &syncedAt
	p.UpdatedAt = syncedAt
	p.Version++
	return nil
}

// FakeLedgerEntryRepository is an in-memory LedgerEntryRepository.
type FakeLedgerEntryRepository struct {
	mu      sync.RWMutex
	entries []*domain.LedgerEntry
}

func NewFakeLedgerEntryRepository() *FakeLedgerEntryRepository {
	return &FakeLedgerEntryRepository{}
}

func (m *FakeLedgerEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.OfflineID == entry.OfflineID {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	entry.Sequence = int64(len(m.entries) + 1)
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *FakeLedgerEntryRepository) GetByOfflineIDs(ctx context.Context, tx usecase.Transaction, offlineIDs []string) (map[string]*domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]bool, len(offlineIDs))
	for _, id := range offlineIDs {
		want[id] = true
	}
	out := make(map[string]*domain.LedgerEntry)
	for _, e := range m.entries {
		if want[e.OfflineID] {
			cp := *e
			out[e.OfflineID] = &cp
		}
	}
	return out, nil
}

func (m *FakeLedgerEntryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *FakeLedgerEntryRepository) SumByUser(ctx context.Context, userID string) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	credits, debits := decimal.Zero, decimal.Zero
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if e.Kind == domain.KindDebit {
			debits = debits.Add(e.Amount)
		} else {
			credits = credits.Add(e.Amount)
		}
	}
	return credits, debits, nil
}

// Count returns the number of stored entries.
func (m *FakeLedgerEntryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// FakeTransactionManager is a TransactionManager whose transactions do nothing.
type FakeTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	Commits   int
}

func NewFakeTransactionManager() *FakeTransactionManager {
	return &FakeTransactionManager{}
}

func (m *FakeTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &FakeTransaction{manager: m}, nil
}

// FakeTransaction is a no-op Transaction.
type FakeTransaction struct {
	manager *FakeTransactionManager
}

func (m *FakeTransaction) Commit(ctx context.Context) error {
	if m.manager != nil {
		m.manager.Commits++
	}
	return nil
}

func (m *FakeTransaction) Rollback(ctx context.Context) error {
	return nil
}

// SequenceIDGenerator generates prefixed, monotonically increasing ids.
type SequenceIDGenerator struct {
	mu      sync.Mutex
	Prefix  string
	counter int
}

func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{Prefix: prefix}
}

func (m *SequenceIDGenerator) Generate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("%s-%04d", m.Prefix, m.counter)
}

// FakeSigner stamps a fixed signature derived from the offline id.
type FakeSigner struct{}

func (FakeSigner) SignTransaction(t *domain.Transaction) {
	t.Signature = "sig-" + t.OfflineID
}

// FakeConnectivity reports a settable reachability.
type FakeConnectivity struct {
	mu      sync.Mutex
	offline bool
}

func (m *FakeConnectivity) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

func (m *FakeConnectivity) Online(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.offline
}

// FlakyClient forwards to Next. The first FailNext calls fail before reaching
// Next; the following DropResponses calls reach Next but lose the response.
type FlakyClient struct {
	mu            sync.Mutex
	Next          usecase.ReconciliationClient
	Err           error
	FailNext      int
	DropResponses int
	Calls         int
	Requests      []*domain.BatchRequest
}

func (m *FlakyClient) ApplyBatch(ctx context.Context, req *domain.BatchRequest) (*domain.BatchResult, error) {
	m.mu.Lock()
	m.Calls++
	m.Requests = append(m.Requests, req)
	if m.FailNext > 0 {
		m.FailNext--
		m.mu.Unlock()
		return nil, m.Err
	}
	drop := m.DropResponses > 0
	if drop {
		m.DropResponses--
	}
	m.mu.Unlock()

	res, err := m.Next.ApplyBatch(ctx, req)
	if drop && err == nil {
		return nil, m.Err
	}
	return res, err
}

func (m *FlakyClient) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return m.Next.GetBalance(ctx, userID)
}
