package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iho/offledger/internal/domain"
)

// TransactionRepository implements usecase.LocalTransactionRepository.
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts t and stores the assigned sequence back on it.
func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	m := toTransactionModel(t)
	m.Seq = 0

	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("offline_id %s already recorded: %w", t.OfflineID, err)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	t.Seq = m.Seq

	return nil
}

// GetByOfflineID retrieves a transaction by its offline id.
func (r *TransactionRepository) GetByOfflineID(ctx context.Context, offlineID string) (*domain.Transaction, error) {
	var m TransactionModel

	err := r.db.WithContext(ctx).Where("offline_id = ?", offlineID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	return m.toDomain(), nil
}

// ListByUser returns a user's transactions in creation order.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, statuses ...domain.SyncStatus) ([]*domain.Transaction, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	if len(statuses) > 0 {
		q = q.Where("sync_status IN ?", statusStrings(statuses))
	}

	var rows []TransactionModel
	if err := q.Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		txs = append(txs, rows[i].toDomain())
	}

	return txs, nil
}

// Update persists the mutable sync fields of t.
func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	res := r.db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("offline_id = ?", t.OfflineID).
		Updates(map[string]any{
			"sync_status":       string(t.SyncStatus),
			"retry_count":       t.RetryCount,
			"last_sync_attempt": utcPtr(t.LastSyncAttempt),
			"failure_reason":    t.FailureReason,
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// DeleteByStatus removes a user's entries in status created before the cutoff.
func (r *TransactionRepository) DeleteByStatus(ctx context.Context, userID string, status domain.SyncStatus, before time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND sync_status = ?", userID, string(status))

	if !before.IsZero() {
		q = q.Where("created_at < ?", before.UTC())
	}

	res := q.Delete(&TransactionModel{})

	return res.RowsAffected, res.Error
}

func statusStrings(statuses []domain.SyncStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
