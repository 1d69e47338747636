package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/postgres/generated"
	"github.com/iho/offledger/internal/usecase"
)

// LedgerEntryRepository implements usecase.LedgerEntryRepository.
type LedgerEntryRepository struct {
	queries *generated.Queries
}

// NewLedgerEntryRepository creates a new LedgerEntryRepository.
func NewLedgerEntryRepository(pool *pgxpool.Pool) *LedgerEntryRepository {
	return newLedgerEntryRepository(pool)
}

func newLedgerEntryRepository(db generated.DBTX) *LedgerEntryRepository {
	return &LedgerEntryRepository{queries: generated.New(db)}
}

// Create appends an entry and stores the server-assigned sequence on it.
// A unique violation on offline_id is returned as is so the retrier can
// re-run the batch, which then sees the row as a replay.
func (r *LedgerEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	queries := r.queries.WithTx(pgxTx(tx).PgxTx())

	seq, err := queries.CreateLedgerEntry(ctx, generated.CreateLedgerEntryParams{
		ID:              entry.ID,
		OfflineID:       entry.OfflineID,
		UserID:          entry.UserID,
		RecipientID:     stringPtrToPgText(entry.RecipientID),
		Kind:            string(entry.Kind),
		Amount:          decimalToNumeric(entry.Amount),
		BalanceAfter:    decimalToNumeric(entry.BalanceAfter),
		Description:     entry.Description,
		Signature:       entry.Signature,
		ClientTimestamp: timeToPgTimestamptz(entry.ClientTimestamp),
		CreatedAt:       timeToPgTimestamptz(entry.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to append entry %s: %w", entry.OfflineID, err)
	}

	entry.Sequence = seq

	return nil
}

// GetByOfflineIDs returns the entries already recorded for any of offlineIDs, keyed by offline id.
func (r *LedgerEntryRepository) GetByOfflineIDs(ctx context.Context, tx usecase.Transaction, offlineIDs []string) (map[string]*domain.LedgerEntry, error) {
	found := make(map[string]*domain.LedgerEntry, len(offlineIDs))
	if len(offlineIDs) == 0 {
		return found, nil
	}

	queries := r.queries
	if tx != nil {
		queries = queries.WithTx(pgxTx(tx).PgxTx())
	}

	rows, err := queries.GetLedgerEntriesByOfflineIDs(ctx, offlineIDs)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		found[row.OfflineID] = rowToLedgerEntry(row)
	}

	return found, nil
}

// ListByUser returns a user's entries in sequence order.
func (r *LedgerEntryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.ListLedgerEntriesByUser(ctx, generated.ListLedgerEntriesByUserParams{
		UserID: userID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToLedgerEntry(row))
	}

	return entries, nil
}

// SumByUser totals a user's credits and debits.
func (r *LedgerEntryRepository) SumByUser(ctx context.Context, userID string) (credits, debits decimal.Decimal, err error) {
	row, err := r.queries.SumLedgerEntriesByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return numericToDecimal(row.Credits), numericToDecimal(row.Debits), nil
}

func rowToLedgerEntry(row generated.LedgerEntry) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:              row.ID,
		Sequence:        row.Sequence,
		OfflineID:       row.OfflineID,
		UserID:          row.UserID,
		RecipientID:     pgTextToStringPtr(row.RecipientID),
		Kind:            domain.Kind(row.Kind),
		Amount:          numericToDecimal(row.Amount),
		BalanceAfter:    numericToDecimal(row.BalanceAfter),
		Description:     row.Description,
		Signature:       row.Signature,
		ClientTimestamp: row.ClientTimestamp.Time,
		CreatedAt:       row.CreatedAt.Time,
	}
}
