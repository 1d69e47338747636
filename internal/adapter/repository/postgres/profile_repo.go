package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/postgres/generated"
	"github.com/iho/offledger/internal/usecase"
)

// ProfileRepository implements usecase.ProfileRepository.
type ProfileRepository struct {
	queries *generated.Queries
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return newProfileRepository(pool)
}

func newProfileRepository(db generated.DBTX) *ProfileRepository {
	return &ProfileRepository{queries: generated.New(db)}
}

// Create inserts a new profile within a transaction.
func (r *ProfileRepository) Create(ctx context.Context, tx usecase.Transaction, profile *domain.Profile) error {
	queries := r.queries.WithTx(pgxTx(tx).PgxTx())

	err := queries.CreateProfile(ctx, generated.CreateProfileParams{
		UserID:         profile.UserID,
		Balance:        decimalToNumeric(profile.Balance),
		OpeningBalance: decimalToNumeric(profile.OpeningBalance),
		Version:        profile.Version,
		CreatedAt:      timeToPgTimestamptz(profile.CreatedAt),
		UpdatedAt:      timeToPgTimestamptz(profile.UpdatedAt),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrProfileExists
		}
		return err
	}

	return nil
}

// GetByUserID retrieves a profile.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	row, err := r.queries.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}

	return rowToProfile(row), nil
}

// GetByUserIDForUpdate retrieves a profile with a FOR UPDATE lock.
func (r *ProfileRepository) GetByUserIDForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Profile, error) {
	queries := r.queries.WithTx(pgxTx(tx).PgxTx())

	row, err := queries.GetProfileForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}

	return rowToProfile(row), nil
}

// UpdateBalance persists the running balance and the time of the last sync.
func (r *ProfileRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, userID string, balance decimal.Decimal, syncedAt time.Time) error {
	queries := r.queries.WithTx(pgxTx(tx).PgxTx())

	n, err := queries.UpdateProfileBalance(ctx, generated.UpdateProfileBalanceParams{
		UserID:       userID,
		Balance:      decimalToNumeric(balance),
		LastSyncedAt: timeToPgTimestamptz(syncedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if n == 0 {
		return domain.ErrProfileNotFound
	}

	return nil
}

func rowToProfile(row generated.Profile) *domain.Profile {
	return &domain.Profile{
		UserID:         row.UserID,
		Balance:        numericToDecimal(row.Balance),
		OpeningBalance: numericToDecimal(row.OpeningBalance),
		Version:        row.Version,
		LastSyncedAt:   pgTimestamptzPtr(row.LastSyncedAt),
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}
