package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iho/offledger/internal/domain"
)

// WalletRepository implements usecase.WalletRepository.
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Get retrieves the wallet of a user.
func (r *WalletRepository) Get(ctx context.Context, userID string) (*domain.WalletState, error) {
	var m WalletModel

	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}

	return m.toDomain(), nil
}

// Save upserts the wallet.
func (r *WalletRepository) Save(ctx context.Context, wallet *domain.WalletState) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(toWalletModel(wallet)).Error
}
