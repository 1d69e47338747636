package sqlite

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iho/offledger/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = Close(db) })

	return db
}

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTx(offlineID, userID string, kind domain.Kind, amount string, status domain.SyncStatus) *domain.Transaction {
	return &domain.Transaction{
		OfflineID:       offlineID,
		UserID:          userID,
		Kind:            kind,
		Amount:          decimal.RequireFromString(amount),
		Description:     "coffee",
		ClientTimestamp: baseTime.Add(1500 * time.Millisecond),
		Signature:       "sig-" + offlineID,
		SyncStatus:      status,
		CreatedAt:       baseTime,
	}
}
