package sqlite

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens the device database at path, creating and migrating it if needed.
// Use ":memory:" for a throwaway store.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}

	// SQLite has a single writer; an in-memory database also lives only as
	// long as its one connection.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the local schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&TransactionModel{}, &WalletModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return nil
}

// Close releases the underlying connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
