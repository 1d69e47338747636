package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/iho/offledger/internal/adapter/client"
	"github.com/iho/offledger/internal/adapter/repository/sqlite"
	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/config"
	"github.com/iho/offledger/internal/infrastructure/idgen"
	"github.com/iho/offledger/internal/infrastructure/logger"
	"github.com/iho/offledger/internal/infrastructure/signing"
	"github.com/iho/offledger/internal/usecase"
)

// app holds the device components shared by every command.
type app struct {
	cfg       *config.ClientConfig
	log       zerolog.Logger
	db        *gorm.DB
	store     *usecase.LedgerStore
	inspector *usecase.QueueInspector
	engine    *usecase.SyncEngine
	client    *client.Client
	wallets   usecase.WalletRepository
	userID    string
}

// flags set on the root command
type rootFlags struct {
	userID    string
	dbPath    string
	serverURL string
	token     string
}

func newApp(f *rootFlags, cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	if f.serverURL != "" {
		cfg.ServerURL = f.serverURL
	}
	if f.token != "" {
		cfg.Token = f.token
	}
	if f.userID != "" {
		cfg.UserID = f.userID
	}

	userID := strings.TrimSpace(cfg.UserID)
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("%w (set --user or OFFLEDGER_USER_ID)", err)
	}

	log := logger.NewWithWriter(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "offledger"}, cmd.ErrOrStderr())

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	c, err := client.New(client.Config{
		BaseURL: cfg.ServerURL,
		Token:   cfg.Token,
		Timeout: cfg.RequestTimeout,
		Logger:  log,
	})
	if err != nil {
		_ = sqlite.Close(db)
		return nil, err
	}

	txRepo := sqlite.NewTransactionRepository(db)
	walletRepo := sqlite.NewWalletRepository(db)
	ids := idgen.NewULIDGenerator()

	store := usecase.NewLedgerStore(usecase.LedgerStoreConfig{
		Transactions:     txRepo,
		Wallets:          walletRepo,
		Signer:           signing.NewHMACSigner(cfg.SigningSecret),
		IDGen:            ids,
		Logger:           log,
		RetentionHorizon: cfg.RetentionHorizon,
		StaleAfter:       cfg.StaleAfter,
	})

	engine := usecase.NewSyncEngine(usecase.SyncEngineConfig{
		Store:          store,
		Client:         c,
		Connectivity:   c,
		IDGen:          ids,
		Logger:         log,
		MaxRetries:     cfg.MaxRetries,
		Interval:       cfg.SyncInterval,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	})

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		store:     store,
		inspector: usecase.NewQueueInspector(txRepo, walletRepo, engine, cfg.StaleAfter),
		engine:    engine,
		client:    c,
		wallets:   walletRepo,
		userID:    userID,
	}, nil
}

// tokenSettings resolves what the token command needs without opening the store.
func tokenSettings(f *rootFlags) (secret, userID string, ttl time.Duration, err error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return "", "", 0, fmt.Errorf("load configuration: %w", err)
	}

	if cfg.JWTSecret == "" {
		return "", "", 0, errors.New("JWT_SECRET must be set to mint tokens")
	}

	userID = cfg.UserID
	if f.userID != "" {
		userID = f.userID
	}

	return cfg.JWTSecret, strings.TrimSpace(userID), cfg.JWTExpiration, nil
}

func (a *app) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return sqlite.Close(a.db)
}

// requireWallet stops commands that would silently start from a zero balance.
func (a *app) requireWallet(ctx context.Context) error {
	if _, err := a.wallets.Get(ctx, a.userID); err != nil {
		return explain(err)
	}
	return nil
}

// explain turns sync errors into something a person can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		return fmt.Errorf("%w: run 'offledger init' first", err)
	case errors.Is(err, domain.ErrOffline):
		return fmt.Errorf("server unreachable, entries stay queued: %w", err)
	case errors.Is(err, domain.ErrNotAuthenticated):
		return fmt.Errorf("session rejected, refresh OFFLEDGER_TOKEN: %w", err)
	case errors.Is(err, domain.ErrProfileNotFound):
		return fmt.Errorf("no server profile for this user, run 'offledger init --create-profile': %w", err)
	case client.IsRetryable(err):
		return fmt.Errorf("sync failed, will retry later: %w", err)
	default:
		return err
	}
}
