//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/offledger/internal/adapter/repository/postgres"
	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/idgen"
	infra "github.com/iho/offledger/internal/infrastructure/postgres"
	"github.com/iho/offledger/internal/infrastructure/signing"
	"github.com/iho/offledger/internal/usecase"
)

const integrationSecret = "integration-secret"

// newTestPool connects to OFFLEDGER_TEST_DATABASE_URL and resets the schema.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("OFFLEDGER_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("OFFLEDGER_TEST_DATABASE_URL not set")
	}

	require.NoError(t, infra.RunMigrations(dbURL, "../../../../migrations", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewPool(ctx, dbURL, 20, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE ledger_entries, outbox_events, profiles CASCADE")
	require.NoError(t, err)

	return pool
}

func newService(pool *pgxpool.Pool) *usecase.ReconciliationUseCase {
	return usecase.NewReconciliationUseCase(
		postgres.NewTxManager(pool),
		postgres.NewProfileRepository(pool),
		postgres.NewLedgerEntryRepository(pool),
		postgres.NewOutboxRepository(pool),
		signing.NewHMACSigner(integrationSecret),
		nil,
		postgres.NewRetrier(zerolog.Nop()),
		idgen.NewULIDGenerator(),
		nil,
		zerolog.Nop(),
	)
}

func signedEntry(signer *signing.HMACSigner, userID, offlineID string, kind domain.Kind, amount int64) domain.BatchEntry {
	e := domain.BatchEntry{
		OfflineID:       offlineID,
		Kind:            kind,
		Amount:          decimal.NewFromInt(amount),
		ClientTimestamp: time.Now().UTC().Truncate(time.Millisecond),
	}
	e.Signature = signer.Sign(userID, e.OfflineID, e.Amount, e.ClientTimestamp)
	return e
}

func TestIntegration_ConcurrentBatchesNeverOverdraw(t *testing.T) {
	pool := newTestPool(t)
	svc := newService(pool)
	signer := signing.NewHMACSigner(integrationSecret)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, "alice", decimal.NewFromInt(100))
	require.NoError(t, err)

	const devices = 20
	var wg sync.WaitGroup
	results := make([]*domain.BatchResult, devices)

	wg.Add(devices)
	for i := range devices {
		go func() {
			defer wg.Done()

			req := &domain.BatchRequest{
				BatchID: fmt.Sprintf("batch-%d", i),
				UserID:  "alice",
				Version: domain.BatchSchemaVersion,
				Entries: []domain.BatchEntry{
					signedEntry(signer, "alice", fmt.Sprintf("off-%d", i), domain.KindDebit, 10),
				},
			}

			res, err := svc.ApplyBatch(ctx, req)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	processed := 0
	for _, r := range results {
		if r != nil {
			processed += len(r.Processed)
		}
	}
	assert.Equal(t, 10, processed)

	profile, err := svc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, profile.Balance.IsZero(), "balance %s", profile.Balance)

	check, err := svc.ReconcileProfile(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, check.IsReconciled)
}

func TestIntegration_ReplayedEntriesApplyOnce(t *testing.T) {
	pool := newTestPool(t)
	svc := newService(pool)
	signer := signing.NewHMACSigner(integrationSecret)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, "bob", decimal.NewFromInt(50))
	require.NoError(t, err)

	entries := []domain.BatchEntry{
		signedEntry(signer, "bob", "off-a", domain.KindCredit, 5),
		signedEntry(signer, "bob", "off-b", domain.KindDebit, 20),
	}

	for i := range 3 {
		res, err := svc.ApplyBatch(ctx, &domain.BatchRequest{
			BatchID: fmt.Sprintf("replay-%d", i),
			UserID:  "bob",
			Version: domain.BatchSchemaVersion,
			Entries: entries,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"off-a", "off-b"}, res.Processed)
		assert.True(t, res.NewBalance.Equal(decimal.NewFromInt(35)))
	}

	listed, err := svc.ListEntries(ctx, "bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "off-a", listed[0].OfflineID)
	assert.True(t, listed[1].BalanceAfter.Equal(decimal.NewFromInt(35)))

	events, err := postgres.NewOutboxRepository(pool).GetUnpublished(ctx, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}
