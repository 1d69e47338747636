package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/iho/offledger/internal/usecase"
)

const testTimestamp = "2024-03-01 09:00:00+00"

func beginTx(t *testing.T, mock pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()

	expectBegin(mock)

	tx, err := newTxManager(mock).Begin(context.Background())
	require.NoError(t, err)

	return tx
}

func expectBegin(mock pgxmock.PgxPoolIface) *pgxmock.ExpectedBegin {
	return mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	require.NoError(t, pool.ExpectationsWereMet())
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
