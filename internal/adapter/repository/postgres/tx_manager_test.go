package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxManager_BeginCommit(t *testing.T) {
	mock := newMockPool(t)
	expectBegin(mock)
	mock.ExpectCommit()

	tx, err := newTxManager(mock).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
	assertExpectations(t, mock)
}

func TestTxManager_BeginError(t *testing.T) {
	mock := newMockPool(t)
	beginErr := errors.New("too many connections")
	expectBegin(mock).WillReturnError(beginErr)

	_, err := newTxManager(mock).Begin(context.Background())
	require.ErrorIs(t, err, beginErr)
	assert.Contains(t, err.Error(), "begin transaction")
}

func TestTx_Rollback(t *testing.T) {
	mock := newMockPool(t)
	expectBegin(mock)
	mock.ExpectRollback()

	tx, err := newTxManager(mock).Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, tx.Rollback(context.Background()))
	assertExpectations(t, mock)
}

func TestTx_RollbackError(t *testing.T) {
	mock := newMockPool(t)
	rbErr := errors.New("connection reset")
	expectBegin(mock)
	mock.ExpectRollback().WillReturnError(rbErr)

	tx, err := newTxManager(mock).Begin(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, tx.Rollback(context.Background()), rbErr)
}
