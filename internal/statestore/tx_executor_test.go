package statestore

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// openMemDB opens an in-memory sqlite database for use by a TransactionExecutor
// under test.
func openMemDB(t *testing.T) *BaseDB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewBaseDB(db)
}

// identityQuery is a no-op QueryCreator used by tests that don't care about
// the query object itself, only about how many times txBody runs.
func identityQuery(tx *sql.Tx) *sql.Tx { return tx }

// TestExecTxConcurrencyViolationIsNotRetried verifies that ExecTx returns an
// ErrConcurrencyViolation from txBody immediately, without spending any of
// its configured retry attempts on it, since a CAS conflict on actor state
// or a placement directory entry is an expected outcome of concurrent
// activation rather than a transient database fault.
func TestExecTxConcurrencyViolationIsNotRetried(t *testing.T) {
	t.Parallel()

	db := openMemDB(t)
	executor := NewTransactionExecutor(db, identityQuery,
		slog.Default(), WithTxRetries(5))

	var attempts int
	err := executor.ExecTx(context.Background(), WriteTxOption(),
		func(*sql.Tx) error {
			attempts++
			return ErrConcurrencyViolation
		},
	)

	require.ErrorIs(t, err, ErrConcurrencyViolation)
	require.Equal(t, 1, attempts,
		"a CAS conflict should fail fast, not consume retry attempts")
}

// TestExecTxSucceedsOnFirstAttempt is a sanity check that the happy path
// still commits without retrying.
func TestExecTxSucceedsOnFirstAttempt(t *testing.T) {
	t.Parallel()

	db := openMemDB(t)
	executor := NewTransactionExecutor(db, identityQuery, slog.Default())

	var attempts int
	err := executor.ExecTx(context.Background(), WriteTxOption(),
		func(*sql.Tx) error {
			attempts++
			return nil
		},
	)

	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}

// TestIsConcurrencyViolation checks the helper distinguishes the
// application-raised CAS conflict from an unrelated error.
func TestIsConcurrencyViolation(t *testing.T) {
	t.Parallel()

	require.True(t, IsConcurrencyViolation(ErrConcurrencyViolation))
	require.False(t, IsConcurrencyViolation(ErrStateNotFound))
}
