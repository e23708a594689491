package saga

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/quark-run/quark/internal/statestore"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE actor_state (
			actor_type TEXT NOT NULL,
			actor_id   TEXT NOT NULL,
			slot       TEXT NOT NULL,
			payload    BLOB NOT NULL,
			version    INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (actor_type, actor_id, slot)
		)
	`)
	require.NoError(t, err)

	backing := statestore.NewActorStateStore(statestore.NewStore(db))
	return NewStore(backing)
}

func TestStoreLoadMissingReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)

	_, _, err := store.Load(context.Background(), "missing-saga")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSaveThenLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	st := State{
		SagaID:         "saga-1",
		CompletedSteps: []string{"Reserve", "Pay"},
		Context:        NewContext(),
		Status:         Running,
	}

	version, err := store.Save(ctx, st, 0)
	require.NoError(t, err)
	require.NotZero(t, version)

	loaded, loadedVersion, err := store.Load(ctx, "saga-1")
	require.NoError(t, err)
	require.Equal(t, version, loadedVersion)
	require.Equal(t, st.SagaID, loaded.SagaID)
	require.Equal(t, st.CompletedSteps, loaded.CompletedSteps)
	require.Equal(t, Running, loaded.Status)
}

func TestStoreSaveRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	st := State{SagaID: "saga-2", Context: NewContext(), Status: Running}
	_, err := store.Save(ctx, st, 0)
	require.NoError(t, err)

	_, err = store.Save(ctx, st, 0)
	require.ErrorIs(t, err, statestore.ErrConcurrencyViolation)
}
