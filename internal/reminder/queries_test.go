package reminder

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/quark-run/quark/internal/identity"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE reminders (
			actor_type      TEXT NOT NULL,
			actor_id        TEXT NOT NULL,
			name            TEXT NOT NULL,
			due_time        INTEGER NOT NULL,
			period_ns       INTEGER NOT NULL DEFAULT 0,
			payload         BLOB NOT NULL,
			registered_at   INTEGER NOT NULL,
			next_fire_time  INTEGER NOT NULL,
			PRIMARY KEY (actor_type, actor_id, name)
		)
	`)
	require.NoError(t, err)

	return db
}

func testKey() identity.Key {
	return identity.Key{Type: "Subscription", ID: "u1"}
}

func TestRegisterAndListByActor(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	q := New(db)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	err := q.Register(ctx, testKey(), "renew", now, time.Second, []byte("payload"), now)
	require.NoError(t, err)

	list, err := q.ListByActor(ctx, testKey())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "renew", list[0].Name)
	require.Equal(t, time.Second, list[0].Period)
	require.Equal(t, []byte("payload"), list[0].Payload)
}

func TestRegisterIsUpsert(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	q := New(db)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	require.NoError(t, q.Register(ctx, testKey(), "renew", now, time.Second, []byte("v1"), now))
	require.NoError(t, q.Register(ctx, testKey(), "renew", now, 2*time.Second, []byte("v2"), now))

	list, err := q.ListByActor(ctx, testKey())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []byte("v2"), list[0].Payload)
	require.Equal(t, 2*time.Second, list[0].Period)
}

func TestSelectDueOrdersByNextFireThenKey(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	q := New(db)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	require.NoError(t, q.Register(ctx, identity.Key{Type: "A", ID: "2"}, "r",
		base, time.Second, nil, base))
	require.NoError(t, q.Register(ctx, identity.Key{Type: "A", ID: "1"}, "r",
		base, time.Second, nil, base))
	require.NoError(t, q.Register(ctx, identity.Key{Type: "A", ID: "3"}, "r",
		base.Add(time.Hour), time.Second, nil, base))

	due, err := q.SelectDue(ctx, base, time.Minute)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, identity.ActorID("1"), due[0].Key.ID)
	require.Equal(t, identity.ActorID("2"), due[1].Key.ID)
}

func TestAdvanceOrDeleteAdvancesRepeating(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	q := New(db)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	require.NoError(t, q.Register(ctx, testKey(), "renew", now, time.Second, nil, now))
	require.NoError(t, q.AdvanceOrDelete(ctx, testKey(), "renew", time.Second, now))

	due, err := q.SelectDue(ctx, now, 0)
	require.NoError(t, err)
	require.Empty(t, due)

	due, err = q.SelectDue(ctx, now.Add(time.Second), 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestAdvanceOrDeleteDeletesOneShot(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	q := New(db)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	require.NoError(t, q.Register(ctx, testKey(), "once", now, 0, nil, now))
	require.NoError(t, q.AdvanceOrDelete(ctx, testKey(), "once", 0, now))

	list, err := q.ListByActor(ctx, testKey())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	q := New(db)
	ctx := context.Background()

	require.NoError(t, q.Unregister(ctx, testKey(), "missing"))
}
