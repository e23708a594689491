package statestore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrStateNotFound is returned when no row exists for the requested
// (actorType, actorID, slot) triple.
var ErrStateNotFound = errors.New("statestore: state not found")

// ErrConcurrencyViolation is returned by UpsertActorState/DeleteActorState
// and the directory CAS queries when the caller's expected version (or
// expected absence) does not match what is currently persisted, signaling
// that another writer has modified the row concurrently.
var ErrConcurrencyViolation = errors.New("statestore: concurrency violation")

// DBTX is satisfied by both *sql.DB and *sql.Tx, letting Queries run either
// standalone or bound to a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries is the hand-written replacement for the generated sqlc query
// layer: a thin set of statements against the actor_state and
// directory_entries tables, bound to whatever DBTX it was constructed with.
type Queries struct {
	db DBTX
}

// New returns a Queries bound to the given executor (a *sql.DB for
// standalone calls, or a *sql.Tx inside a transaction).
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// ActorStateRow is a single persisted state slot.
type ActorStateRow struct {
	ActorType string
	ActorID   string
	Slot      string
	Payload   []byte
	Version   int64
	UpdatedAt time.Time
}

// GetActorState loads the current row for (actorType, actorID, slot).
// Returns ErrStateNotFound if absent.
func (q *Queries) GetActorState(ctx context.Context, actorType, actorID,
	slot string) (ActorStateRow, error) {

	row := q.db.QueryRowContext(ctx, `
		SELECT actor_type, actor_id, slot, payload, version, updated_at
		FROM actor_state
		WHERE actor_type = ? AND actor_id = ? AND slot = ?`,
		actorType, actorID, slot)

	var out ActorStateRow
	var updatedAtUnix int64
	err := row.Scan(
		&out.ActorType, &out.ActorID, &out.Slot, &out.Payload,
		&out.Version, &updatedAtUnix,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ActorStateRow{}, ErrStateNotFound
	case err != nil:
		return ActorStateRow{}, err
	}

	out.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return out, nil
}

// UpsertActorState inserts a new slot at version 1, or bumps an existing
// slot's version by one if expectedVersion matches the row currently
// persisted (0 meaning "must not exist yet"). It returns ErrConcurrencyViolation
// if expectedVersion doesn't match.
func (q *Queries) UpsertActorState(ctx context.Context, actorType, actorID,
	slot string, payload []byte, expectedVersion int64, now time.Time) (int64,
	error) {

	if expectedVersion == 0 {
		res, err := q.db.ExecContext(ctx, `
			INSERT INTO actor_state
				(actor_type, actor_id, slot, payload, version, updated_at)
			SELECT ?, ?, ?, ?, 1, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM actor_state
				WHERE actor_type = ? AND actor_id = ? AND slot = ?
			)`,
			actorType, actorID, slot, payload, now.Unix(),
			actorType, actorID, slot,
		)
		if err != nil {
			return 0, err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if affected == 0 {
			return 0, ErrConcurrencyViolation
		}

		return 1, nil
	}

	newVersion := expectedVersion + 1
	res, err := q.db.ExecContext(ctx, `
		UPDATE actor_state
		SET payload = ?, version = ?, updated_at = ?
		WHERE actor_type = ? AND actor_id = ? AND slot = ? AND version = ?`,
		payload, newVersion, now.Unix(),
		actorType, actorID, slot, expectedVersion,
	)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrConcurrencyViolation
	}

	return newVersion, nil
}

// DeleteActorState removes a slot, requiring expectedVersion to match.
func (q *Queries) DeleteActorState(ctx context.Context, actorType, actorID,
	slot string, expectedVersion int64) error {

	res, err := q.db.ExecContext(ctx, `
		DELETE FROM actor_state
		WHERE actor_type = ? AND actor_id = ? AND slot = ? AND version = ?`,
		actorType, actorID, slot, expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrencyViolation
	}

	return nil
}

// DirectoryRow is a single placement-directory entry.
type DirectoryRow struct {
	ActorType string
	ActorID   string
	SiloID    string
	Version   int64
}

// GetDirectoryEntry loads the silo currently hosting (actorType, actorID).
func (q *Queries) GetDirectoryEntry(ctx context.Context, actorType,
	actorID string) (DirectoryRow, error) {

	row := q.db.QueryRowContext(ctx, `
		SELECT actor_type, actor_id, silo_id, version
		FROM directory_entries
		WHERE actor_type = ? AND actor_id = ?`,
		actorType, actorID)

	var out DirectoryRow
	err := row.Scan(&out.ActorType, &out.ActorID, &out.SiloID, &out.Version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return DirectoryRow{}, ErrStateNotFound
	case err != nil:
		return DirectoryRow{}, err
	}

	return out, nil
}

// PutDirectoryEntryIfAbsent registers (actorType, actorID) -> siloID at
// version 1, failing with ErrConcurrencyViolation if an entry already
// exists.
func (q *Queries) PutDirectoryEntryIfAbsent(ctx context.Context, actorType,
	actorID, siloID string, now time.Time) error {

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO directory_entries
			(actor_type, actor_id, silo_id, version, updated_at)
		SELECT ?, ?, ?, 1, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM directory_entries
			WHERE actor_type = ? AND actor_id = ?
		)`,
		actorType, actorID, siloID, now.Unix(), actorType, actorID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrencyViolation
	}

	return nil
}

// DeleteDirectoryEntryIfVersion evicts a stale directory entry, requiring
// expectedVersion to match so concurrent evictors don't race.
func (q *Queries) DeleteDirectoryEntryIfVersion(ctx context.Context, actorType,
	actorID string, expectedVersion int64) error {

	res, err := q.db.ExecContext(ctx, `
		DELETE FROM directory_entries
		WHERE actor_type = ? AND actor_id = ? AND version = ?`,
		actorType, actorID, expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrencyViolation
	}

	return nil
}

// ListDirectoryEntriesBySilo returns every actor currently directed to
// siloID, used when a silo leaves the cluster and its entries must be
// evicted en masse.
func (q *Queries) ListDirectoryEntriesBySilo(ctx context.Context,
	siloID string) ([]DirectoryRow, error) {

	rows, err := q.db.QueryContext(ctx, `
		SELECT actor_type, actor_id, silo_id, version
		FROM directory_entries
		WHERE silo_id = ?`, siloID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DirectoryRow
	for rows.Next() {
		var row DirectoryRow
		if err := rows.Scan(&row.ActorType, &row.ActorID, &row.SiloID,
			&row.Version); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
