package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quark-run/quark/internal/identity"
)

// DBTX is the minimal database/sql surface Queries needs, satisfied by both
// *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries is the hand-written SQL layer for the reminders table, sharing
// the actor-state database connection rather than standing up a second
// schema.
type Queries struct {
	db DBTX
}

// New wraps db with the reminder queries.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Register inserts or replaces the schedule entry for (key, name).
func (q *Queries) Register(ctx context.Context, key identity.Key, name string,
	due time.Time, period time.Duration, payload []byte, now time.Time) error {

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO reminders (
			actor_type, actor_id, name, due_time, period_ns, payload,
			registered_at, next_fire_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (actor_type, actor_id, name) DO UPDATE SET
			due_time = excluded.due_time,
			period_ns = excluded.period_ns,
			payload = excluded.payload,
			registered_at = excluded.registered_at,
			next_fire_time = excluded.next_fire_time
	`,
		string(key.Type), string(key.ID), name,
		due.UnixNano(), int64(period), payload,
		now.UnixNano(), due.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("register reminder: %w", err)
	}
	return nil
}

// Unregister deletes the schedule entry for (key, name). It is idempotent.
func (q *Queries) Unregister(ctx context.Context, key identity.Key, name string) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM reminders
		WHERE actor_type = ? AND actor_id = ? AND name = ?
	`, string(key.Type), string(key.ID), name)
	if err != nil {
		return fmt.Errorf("unregister reminder: %w", err)
	}
	return nil
}

// ListByActor returns every reminder registered for key.
func (q *Queries) ListByActor(ctx context.Context, key identity.Key) ([]Reminder, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT name, due_time, period_ns, payload, registered_at, next_fire_time
		FROM reminders
		WHERE actor_type = ? AND actor_id = ?
		ORDER BY name
	`, string(key.Type), string(key.ID))
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows, key)
}

// SelectDue returns every reminder whose NextFireTime is at or before
// now.Add(leeway), ordered by NextFireTime then (ActorType, ActorID, Name)
// to satisfy the fairness rule for tie-breaking.
func (q *Queries) SelectDue(ctx context.Context, now time.Time,
	leeway time.Duration) ([]Reminder, error) {

	cutoff := now.Add(leeway).UnixNano()

	rows, err := q.db.QueryContext(ctx, `
		SELECT actor_type, actor_id, name, due_time, period_ns, payload,
			registered_at, next_fire_time
		FROM reminders
		WHERE next_fire_time <= ?
		ORDER BY next_fire_time, actor_type, actor_id, name
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select due reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var (
			actorType, actorID, name string
			dueNanos, periodNanos    int64
			payload                  []byte
			registeredNanos          int64
			nextFireNanos            int64
		)
		if err := rows.Scan(&actorType, &actorID, &name, &dueNanos,
			&periodNanos, &payload, &registeredNanos, &nextFireNanos); err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}

		out = append(out, Reminder{
			Key:          identity.Key{Type: identity.ActorType(actorType), ID: identity.ActorID(actorID)},
			Name:         name,
			DueTime:      time.Unix(0, dueNanos),
			Period:       time.Duration(periodNanos),
			Payload:      payload,
			RegisteredAt: time.Unix(0, registeredNanos),
			NextFireTime: time.Unix(0, nextFireNanos),
		})
	}
	return out, rows.Err()
}

// AdvanceOrDelete advances a repeating reminder's NextFireTime by Period, or
// deletes it outright if it was one-shot (period <= 0). It is called once
// per fire, in the same logical step as delivery, so a fire is never
// double-counted.
func (q *Queries) AdvanceOrDelete(ctx context.Context, key identity.Key,
	name string, period time.Duration, firedAt time.Time) error {

	if period <= 0 {
		return q.Unregister(ctx, key, name)
	}

	next := firedAt.Add(period)
	_, err := q.db.ExecContext(ctx, `
		UPDATE reminders SET next_fire_time = ?
		WHERE actor_type = ? AND actor_id = ? AND name = ?
	`, next.UnixNano(), string(key.Type), string(key.ID), name)
	if err != nil {
		return fmt.Errorf("advance reminder: %w", err)
	}
	return nil
}

func scanReminders(rows *sql.Rows, key identity.Key) ([]Reminder, error) {
	var out []Reminder
	for rows.Next() {
		var (
			name                  string
			dueNanos, periodNanos int64
			payload               []byte
			registeredNanos       int64
			nextFireNanos         int64
		)
		if err := rows.Scan(&name, &dueNanos, &periodNanos, &payload,
			&registeredNanos, &nextFireNanos); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, Reminder{
			Key:          key,
			Name:         name,
			DueTime:      time.Unix(0, dueNanos),
			Period:       time.Duration(periodNanos),
			Payload:      payload,
			RegisteredAt: time.Unix(0, registeredNanos),
			NextFireTime: time.Unix(0, nextFireNanos),
		})
	}
	return out, rows.Err()
}
