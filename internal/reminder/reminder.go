// Package reminder implements the durable reminder schedule: register,
// unregister, list-by-actor, and a poller that fires due reminders and
// re-activates their owning actor, generalized from the teacher's
// internal/queue retry-queue shape (PendingOperation/JSON payload
// marshaling) into a persistent (ActorType, ActorID, Name) -> (Due, Period,
// Payload, NextFireTime) schedule.
package reminder

import (
	"errors"
	"time"

	"github.com/quark-run/quark/internal/identity"
)

// ErrNotFound is the sentinel for a reminder that doesn't exist. No
// function in this package returns it: Unregister of a missing reminder
// succeeds and ListByActor returns an empty list.
var ErrNotFound = errors.New("reminder: not found")

// Reminder is one persisted schedule entry.
type Reminder struct {
	Key           identity.Key
	Name          string
	DueTime       time.Time
	Period        time.Duration // zero means one-shot
	Payload       []byte
	RegisteredAt  time.Time
	NextFireTime  time.Time
}

// IsOneShot reports whether r fires exactly once rather than repeating.
func (r Reminder) IsOneShot() bool { return r.Period <= 0 }
