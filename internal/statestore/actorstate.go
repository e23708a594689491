package statestore

import (
	"context"
	"fmt"
	"time"
)

// Version is an opaque optimistic-concurrency token. The zero value means
// "no prior version" and is used to mean "this slot must not already exist"
// on Save, and is never returned for a slot that has actually been written.
type Version int64

// ActorStateStore implements the host-facing persistent state API described
// in the component design: Load/Save/Delete over (actorType, actorID, slot)
// with optimistic concurrency enforced via Version.
type ActorStateStore struct {
	store *Store
}

// NewActorStateStore wraps a Store with the actor-state facade.
func NewActorStateStore(store *Store) *ActorStateStore {
	return &ActorStateStore{store: store}
}

// Load returns the payload and current version for a state slot. A slot
// that has never been saved returns a zero Version and ErrStateNotFound.
func (s *ActorStateStore) Load(ctx context.Context, actorType, actorID,
	slot string) ([]byte, Version, error) {

	row, err := s.store.Queries.GetActorState(ctx, actorType, actorID, slot)
	if err != nil {
		return nil, 0, err
	}

	return row.Payload, Version(row.Version), nil
}

// Save writes payload to the slot, requiring expectedVersion to match the
// version currently persisted (0 meaning "must not exist yet"). On success
// it returns the new version. On mismatch it returns ErrConcurrencyViolation.
func (s *ActorStateStore) Save(ctx context.Context, actorType, actorID, slot string,
	payload []byte, expectedVersion Version) (Version, error) {

	newVersion, err := WithTxResult(s.store, ctx,
		func(ctx context.Context, q *Queries) (int64, error) {
			return q.UpsertActorState(
				ctx, actorType, actorID, slot, payload,
				int64(expectedVersion), time.Now(),
			)
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save actor state: %w", err)
	}

	return Version(newVersion), nil
}

// Delete removes a state slot, requiring expectedVersion to match.
func (s *ActorStateStore) Delete(ctx context.Context, actorType, actorID,
	slot string, expectedVersion Version) error {

	return s.store.WithTx(ctx, func(ctx context.Context, q *Queries) error {
		return q.DeleteActorState(
			ctx, actorType, actorID, slot, int64(expectedVersion),
		)
	})
}
