package saga

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/quark-run/quark/internal/statestore"
)

const (
	sagaActorType = "saga"
	sagaSlot      = "state"
)

// ActorStateStore is the narrow internal/statestore surface the saga store
// needs, satisfied by *statestore.ActorStateStore.
type ActorStateStore interface {
	Load(ctx context.Context, actorType, actorID, slot string) ([]byte, statestore.Version, error)
	Save(ctx context.Context, actorType, actorID, slot string, payload []byte,
		expectedVersion statestore.Version) (statestore.Version, error)
}

// Store persists saga State via an ActorStateStore, treating each saga run
// as a single versioned actor-state slot.
type Store struct {
	backing ActorStateStore
}

// NewStore wraps backing with the saga persistence facade.
func NewStore(backing ActorStateStore) *Store {
	return &Store{backing: backing}
}

// Load returns the persisted State for sagaID and its current version, or
// ErrNotFound if no run has ever been persisted.
func (s *Store) Load(ctx context.Context, sagaID string) (State, statestore.Version, error) {
	payload, version, err := s.backing.Load(ctx, sagaActorType, sagaID, sagaSlot)
	if errors.Is(err, statestore.ErrStateNotFound) {
		return State{}, 0, ErrNotFound
	}
	if err != nil {
		return State{}, 0, fmt.Errorf("load saga state: %w", err)
	}

	var st State
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&st); err != nil {
		return State{}, 0, fmt.Errorf("decode saga state: %w", err)
	}

	return st, version, nil
}

// Save persists st at expectedVersion (0 for a brand-new saga), returning
// the new version on success.
func (s *Store) Save(ctx context.Context, st State,
	expectedVersion statestore.Version) (statestore.Version, error) {

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return 0, fmt.Errorf("encode saga state: %w", err)
	}

	newVersion, err := s.backing.Save(
		ctx, sagaActorType, st.SagaID, sagaSlot, buf.Bytes(), expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("save saga state: %w", err)
	}

	return newVersion, nil
}
