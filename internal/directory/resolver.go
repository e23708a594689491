package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/quark-run/quark/internal/cluster/placement"
	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/statestore"
)

// Resolver implements the directory lookup/register/evict flow in front of
// a Store + placement.Placer: a cache miss consults the ring for the
// preferred owner, attempts to claim the entry, and falls back to whatever
// another silo already claimed if it lost the race.
type Resolver struct {
	store   Store
	placer  *placement.Placer
	localID identity.SiloID
}

// NewResolver constructs a Resolver. localID identifies the silo this
// resolver runs on, used only for logging/diagnostics.
func NewResolver(store Store, placer *placement.Placer,
	localID identity.SiloID) *Resolver {

	return &Resolver{store: store, placer: placer, localID: localID}
}

// Resolve returns the silo that should host key, registering it in the
// directory if this is the first time it has been placed.
func (r *Resolver) Resolve(ctx context.Context, key identity.Key) (identity.SiloID, error) {
	entry, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		r.placer.Pin(key, entry.Silo)
		return entry.Silo, nil

	case !errors.Is(err, statestore.ErrStateNotFound):
		return "", fmt.Errorf("failed to look up directory entry: %w", err)
	}

	preferred, ok := r.placer.Resolve(key)
	if !ok {
		return "", fmt.Errorf("no silo available to place %s", key)
	}

	if regErr := r.store.PutIfAbsent(ctx, key, preferred); regErr != nil {
		if !errors.Is(regErr, ErrStale) {
			return "", fmt.Errorf("failed to register directory entry: %w", regErr)
		}

		// Someone else won the race; read back whoever claimed it.
		winner, getErr := r.store.Get(ctx, key)
		if getErr != nil {
			return "", fmt.Errorf("failed to resolve after lost placement race: %w", getErr)
		}

		r.placer.Pin(key, winner.Silo)
		return winner.Silo, nil
	}

	r.placer.Pin(key, preferred)
	return preferred, nil
}

// Evict removes a stale directory entry (e.g. because the silo it pointed
// at has left the cluster), so the next Resolve re-places the actor.
func (r *Resolver) Evict(ctx context.Context, key identity.Key, expectedVersion int64) error {
	if err := r.store.DeleteIfVersion(ctx, key, expectedVersion); err != nil {
		if errors.Is(err, ErrStale) {
			// Already evicted or re-registered by someone else;
			// nothing more to do.
			r.placer.Unpin(key)
			return nil
		}
		return fmt.Errorf("failed to evict directory entry: %w", err)
	}

	r.placer.Unpin(key)
	return nil
}

// EvictBySilo evicts every directory entry pointing at silo, used when the
// membership watcher reports it Gone.
func (r *Resolver) EvictBySilo(ctx context.Context, silo identity.SiloID) error {
	entries, err := r.store.ListBySilo(ctx, silo)
	if err != nil {
		return fmt.Errorf("failed to list entries for silo %s: %w", silo, err)
	}

	for _, entry := range entries {
		if err := r.Evict(ctx, entry.Key, entry.Version); err != nil {
			return err
		}
	}

	return nil
}
