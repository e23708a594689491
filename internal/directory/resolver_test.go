package directory

import (
	"context"
	"sync"
	"testing"

	"github.com/quark-run/quark/internal/cluster/placement"
	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/statestore"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store used for resolver unit tests.
type fakeStore struct {
	mu      sync.Mutex
	entries map[identity.Key]Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[identity.Key]Entry)}
}

func (f *fakeStore) Get(_ context.Context, key identity.Key) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[key]
	if !ok {
		return Entry{}, statestore.ErrStateNotFound
	}
	return e, nil
}

func (f *fakeStore) PutIfAbsent(_ context.Context, key identity.Key,
	silo identity.SiloID) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entries[key]; ok {
		return ErrStale
	}
	f.entries[key] = Entry{Key: key, Silo: silo, Version: 1}
	return nil
}

func (f *fakeStore) DeleteIfVersion(_ context.Context, key identity.Key,
	expectedVersion int64) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[key]
	if !ok || e.Version != expectedVersion {
		return ErrStale
	}
	delete(f.entries, key)
	return nil
}

func (f *fakeStore) ListBySilo(_ context.Context,
	silo identity.SiloID) ([]Entry, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Entry
	for _, e := range f.entries {
		if e.Silo == silo {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestResolverRegistersOnFirstResolve(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	placer := placement.NewPlacer()
	placer.UpdateRing([]identity.SiloID{"silo-a", "silo-b"})

	r := NewResolver(store, placer, "silo-a")

	key := identity.Key{Type: "Account", ID: "1"}
	silo, err := r.Resolve(context.Background(), key)
	require.NoError(t, err)
	require.Contains(t, []identity.SiloID{"silo-a", "silo-b"}, silo)

	// Resolving again should return the same, now-registered silo.
	silo2, err := r.Resolve(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, silo, silo2)
}

func TestResolverEvictAllowsReplacement(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	placer := placement.NewPlacer()
	placer.UpdateRing([]identity.SiloID{"silo-a"})

	r := NewResolver(store, placer, "silo-a")
	key := identity.Key{Type: "Account", ID: "1"}

	silo, err := r.Resolve(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, identity.SiloID("silo-a"), silo)

	require.NoError(t, r.Evict(context.Background(), key, 1))

	// After eviction, the key is no longer registered.
	_, err = store.Get(context.Background(), key)
	require.ErrorIs(t, err, statestore.ErrStateNotFound)
}

func TestResolverEvictBySilo(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	placer := placement.NewPlacer()
	placer.UpdateRing([]identity.SiloID{"silo-a"})

	r := NewResolver(store, placer, "silo-a")

	for i := 0; i < 5; i++ {
		key := identity.Key{Type: "Account", ID: identity.ActorID(string(rune('a' + i)))}
		_, err := r.Resolve(context.Background(), key)
		require.NoError(t, err)
	}

	require.NoError(t, r.EvictBySilo(context.Background(), "silo-a"))

	remaining, err := store.ListBySilo(context.Background(), "silo-a")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
