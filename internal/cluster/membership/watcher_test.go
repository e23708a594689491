package membership

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store used for watcher unit tests, avoiding a
// dependency on bbolt for pure liveness-derivation logic.
type memStore struct {
	mu    sync.Mutex
	silos map[string]SiloInfo
}

func newMemStore() *memStore {
	return &memStore{silos: make(map[string]SiloInfo)}
}

func (m *memStore) PutSelf(_ context.Context, info SiloInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silos[info.SiloID] = info
	return nil
}

func (m *memStore) Scan(_ context.Context) ([]SiloInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SiloInfo, 0, len(m.silos))
	for _, s := range m.silos {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, siloID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.silos, siloID)
	return nil
}

func (m *memStore) Close() error { return nil }

func TestSiloInfoStatusTransitions(t *testing.T) {
	t.Parallel()

	ttl := 10 * time.Second
	now := time.Now()

	active := SiloInfo{LastHeartbeat: now, TTL: ttl}
	require.Equal(t, StatusActive, active.StatusAt(now))

	suspect := SiloInfo{LastHeartbeat: now.Add(-15 * time.Second), TTL: ttl}
	require.Equal(t, StatusSuspect, suspect.StatusAt(now))

	gone := SiloInfo{LastHeartbeat: now.Add(-25 * time.Second), TTL: ttl}
	require.Equal(t, StatusGone, gone.StatusAt(now))
}

func TestWatcherEmitsJoinedOnFirstScan(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	require.NoError(t, store.PutSelf(context.Background(), SiloInfo{
		SiloID:        "silo-a",
		LastHeartbeat: time.Now(),
		TTL:           time.Minute,
	}))

	w := NewWatcher(store, time.Minute)
	w.poll(context.Background())

	select {
	case evt := <-w.Events():
		require.Equal(t, SiloJoined, evt.Kind)
		require.Equal(t, "silo-a", evt.Silo.SiloID)
	default:
		t.Fatal("expected a SiloJoined event")
	}
}

func TestWatcherEmitsLeftOnExpiry(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	ttl := 10 * time.Millisecond
	require.NoError(t, store.PutSelf(context.Background(), SiloInfo{
		SiloID:        "silo-a",
		LastHeartbeat: time.Now().Add(-time.Hour),
		TTL:           ttl,
	}))

	w := NewWatcher(store, ttl)

	// First poll observes it as already Gone (never Active), so no
	// SiloJoined/SiloLeft pair fires yet since "known" starts false.
	w.poll(context.Background())
	select {
	case evt := <-w.Events():
		t.Fatalf("unexpected event %v on first poll of a gone silo", evt.Kind)
	default:
	}

	// Simulate recovery then expiry to exercise the Left transition.
	require.NoError(t, store.PutSelf(context.Background(), SiloInfo{
		SiloID:        "silo-a",
		LastHeartbeat: time.Now(),
		TTL:           ttl,
	}))
	w.poll(context.Background())

	select {
	case evt := <-w.Events():
		require.Equal(t, SiloJoined, evt.Kind)
	default:
		t.Fatal("expected SiloJoined after recovery")
	}

	time.Sleep(3 * ttl)
	w.poll(context.Background())

	select {
	case evt := <-w.Events():
		require.Equal(t, SiloLeft, evt.Kind)
	default:
		t.Fatal("expected SiloLeft after expiry")
	}
}
