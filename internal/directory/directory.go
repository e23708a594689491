// Package directory implements the cluster-wide CAS-based placement
// directory: the durable (ActorType, ActorID) -> (SiloID, Version) mapping
// that makes placement decisions sticky across the cluster, backed by
// internal/statestore's transaction/retry machinery.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quark-run/quark/internal/identity"
	"github.com/quark-run/quark/internal/statestore"
)

// ErrStale is returned by PutIfAbsent/DeleteIfVersion when the directory
// entry has already changed since it was last observed by the caller.
var ErrStale = errors.New("directory: entry is stale")

// Entry is one resolved directory record.
type Entry struct {
	Key     identity.Key
	Silo    identity.SiloID
	Version int64
}

// Store is the persistence contract for the directory.
type Store interface {
	// Get returns the current entry for key, or a not-found error.
	Get(ctx context.Context, key identity.Key) (Entry, error)

	// PutIfAbsent registers key -> silo at version 1, failing if an entry
	// already exists.
	PutIfAbsent(ctx context.Context, key identity.Key, silo identity.SiloID) error

	// DeleteIfVersion evicts the entry for key if its current version
	// matches expectedVersion.
	DeleteIfVersion(ctx context.Context, key identity.Key, expectedVersion int64) error

	// ListBySilo returns every entry currently pointing at silo, used
	// when a silo leaves the cluster and its entries must be evicted.
	ListBySilo(ctx context.Context, silo identity.SiloID) ([]Entry, error)
}

// SQLiteStore is the reference Store implementation, sharing
// internal/statestore's TransactionExecutor/retry machinery since directory
// CAS and state-slot CAS are the same "optimistic version bump under
// serialization retry" problem.
type SQLiteStore struct {
	store *statestore.Store
}

// NewSQLiteStore wraps a statestore.Store with the directory facade.
func NewSQLiteStore(store *statestore.Store) *SQLiteStore {
	return &SQLiteStore{store: store}
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key identity.Key) (Entry, error) {
	row, err := s.store.Queries.GetDirectoryEntry(
		ctx, string(key.Type), string(key.ID),
	)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Key:     key,
		Silo:    identity.SiloID(row.SiloID),
		Version: row.Version,
	}, nil
}

// PutIfAbsent implements Store.
func (s *SQLiteStore) PutIfAbsent(ctx context.Context, key identity.Key,
	silo identity.SiloID) error {

	err := s.store.WithTx(ctx, func(ctx context.Context, q *statestore.Queries) error {
		return q.PutDirectoryEntryIfAbsent(
			ctx, string(key.Type), string(key.ID), string(silo), time.Now(),
		)
	})
	if errors.Is(err, statestore.ErrConcurrencyViolation) {
		return fmt.Errorf("%w: %v", ErrStale, err)
	}
	return err
}

// DeleteIfVersion implements Store.
func (s *SQLiteStore) DeleteIfVersion(ctx context.Context, key identity.Key,
	expectedVersion int64) error {

	err := s.store.WithTx(ctx, func(ctx context.Context, q *statestore.Queries) error {
		return q.DeleteDirectoryEntryIfVersion(
			ctx, string(key.Type), string(key.ID), expectedVersion,
		)
	})
	if errors.Is(err, statestore.ErrConcurrencyViolation) {
		return fmt.Errorf("%w: %v", ErrStale, err)
	}
	return err
}

// ListBySilo implements Store.
func (s *SQLiteStore) ListBySilo(ctx context.Context,
	silo identity.SiloID) ([]Entry, error) {

	rows, err := s.store.Queries.ListDirectoryEntriesBySilo(ctx, string(silo))
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			Key:     identity.Key{Type: identity.ActorType(r.ActorType), ID: identity.ActorID(r.ActorID)},
			Silo:    identity.SiloID(r.SiloID),
			Version: r.Version,
		})
	}

	return out, nil
}
