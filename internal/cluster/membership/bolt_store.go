package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var silosBucket = []byte("silos")

// BoltStore is the reference Store implementation backed by an embedded
// bbolt database. bbolt has no native TTL, so expiry is derived entirely
// from the LastHeartbeat/TTL fields on each stored SiloInfo and evaluated by
// the caller (Watcher) on every scan.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if necessary) a bbolt-backed membership
// store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open membership store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(silosBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create silos bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// siloRecord is the JSON wire shape persisted per silo.
type siloRecord struct {
	SiloID        string    `json:"silo_id"`
	Address       string    `json:"address"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	TTLNanos      int64     `json:"ttl_nanos"`
}

func toRecord(info SiloInfo) siloRecord {
	return siloRecord{
		SiloID:        info.SiloID,
		Address:       info.Address,
		LastHeartbeat: info.LastHeartbeat,
		TTLNanos:      int64(info.TTL),
	}
}

func (r siloRecord) toInfo() SiloInfo {
	return SiloInfo{
		SiloID:        r.SiloID,
		Address:       r.Address,
		LastHeartbeat: r.LastHeartbeat,
		TTL:           time.Duration(r.TTLNanos),
	}
}

// PutSelf implements Store.
func (b *BoltStore) PutSelf(_ context.Context, info SiloInfo) error {
	payload, err := json.Marshal(toRecord(info))
	if err != nil {
		return fmt.Errorf("failed to marshal silo record: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(silosBucket)
		return bucket.Put([]byte(info.SiloID), payload)
	})
}

// Scan implements Store.
func (b *BoltStore) Scan(_ context.Context) ([]SiloInfo, error) {
	var out []SiloInfo

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(silosBucket)
		return bucket.ForEach(func(_, v []byte) error {
			var rec siloRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec.toInfo())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan silos: %w", err)
	}

	return out, nil
}

// Delete implements Store.
func (b *BoltStore) Delete(_ context.Context, siloID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(silosBucket)
		return bucket.Delete([]byte(siloID))
	})
}

// Close implements Store.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
