package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/peersync/internal/store"
)

const (
	keyLastSyncPrefix = "last_sync/"
)

// SaveLastSync saves the time of the last successful sync with a peer
func (s *Storage) SaveLastSync(ctx context.Context, nodeID string, at time.Time) error {
	if s.db == nil {
		return store.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}

		// Конвертируем unix ms в bytes
		value := make([]byte, 8)
		binary.BigEndian.PutUint64(value, uint64(at.UnixMilli()))

		if err := b.Put([]byte(keyLastSyncPrefix+nodeID), value); err != nil {
			return fmt.Errorf("failed to save last sync time: %w", err)
		}
		return nil
	})
}

// GetLastSync retrieves the time of the last successful sync with a peer
// Returns zero time if no sync has been performed yet
func (s *Storage) GetLastSync(ctx context.Context, nodeID string) (time.Time, error) {
	if s.db == nil {
		return time.Time{}, store.ErrStorageClosed
	}

	var at time.Time
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}

		value := b.Get([]byte(keyLastSyncPrefix + nodeID))
		if value == nil {
			// Синхронизации с узлом еще не было
			return nil
		}

		at = time.UnixMilli(int64(binary.BigEndian.Uint64(value))).UTC()
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}
	return at, nil
}
