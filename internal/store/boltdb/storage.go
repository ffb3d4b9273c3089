// Package boltdb реализует хранилища узла поверх BoltDB:
// текущие записи, append-only журнал записей, закрепленные узлы,
// зашифрованную identity и метаданные.
package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/peersync/internal/store"
)

var (
	// BoltDB bucket names
	bucketRecords   = []byte("records")
	bucketRecordLog = []byte("record_log")
	bucketPeers     = []byte("peers")
	bucketIdentity  = []byte("identity")
	bucketMetadata  = []byte("meta")
)

var (
	_ store.RecordStorage   = (*Storage)(nil)
	_ store.PeerStorage     = (*Storage)(nil)
	_ store.IdentityStorage = (*Storage)(nil)
	_ store.MetadataStorage = (*Storage)(nil)
)

// Storage represents BoltDB storage implementation for a node
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketRecordLog, bucketPeers, bucketIdentity, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// bucket возвращает bucket или ошибку, если база повреждена
func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s bucket not found", name)
	}
	return b, nil
}
