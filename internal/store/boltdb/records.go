package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
)

// logEntry запись append-only журнала
type logEntry struct {
	SavedAt time.Time          `json:"saved_at"`
	Record  *models.SyncRecord `json:"record"`
}

// SaveRecord upserts the current state and appends the version to the record log
func (s *Storage) SaveRecord(ctx context.Context, record *models.SyncRecord) error {
	if s.db == nil {
		return store.ErrStorageClosed
	}

	// Сериализуем запись в JSON
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	logData, err := json.Marshal(logEntry{SavedAt: time.Now().UTC(), Record: record})
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		records, err := bucket(tx, bucketRecords)
		if err != nil {
			return err
		}
		log, err := bucket(tx, bucketRecordLog)
		if err != nil {
			return err
		}

		// Сохраняем по ключу ID
		if err := records.Put([]byte(record.ID), data); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}

		// Журнал упорядочен по sequence bucket'а
		seq, err := log.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate log sequence: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := log.Put(key, logData); err != nil {
			return fmt.Errorf("failed to append log entry: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetRecord retrieves the current version of a record
func (s *Storage) GetRecord(ctx context.Context, id string) (*models.SyncRecord, error) {
	if s.db == nil {
		return nil, store.ErrStorageClosed
	}

	var record *models.SyncRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketRecords)
		if err != nil {
			return err
		}

		data := b.Get([]byte(id))
		if data == nil {
			return store.ErrRecordNotFound
		}

		// Десериализуем
		record = &models.SyncRecord{}
		if err := json.Unmarshal(data, record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListRecords returns all current records (including tombstones) sorted by id
func (s *Storage) ListRecords(ctx context.Context) ([]*models.SyncRecord, error) {
	if s.db == nil {
		return nil, store.ErrStorageClosed
	}

	var records []*models.SyncRecord

	// bbolt итерирует ключи в отсортированном порядке
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketRecords)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			var record models.SyncRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

// Manifest returns id -> {version, hash} for all current records
func (s *Storage) Manifest(ctx context.Context) (models.Manifest, error) {
	records, err := s.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	m := make(models.Manifest, len(records))
	for _, r := range records {
		m[r.ID] = r.ManifestEntry()
	}
	return m, nil
}

// LogSize returns the number of entries in the record log
func (s *Storage) LogSize(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, store.ErrStorageClosed
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketRecordLog)
		if err != nil {
			return err
		}
		n = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get log size: %w", err)
	}
	return n, nil
}

// PruneLog removes record log entries appended before the given time
func (s *Storage) PruneLog(ctx context.Context, before time.Time) (int, error) {
	if s.db == nil {
		return 0, store.ErrStorageClosed
	}

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketRecordLog)
		if err != nil {
			return err
		}

		// Журнал упорядочен по времени добавления, останавливаемся на первой свежей записи
		var stale [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry logEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal log entry: %w", err)
			}
			if !entry.SavedAt.Before(before) {
				break
			}
			stale = append(stale, append([]byte(nil), k...))
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to delete log entry: %w", err)
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune record log: %w", err)
	}
	return removed, nil
}
