package store

import (
	"context"
	"time"

	"github.com/iudanet/peersync/internal/models"
)

//go:generate moq -out recordstorage_mock.go . RecordStorage

// RecordStorage defines interface for storing the current record state and its append-only log
type RecordStorage interface {
	// GetRecord retrieves the current version of a record (tombstones included)
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, id string) (*models.SyncRecord, error)

	// SaveRecord upserts the current state and appends the version to the record log
	// in a single transaction
	SaveRecord(ctx context.Context, record *models.SyncRecord) error

	// ListRecords returns all current records (including tombstones) sorted by id
	ListRecords(ctx context.Context) ([]*models.SyncRecord, error)

	// Manifest returns id -> {version, hash} for all current records
	Manifest(ctx context.Context) (models.Manifest, error)

	// LogSize returns the number of entries in the record log
	LogSize(ctx context.Context) (int, error)

	// PruneLog removes record log entries appended before the given time
	PruneLog(ctx context.Context, before time.Time) (int, error)
}
