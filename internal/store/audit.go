package store

import (
	"context"
	"time"

	"github.com/iudanet/peersync/internal/models"
)

//go:generate moq -out auditstorage_mock.go . AuditStorage

// AuditStorage defines interface for the conflict and rejection audit log
type AuditStorage interface {
	// SaveAudit appends an audit entry
	SaveAudit(ctx context.Context, entry *models.AuditEntry) error

	// ListAudit returns audit entries for a record, oldest first.
	// Empty recordID returns all entries.
	ListAudit(ctx context.Context, recordID string) ([]*models.AuditEntry, error)

	// PruneAudit removes entries created before the given time
	PruneAudit(ctx context.Context, before time.Time) (int, error)
}
