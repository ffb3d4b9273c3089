package store

import (
	"context"

	"github.com/iudanet/peersync/internal/models"
)

//go:generate moq -out sessionstorage_mock.go . SessionStorage

// SessionStorage defines interface for sync session history
type SessionStorage interface {
	// SaveSession stores or replaces a session
	SaveSession(ctx context.Context, session *models.SyncSession) error

	// GetSession retrieves a session by ID
	// Returns ErrSessionNotFound if session doesn't exist
	GetSession(ctx context.Context, id string) (*models.SyncSession, error)

	// ListSessions returns the most recent sessions first; limit <= 0 means no limit
	ListSessions(ctx context.Context, limit int) ([]*models.SyncSession, error)
}
