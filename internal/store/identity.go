package store

import (
	"context"
	"time"

	"github.com/iudanet/peersync/internal/models"
)

//go:generate moq -out identitystorage_mock.go . IdentityStorage

// IdentityStorage defines interface for the encrypted node identity
type IdentityStorage interface {
	// SaveIdentity stores the node identity
	SaveIdentity(ctx context.Context, identity *models.NodeIdentity) error

	// GetIdentity retrieves the node identity
	// Returns ErrIdentityNotFound if identity was not created yet
	GetIdentity(ctx context.Context) (*models.NodeIdentity, error)
}

//go:generate moq -out metadatastorage_mock.go . MetadataStorage

// MetadataStorage defines interface for storing node metadata
type MetadataStorage interface {
	// SaveLastSync saves the time of the last successful sync with a peer
	SaveLastSync(ctx context.Context, nodeID string, at time.Time) error

	// GetLastSync retrieves the time of the last successful sync with a peer
	// Returns zero time if no sync has been performed yet
	GetLastSync(ctx context.Context, nodeID string) (time.Time, error)
}
