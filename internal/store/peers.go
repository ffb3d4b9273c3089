package store

import (
	"context"

	"github.com/iudanet/peersync/internal/models"
)

//go:generate moq -out peerstorage_mock.go . PeerStorage

// PeerStorage defines interface for the pinned-peer table
type PeerStorage interface {
	// SavePeer stores or updates a peer
	SavePeer(ctx context.Context, node *models.SyncNode) error

	// GetPeer retrieves a peer by ID
	// Returns ErrPeerNotFound if peer doesn't exist
	GetPeer(ctx context.Context, id string) (*models.SyncNode, error)

	// ListPeers returns all known peers sorted by id
	ListPeers(ctx context.Context) ([]*models.SyncNode, error)

	// DeletePeer removes a peer
	DeletePeer(ctx context.Context, id string) error
}
