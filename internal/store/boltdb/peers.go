package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
)

// SavePeer stores or updates a peer
func (s *Storage) SavePeer(ctx context.Context, node *models.SyncNode) error {
	if s.db == nil {
		return store.ErrStorageClosed
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal peer: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketPeers)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(node.ID), data); err != nil {
			return fmt.Errorf("failed to save peer: %w", err)
		}
		return nil
	})
}

// GetPeer retrieves a peer by ID
func (s *Storage) GetPeer(ctx context.Context, id string) (*models.SyncNode, error) {
	if s.db == nil {
		return nil, store.ErrStorageClosed
	}

	var node *models.SyncNode
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketPeers)
		if err != nil {
			return err
		}

		data := b.Get([]byte(id))
		if data == nil {
			return store.ErrPeerNotFound
		}

		node = &models.SyncNode{}
		if err := json.Unmarshal(data, node); err != nil {
			return fmt.Errorf("failed to unmarshal peer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// ListPeers returns all known peers sorted by id
func (s *Storage) ListPeers(ctx context.Context) ([]*models.SyncNode, error) {
	if s.db == nil {
		return nil, store.ErrStorageClosed
	}

	var nodes []*models.SyncNode
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketPeers)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var node models.SyncNode
			if err := json.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("failed to unmarshal peer: %w", err)
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}
	return nodes, nil
}

// DeletePeer removes a peer
func (s *Storage) DeletePeer(ctx context.Context, id string) error {
	if s.db == nil {
		return store.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketPeers)
		if err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
}
