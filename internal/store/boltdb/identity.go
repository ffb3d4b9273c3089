package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
)

const (
	keyIdentity = "node_identity"
)

// SaveIdentity stores the node identity.
// Seed ключа приходит уже зашифрованным, здесь он не расшифровывается.
func (s *Storage) SaveIdentity(ctx context.Context, identity *models.NodeIdentity) error {
	if s.db == nil {
		return store.ErrStorageClosed
	}

	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketIdentity)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(keyIdentity), data); err != nil {
			return fmt.Errorf("failed to save identity: %w", err)
		}
		return nil
	})
}

// GetIdentity retrieves the node identity
func (s *Storage) GetIdentity(ctx context.Context) (*models.NodeIdentity, error) {
	if s.db == nil {
		return nil, store.ErrStorageClosed
	}

	var identity *models.NodeIdentity
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketIdentity)
		if err != nil {
			return err
		}

		data := b.Get([]byte(keyIdentity))
		if data == nil {
			return store.ErrIdentityNotFound
		}

		identity = &models.NodeIdentity{}
		if err := json.Unmarshal(data, identity); err != nil {
			return fmt.Errorf("failed to unmarshal identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}
