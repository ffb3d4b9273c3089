package models

import "time"

// NodeIdentity постоянная identity узла.
// Seed ed25519 хранится только зашифрованным ключом StorageKey.
type NodeIdentity struct {
	CreatedAt     time.Time `json:"created_at"`
	NodeID        string    `json:"node_id"`
	Account       string    `json:"account"`
	PublicKey     []byte    `json:"public_key"`
	EncryptedSeed []byte    `json:"encrypted_seed"`
	Salt          []byte    `json:"salt"` // соль аккаунта, общая для всех узлов
}
