package models

import "time"

// Алгоритмы ключей
const (
	AlgorithmEd25519           = "ed25519"
	AlgorithmAES256GCM         = "aes-256-gcm"
	AlgorithmXChaCha20Poly1305 = "xchacha20-poly1305"
)

// EncryptionKey описывает ключ, которым владеет CryptoService.
// Остальные компоненты ссылаются на ключ только по ID.
// PrivateKeyHandle указывает на материал внутри keyring и никогда не сериализуется.
type EncryptionKey struct {
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at,omitempty"`
	ID               string    `json:"id"`
	Algorithm        string    `json:"algorithm"`
	PrivateKeyHandle string    `json:"-" msgpack:"-"`
	PublicKey        []byte    `json:"public_key,omitempty"`
}

// IsSymmetric сообщает, что ключ предназначен для шифрования payload
func (k *EncryptionKey) IsSymmetric() bool {
	return k.Algorithm == AlgorithmAES256GCM || k.Algorithm == AlgorithmXChaCha20Poly1305
}

// IsExpired проверяет срок действия ключа
func (k *EncryptionKey) IsExpired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}
