package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/syncerr"
)

// keyEntry ключ в keyring вместе с секретным материалом
type keyEntry struct {
	meta    models.EncryptionKey
	private ed25519.PrivateKey // только для ed25519
	secret  []byte             // только для симметричных ключей
}

// Service владеет всеми ключами узла.
// Остальные компоненты ссылаются на ключи только по id и никогда не получают секретный материал.
type Service struct {
	logger *slog.Logger
	clock  clock.Clock
	keys   map[string]*keyEntry
	mu     sync.RWMutex
}

// NewService создает CryptoService с пустым keyring
func NewService(logger *slog.Logger, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		logger: logger,
		clock:  clk,
		keys:   make(map[string]*keyEntry),
	}
}

// GenerateKeyPair создает новый ключ: ed25519 для подписи и handshake
// или симметричный AEAD ключ для payload. Материал берется из crypto/rand.
func (s *Service) GenerateKeyPair(algorithm string) (*models.EncryptionKey, error) {
	switch algorithm {
	case models.AlgorithmEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		return s.ImportKey("", algorithm, priv.Seed())
	case models.AlgorithmAES256GCM, models.AlgorithmXChaCha20Poly1305:
		secret := make([]byte, KeySize)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate symmetric key: %w", err)
		}
		return s.ImportKey("", algorithm, secret)
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", algorithm)
	}
}

// ImportKey добавляет в keyring существующий материал.
// Для ed25519 material - seed (32 bytes) или полный приватный ключ (64 bytes),
// для симметричных алгоритмов - ключ длиной KeySize. Пустой id генерирует новый.
func (s *Service) ImportKey(id, algorithm string, material []byte) (*models.EncryptionKey, error) {
	if id == "" {
		id = uuid.NewString()
	}

	entry := &keyEntry{
		meta: models.EncryptionKey{
			ID:               id,
			Algorithm:        algorithm,
			CreatedAt:        s.clock.Now().UTC(),
			PrivateKeyHandle: "keyring:" + id,
		},
	}

	switch algorithm {
	case models.AlgorithmEd25519:
		switch len(material) {
		case ed25519.SeedSize:
			entry.private = ed25519.NewKeyFromSeed(material)
		case ed25519.PrivateKeySize:
			entry.private = append(ed25519.PrivateKey(nil), material...)
		default:
			return nil, fmt.Errorf("invalid ed25519 key length %d", len(material))
		}
		entry.meta.PublicKey = append([]byte(nil), entry.private.Public().(ed25519.PublicKey)...)
	case models.AlgorithmAES256GCM, models.AlgorithmXChaCha20Poly1305:
		if len(material) != KeySize {
			return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(material))
		}
		entry.secret = append([]byte(nil), material...)
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", algorithm)
	}

	s.mu.Lock()
	s.keys[id] = entry
	s.mu.Unlock()

	s.logger.Debug("key added to keyring", "key_id", id, "algorithm", algorithm)

	meta := entry.meta
	return &meta, nil
}

// SetExpiry задает срок действия ключа. Просроченным ключом нельзя подписывать и шифровать.
func (s *Service) SetExpiry(keyID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.keys[keyID]
	if !ok {
		return syncerr.Crypto("set key expiry", syncerr.ErrKeyNotFound)
	}
	entry.meta.ExpiresAt = expiresAt
	return nil
}

// RemoveKey удаляет ключ из keyring
func (s *Service) RemoveKey(keyID string) {
	s.mu.Lock()
	delete(s.keys, keyID)
	s.mu.Unlock()
}

// Key возвращает публичное описание ключа
func (s *Service) Key(keyID string) (*models.EncryptionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.keys[keyID]
	if !ok {
		return nil, syncerr.Crypto("get key", syncerr.ErrKeyNotFound)
	}
	meta := entry.meta
	return &meta, nil
}

// PublicKey возвращает публичный ключ ed25519 по id
func (s *Service) PublicKey(keyID string) (ed25519.PublicKey, error) {
	key, err := s.Key(keyID)
	if err != nil {
		return nil, err
	}
	if key.Algorithm != models.AlgorithmEd25519 {
		return nil, fmt.Errorf("key %s is not a signing key", keyID)
	}
	return ed25519.PublicKey(key.PublicKey), nil
}

// ExportKeys возвращает описания всех ключей без секретного материала, отсортированные по id.
// Handle приватного ключа очищается безусловно.
func (s *Service) ExportKeys() []*models.EncryptionKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.EncryptionKey, 0, len(s.keys))
	for _, entry := range s.keys {
		meta := entry.meta
		meta.PrivateKeyHandle = ""
		meta.PublicKey = append([]byte(nil), entry.meta.PublicKey...)
		result = append(result, &meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// usable возвращает ключ, пригодный для подписи или шифрования
func (s *Service) usable(op, keyID string) (*keyEntry, error) {
	s.mu.RLock()
	entry, ok := s.keys[keyID]
	s.mu.RUnlock()

	if !ok {
		return nil, syncerr.Crypto(op, syncerr.ErrKeyNotFound)
	}
	if entry.meta.IsExpired(s.clock.Now()) {
		return nil, syncerr.Crypto(op, fmt.Errorf("key %s expired at %s", keyID, entry.meta.ExpiresAt))
	}
	return entry, nil
}

// Sign подписывает данные ключом ed25519
func (s *Service) Sign(data []byte, keyID string) ([]byte, error) {
	entry, err := s.usable("sign", keyID)
	if err != nil {
		return nil, err
	}
	if entry.private == nil {
		return nil, syncerr.Crypto("sign", fmt.Errorf("key %s is not a signing key", keyID))
	}
	return ed25519.Sign(entry.private, data), nil
}

// Verify проверяет подпись ed25519 публичным ключом
func (s *Service) Verify(data, signature, publicKey []byte) bool {
	return Verify(data, signature, publicKey)
}

// Verify проверяет подпись ed25519 без обращения к keyring
func Verify(data, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), data, signature)
}

// Encrypt шифрует данные симметричным ключом из keyring
func (s *Service) Encrypt(plaintext []byte, keyID string) ([]byte, error) {
	entry, err := s.usable("encrypt", keyID)
	if err != nil {
		return nil, err
	}
	if entry.secret == nil {
		return nil, syncerr.Crypto("encrypt", fmt.Errorf("key %s is not an encryption key", keyID))
	}
	return EncryptWith(entry.meta.Algorithm, plaintext, entry.secret)
}

// Decrypt дешифрует данные симметричным ключом из keyring.
// Просроченный ключ допускается, чтобы старые записи оставались читаемыми.
func (s *Service) Decrypt(ciphertext []byte, keyID string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.keys[keyID]
	s.mu.RUnlock()

	if !ok {
		return nil, syncerr.Crypto("decrypt", syncerr.ErrKeyNotFound)
	}
	if entry.secret == nil {
		return nil, syncerr.Crypto("decrypt", fmt.Errorf("key %s is not an encryption key", keyID))
	}
	return DecryptWith(entry.meta.Algorithm, ciphertext, entry.secret)
}

// Hash вычисляет content hash
func (s *Service) Hash(data []byte) string {
	return Hash(data)
}
