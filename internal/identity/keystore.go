// Package identity создает и открывает постоянную identity узла.
//
// Seed ed25519 хранится на диске только зашифрованным ключом StorageKey,
// который выводится из парольной фразы аккаунта. Открытый seed существует
// только в keyring CryptoService.
package identity

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/internal/validation"
)

var (
	// ErrIdentityExists identity уже создана в этом хранилище
	ErrIdentityExists = errors.New("node identity already exists")

	// ErrWrongPassphrase seed не расшифровывается ключом из парольной фразы
	ErrWrongPassphrase = errors.New("wrong passphrase")
)

// KeyImporter добавляет ключи в keyring
type KeyImporter interface {
	ImportKey(id, algorithm string, material []byte) (*models.EncryptionKey, error)
}

// Identity открытая identity узла: ключи уже находятся в keyring
type Identity struct {
	NodeID       string
	Account      string
	SigningKeyID string
	DataKeyID    string
	PublicKey    []byte
	Salt         []byte
}

// CreateRequest параметры новой identity
type CreateRequest struct {
	Account    string
	Passphrase string
	Salt       []byte // соль аккаунта; nil - сгенерировать (первое устройство)
}

// Keystore хранилище identity узла
type Keystore struct {
	storage store.IdentityStorage
	keys    KeyImporter
	logger  *slog.Logger
	clock   clock.Clock
}

// NewKeystore создает Keystore
func NewKeystore(storage store.IdentityStorage, keys KeyImporter, logger *slog.Logger, clk clock.Clock) *Keystore {
	if clk == nil {
		clk = clock.New()
	}
	return &Keystore{
		storage: storage,
		keys:    keys,
		logger:  logger,
		clock:   clk,
	}
}

// Exists проверяет, создана ли identity
func (k *Keystore) Exists(ctx context.Context) (bool, error) {
	_, err := k.storage.GetIdentity(ctx)
	if errors.Is(err, store.ErrIdentityNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get identity: %w", err)
	}
	return true, nil
}

// Info возвращает сохраненную identity без зашифрованного seed
func (k *Keystore) Info(ctx context.Context) (*models.NodeIdentity, error) {
	stored, err := k.storage.GetIdentity(ctx)
	if err != nil {
		return nil, err
	}
	info := *stored
	info.EncryptedSeed = nil
	return &info, nil
}

// Create генерирует новую identity, сохраняет ее и открывает ключи в keyring
func (k *Keystore) Create(ctx context.Context, req CreateRequest) (*Identity, error) {
	if err := validation.ValidateAccount(req.Account); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassphrase(req.Passphrase); err != nil {
		return nil, err
	}

	exists, err := k.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrIdentityExists
	}

	salt := req.Salt
	if salt == nil {
		salt, err = crypto.GenerateSalt()
		if err != nil {
			return nil, err
		}
	}

	keys, err := crypto.DeriveKeys(req.Passphrase, req.Account, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keys: %w", err)
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate identity seed: %w", err)
	}

	encryptedSeed, err := crypto.Encrypt(seed, keys.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt identity seed: %w", err)
	}

	stored := &models.NodeIdentity{
		NodeID:        uuid.NewString(),
		Account:       req.Account,
		PublicKey:     ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey),
		EncryptedSeed: encryptedSeed,
		Salt:          append([]byte(nil), salt...),
		CreatedAt:     k.clock.Now().UTC(),
	}

	if err := k.storage.SaveIdentity(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}

	k.logger.Info("node identity created", "node_id", stored.NodeID, "account", stored.Account)
	return k.open(stored, seed, keys.DataKey)
}

// Unlock выводит ключи из парольной фразы и открывает сохраненную identity
func (k *Keystore) Unlock(ctx context.Context, passphrase string) (*Identity, error) {
	stored, err := k.storage.GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	keys, err := crypto.DeriveKeys(passphrase, stored.Account, stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keys: %w", err)
	}

	return k.Load(ctx, keys)
}

// Load открывает сохраненную identity уже выведенными ключами
func (k *Keystore) Load(ctx context.Context, keys *crypto.Keys) (*Identity, error) {
	stored, err := k.storage.GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	seed, err := crypto.Decrypt(stored.EncryptedSeed, keys.StorageKey)
	if err != nil {
		if syncerr.Is(err, syncerr.KindCrypto) {
			return nil, fmt.Errorf("%w: %w", ErrWrongPassphrase, err)
		}
		return nil, fmt.Errorf("failed to decrypt identity seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid identity seed length %d", len(seed))
	}

	public := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if !bytes.Equal(public, stored.PublicKey) {
		return nil, fmt.Errorf("identity public key does not match stored seed")
	}

	return k.open(stored, seed, keys.DataKey)
}

// open импортирует ключи identity в keyring
func (k *Keystore) open(stored *models.NodeIdentity, seed, dataKey []byte) (*Identity, error) {
	signing, err := k.keys.ImportKey("identity:"+stored.NodeID, models.AlgorithmEd25519, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to import identity key: %w", err)
	}

	data, err := k.keys.ImportKey("data:"+stored.Account, models.AlgorithmXChaCha20Poly1305, dataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to import data key: %w", err)
	}

	return &Identity{
		NodeID:       stored.NodeID,
		Account:      stored.Account,
		SigningKeyID: signing.ID,
		DataKeyID:    data.ID,
		PublicKey:    signing.PublicKey,
		Salt:         append([]byte(nil), stored.Salt...),
	}, nil
}
