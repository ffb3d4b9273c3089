package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/syncerr"
)

const (
	// NonceSize - размер nonce для AES-GCM (12 bytes стандартный размер)
	NonceSize = 12
	// KeySize - размер симметричного ключа
	KeySize = 32
)

// newAEAD создает AEAD для указанного алгоритма
func newAEAD(algorithm string, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	switch algorithm {
	case models.AlgorithmAES256GCM, "":
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		aesGCM, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return aesGCM, nil
	case models.AlgorithmXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create XChaCha20-Poly1305: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("unsupported cipher algorithm %q", algorithm)
	}
}

// Encrypt шифрует данные с использованием AES-256-GCM
// Формат результата: nonce (12 bytes) + ciphertext + auth_tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	return EncryptWith(models.AlgorithmAES256GCM, plaintext, key)
}

// EncryptWith шифрует данные указанным AEAD алгоритмом.
// Для каждого вызова генерируется свежий случайный nonce, он идет префиксом к шифротексту.
// Пустой plaintext допустим (tombstone записи).
func EncryptWith(algorithm string, plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}

	// Генерируем случайный nonce
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal дописывает ciphertext и authentication tag после nonce
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt дешифрует данные, зашифрованные с помощью Encrypt
// Ожидает формат: nonce (12 bytes) + ciphertext + auth_tag (16 bytes)
func Decrypt(encrypted, key []byte) ([]byte, error) {
	return DecryptWith(models.AlgorithmAES256GCM, encrypted, key)
}

// DecryptWith дешифрует данные указанным AEAD алгоритмом.
// Непрошедший проверку тег всегда возвращает syncerr.ErrAuthenticationFailed.
func DecryptWith(algorithm string, encrypted, key []byte) ([]byte, error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}

	if len(encrypted) < aead.NonceSize()+aead.Overhead() {
		return nil, syncerr.Crypto("decrypt", fmt.Errorf("encrypted data too short: %w", syncerr.ErrAuthenticationFailed))
	}

	// Извлекаем nonce из префикса
	nonce := encrypted[:aead.NonceSize()]
	ciphertext := encrypted[aead.NonceSize():]

	// Дешифруем и проверяем authentication tag
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, syncerr.Crypto("decrypt", fmt.Errorf("failed to decrypt: %w", syncerr.ErrAuthenticationFailed))
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}
