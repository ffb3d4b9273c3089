package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Keys содержит производные ключи аккаунта
type Keys struct {
	StorageKey []byte // ключ для шифрования identity узла на диске (32 bytes)
	DataKey    []byte // общий для всех узлов аккаунта ключ шифрования payload (32 bytes)
}

// Параметры Argon2id
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина выходного ключа в байтах
	Argon2KeyLen = 32
	// SaltSize - размер соли в байтах
	SaltSize = 32
)

// GenerateSalt генерирует криптографически случайную соль аккаунта
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	_, err := rand.Read(salt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DecodeSalt декодирует Base64 соль и проверяет ее длину
func DecodeSalt(saltBase64 string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return salt, nil
}

// DeriveKeys генерирует два независимых ключа из парольной фразы аккаунта:
// - StorageKey для шифрования приватного ключа узла на диске
// - DataKey для шифрования payload записей
// Использует Argon2id с разными context strings для независимости ключей
func DeriveKeys(passphrase, account string, salt []byte) (*Keys, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if account == "" {
		return nil, fmt.Errorf("account cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	baseInput := []byte(passphrase + "\x00" + account + "\x00")

	storageContext := append(append([]byte(nil), baseInput...), []byte("storage")...)
	storageKey := argon2.IDKey(storageContext, salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)

	dataContext := append(append([]byte(nil), baseInput...), []byte("data")...)
	dataKey := argon2.IDKey(dataContext, salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)

	return &Keys{
		StorageKey: storageKey,
		DataKey:    dataKey,
	}, nil
}
