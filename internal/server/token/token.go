// Package token выпускает и проверяет bearer токен локального управляющего API.
//
// Демон при каждом старте генерирует новый секрет, подписывает токен HS256
// и записывает его в файл с правами 0600. CLI читает токен из этого файла.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer значение iss в токенах
const Issuer = "peersyncd"

// SecretSize размер секрета подписи
const SecretSize = 32

// ErrInvalidToken токен не прошел проверку
var ErrInvalidToken = errors.New("invalid token")

// Claims представляет JWT claims управляющего API
type Claims struct {
	NodeID string `json:"node_id"`
	jwt.RegisteredClaims
}

// Service выпускает и проверяет токены
type Service struct {
	clock  clock.Clock
	secret []byte
	ttl    time.Duration
}

// NewSecret генерирует случайный секрет подписи
func NewSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	return secret, nil
}

// NewService создает сервис токенов
func NewService(secret []byte, ttl time.Duration, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		secret: secret,
		ttl:    ttl,
		clock:  clk,
	}
}

// Generate создает новый токен для узла
func (s *Service) Generate(nodeID string) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		NodeID: nodeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate проверяет подпись, срок действия и издателя токена
func (s *Service) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// WriteFile записывает токен в файл с правами 0600
func WriteFile(path, tokenString string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(tokenString+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	// файл мог существовать с другими правами
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	return nil
}

// ReadFile читает токен из файла
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return tok, nil
}
