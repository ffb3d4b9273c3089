package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/iudanet/peersync/internal/syncerr"
)

// Контексты HKDF для двух направлений канала
const (
	channelInfoDialer   = "peersync channel dialer->listener"
	channelInfoListener = "peersync channel listener->dialer"
)

// Ephemeral одноразовая X25519 пара для handshake
type Ephemeral struct {
	Public  []byte
	private []byte
}

// NewEphemeral генерирует одноразовую X25519 пару
func NewEphemeral() (*Ephemeral, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to compute ephemeral public key: %w", err)
	}
	return &Ephemeral{Public: pub, private: priv}, nil
}

// SharedSecret вычисляет общий секрет с публичным ключом узла
func (e *Ephemeral) SharedSecret(peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != curve25519.PointSize {
		return nil, syncerr.Authentication("key agreement", fmt.Errorf("invalid ephemeral key length %d", len(peerPublic)))
	}
	shared, err := curve25519.X25519(e.private, peerPublic)
	if err != nil {
		return nil, syncerr.Authentication("key agreement", err)
	}
	return shared, nil
}

// ChannelKeys направленные ключи защищенного канала
type ChannelKeys struct {
	Send []byte
	Recv []byte
}

// DeriveChannelKeys выводит ключи канала из общего секрета через HKDF-SHA256.
// transcript служит солью и привязывает ключи к конкретному handshake.
func DeriveChannelKeys(shared, transcript []byte, dialer bool) (*ChannelKeys, error) {
	expand := func(info string) ([]byte, error) {
		key := make([]byte, chacha20poly1305.KeySize)
		r := hkdf.New(sha256.New, shared, transcript, []byte(info))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("failed to derive channel key: %w", err)
		}
		return key, nil
	}

	d2l, err := expand(channelInfoDialer)
	if err != nil {
		return nil, err
	}
	l2d, err := expand(channelInfoListener)
	if err != nil {
		return nil, err
	}

	if dialer {
		return &ChannelKeys{Send: d2l, Recv: l2d}, nil
	}
	return &ChannelKeys{Send: l2d, Recv: d2l}, nil
}

// Channel шифрует кадры после handshake ChaCha20-Poly1305 со счетчиком в nonce.
// Переупорядоченный, повторенный или подмененный кадр не проходит Open.
type Channel struct {
	send    cipher.AEAD
	recv    cipher.AEAD
	sendSeq uint64
	recvSeq uint64
	sendMu  sync.Mutex
	recvMu  sync.Mutex
}

// NewChannel создает канал по направленным ключам
func NewChannel(keys *ChannelKeys) (*Channel, error) {
	send, err := chacha20poly1305.New(keys.Send)
	if err != nil {
		return nil, fmt.Errorf("failed to create send cipher: %w", err)
	}
	recv, err := chacha20poly1305.New(keys.Recv)
	if err != nil {
		return nil, fmt.Errorf("failed to create recv cipher: %w", err)
	}
	return &Channel{send: send, recv: recv}, nil
}

func counterNonce(seq uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSize-8:], seq)
	return nonce
}

// Seal шифрует исходящий кадр
func (c *Channel) Seal(plaintext []byte) []byte {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	out := c.send.Seal(nil, counterNonce(c.sendSeq), plaintext, nil)
	c.sendSeq++
	return out
}

// Open расшифровывает входящий кадр, ожидая следующий номер последовательности
func (c *Channel) Open(ciphertext []byte) ([]byte, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	plaintext, err := c.recv.Open(nil, counterNonce(c.recvSeq), ciphertext, nil)
	if err != nil {
		return nil, syncerr.Crypto("open frame", syncerr.ErrAuthenticationFailed)
	}
	c.recvSeq++
	return plaintext, nil
}
