package conn

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/internal/validation"
	"github.com/iudanet/peersync/pkg/api"
)

const (
	transcriptDomain = "peersync/handshake/v1"
	nonceSize        = 32
)

var (
	// ErrAccountMismatch узел принадлежит другому аккаунту
	ErrAccountMismatch = errors.New("account mismatch")

	// ErrIncompatible нет общей версии протокола синхронизации
	ErrIncompatible = errors.New("no common sync protocol")

	// ErrSelfConnection узел соединился сам с собой
	ErrSelfConnection = errors.New("connection to self")

	// ErrUnexpectedFrame кадр не соответствует шагу handshake
	ErrUnexpectedFrame = errors.New("unexpected frame")
)

// handshakeResult итог успешного handshake
type handshakeResult struct {
	remote  api.Hello
	channel *crypto.Channel
	caps    []string
}

// trustDecision ключ для проверки подписи узла и нужно ли закрепить его после handshake
type trustDecision struct {
	key    []byte
	caps   []string
	pinNew bool
}

// handshake выполняет взаимную аутентификацию:
//
//	D -> HELLO, L -> HELLO, L -> CHALLENGE(nL), D -> RESPONSE, D -> CHALLENGE(nD), L -> RESPONSE
//
// Каждая сторона подписывает transcript обоих HELLO вместе с nonce другой стороны.
// Ключи канала выводятся из X25519 секрета эфемерных ключей и transcript.
func (m *Manager) handshake(ctx context.Context, codec *protocol.Codec, dialer bool, expectedID string) (*handshakeResult, error) {
	eph, err := crypto.NewEphemeral()
	if err != nil {
		return nil, err
	}
	local := m.hello(ctx, eph)

	var remote api.Hello
	if dialer {
		if err := codec.Send(protocol.MsgHello, local); err != nil {
			return nil, syncerr.Network("handshake", err)
		}
		if err := readMessage(codec, protocol.MsgHello, &remote); err != nil {
			return nil, err
		}
	} else {
		if err := readMessage(codec, protocol.MsgHello, &remote); err != nil {
			return nil, err
		}
	}

	trust, err := m.checkHello(ctx, &remote, dialer, expectedID)
	if err != nil {
		// dialer в этот момент ждет HELLO и прочитает причину отказа
		if !dialer {
			_ = codec.Send(protocol.MsgBye, api.Bye{Reason: err.Error()})
		}
		return nil, err
	}

	if !dialer {
		if err := codec.Send(protocol.MsgHello, local); err != nil {
			return nil, syncerr.Network("handshake", err)
		}
	}

	var transcript []byte
	if dialer {
		transcript = buildTranscript(&local, &remote)
	} else {
		transcript = buildTranscript(&remote, &local)
	}

	if dialer {
		if err := m.answerChallenge(codec, transcript); err != nil {
			return nil, err
		}
		if err := m.challenge(codec, transcript, trust.key); err != nil {
			return nil, err
		}
	} else {
		if err := m.challenge(codec, transcript, trust.key); err != nil {
			return nil, err
		}
		if err := m.answerChallenge(codec, transcript); err != nil {
			return nil, err
		}
	}

	shared, err := eph.SharedSecret(remote.Ephemeral)
	if err != nil {
		return nil, err
	}
	keys, err := crypto.DeriveChannelKeys(shared, transcript, dialer)
	if err != nil {
		return nil, err
	}
	channel, err := crypto.NewChannel(keys)
	if err != nil {
		return nil, err
	}

	if trust.pinNew {
		if err := m.registry.Pin(ctx, remote.NodeID, remote.PublicKey); err != nil {
			return nil, fmt.Errorf("failed to pin node key: %w", err)
		}
		m.logger.Info("node key pinned on first use", "node_id", remote.NodeID)
	}

	return &handshakeResult{remote: remote, channel: channel, caps: trust.caps}, nil
}

func (m *Manager) hello(ctx context.Context, eph *crypto.Ephemeral) api.Hello {
	var digest string
	if m.digest != nil {
		if d, err := m.digest(ctx); err == nil {
			digest = d
		} else {
			m.logger.Warn("failed to compute data digest for hello", "error", err)
		}
	}
	return api.Hello{
		NodeID:       m.local.NodeID,
		Account:      m.cfg.Account,
		Version:      m.cfg.Version,
		DataDigest:   digest,
		PublicKey:    m.local.PublicKey,
		Ephemeral:    eph.Public,
		Capabilities: m.cfg.Capabilities,
		ListenPort:   m.cfg.ListenPort,
	}
}

// checkHello проверяет HELLO узла и решает, каким ключом проверять его подпись
func (m *Manager) checkHello(ctx context.Context, remote *api.Hello, dialer bool, expectedID string) (*trustDecision, error) {
	fail := func(err error) (*trustDecision, error) {
		return nil, syncerr.Authentication("handshake", err).WithNode(remote.NodeID)
	}

	if err := validation.ValidateNodeID(remote.NodeID); err != nil {
		return fail(err)
	}
	if remote.NodeID == m.local.NodeID {
		return fail(ErrSelfConnection)
	}
	if remote.Account != m.cfg.Account {
		return fail(fmt.Errorf("%w: %q", ErrAccountMismatch, remote.Account))
	}
	if dialer && expectedID != "" && remote.NodeID != expectedID {
		return fail(fmt.Errorf("expected node %s, got %s", expectedID, remote.NodeID))
	}
	if len(remote.PublicKey) != ed25519.PublicKeySize {
		return fail(fmt.Errorf("invalid public key length %d", len(remote.PublicKey)))
	}

	caps := models.IntersectCapabilities(m.cfg.Capabilities, remote.Capabilities)
	if !slices.Contains(caps, models.CapabilitySync) {
		return fail(ErrIncompatible)
	}

	node, err := m.registry.Get(remote.NodeID)
	if err != nil && !errors.Is(err, syncerr.ErrUnknownNode) {
		return nil, err
	}

	switch {
	case node != nil && node.NeedsRepin:
		return fail(fmt.Errorf("%w: node needs manual repin", syncerr.ErrKeyMismatch))
	case node != nil && node.IsPinned():
		if !bytes.Equal(node.PublicKey, remote.PublicKey) {
			if err := m.registry.FlagRepin(ctx, remote.NodeID); err != nil {
				m.logger.Error("failed to flag node for repin", "node_id", remote.NodeID, "error", err)
			}
			m.logger.Warn("node presented a different public key", "node_id", remote.NodeID)
			return fail(syncerr.ErrKeyMismatch)
		}
		return &trustDecision{key: node.PublicKey, caps: caps}, nil
	case m.cfg.TrustMode == TrustStrict:
		return fail(syncerr.ErrUntrustedNode)
	default:
		return &trustDecision{key: remote.PublicKey, caps: caps, pinNew: true}, nil
	}
}

// challenge отправляет nonce и проверяет ответ узла
func (m *Manager) challenge(codec *protocol.Codec, transcript, key []byte) error {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	if err := codec.Send(protocol.MsgChallenge, api.Challenge{Nonce: nonce}); err != nil {
		return syncerr.Network("handshake", err)
	}

	var resp api.Response
	if err := readMessage(codec, protocol.MsgResponse, &resp); err != nil {
		return err
	}
	if !crypto.Verify(signedPart(transcript, nonce), resp.Signature, key) {
		return syncerr.Authentication("handshake", syncerr.ErrInvalidSignature)
	}
	return nil
}

// answerChallenge подписывает nonce узла вместе с transcript
func (m *Manager) answerChallenge(codec *protocol.Codec, transcript []byte) error {
	var ch api.Challenge
	if err := readMessage(codec, protocol.MsgChallenge, &ch); err != nil {
		return err
	}
	if len(ch.Nonce) != nonceSize {
		return syncerr.Authentication("handshake", fmt.Errorf("invalid nonce length %d", len(ch.Nonce)))
	}
	sig, err := m.signer.Sign(signedPart(transcript, ch.Nonce), m.local.SigningKeyID)
	if err != nil {
		return err
	}
	if err := codec.Send(protocol.MsgResponse, api.Response{Signature: sig}); err != nil {
		return syncerr.Network("handshake", err)
	}
	return nil
}

// readMessage читает кадр ожидаемого типа. BYE превращается в ошибку аутентификации.
func readMessage(codec *protocol.Codec, want protocol.MsgType, msg any) error {
	f, err := codec.ReadFrame()
	if err != nil {
		return syncerr.Network("handshake", err)
	}
	if f.Type == protocol.MsgBye {
		var bye api.Bye
		_ = f.Decode(&bye)
		return syncerr.Authentication("handshake", fmt.Errorf("rejected by peer: %s", bye.Reason))
	}
	if f.Type != want {
		return syncerr.Authentication("handshake", fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedFrame, want, f.Type))
	}
	if err := f.Decode(msg); err != nil {
		return syncerr.Authentication("handshake", err)
	}
	return nil
}

// buildTranscript кодирует оба HELLO с префиксами длины
func buildTranscript(dialer, listener *api.Hello) []byte {
	var buf bytes.Buffer
	write := func(b []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(b)))
		buf.Write(n[:])
		buf.Write(b)
	}
	write([]byte(transcriptDomain))
	write([]byte(dialer.NodeID))
	write([]byte(listener.NodeID))
	write(dialer.Ephemeral)
	write(listener.Ephemeral)
	write(dialer.PublicKey)
	write(listener.PublicKey)
	return buf.Bytes()
}

func signedPart(transcript, nonce []byte) []byte {
	out := make([]byte, 0, len(transcript)+len(nonce))
	out = append(out, transcript...)
	return append(out, nonce...)
}

// failureReason метка для метрики неудачных handshake
func failureReason(err error) string {
	switch {
	case errors.Is(err, syncerr.ErrKeyMismatch):
		return "key_mismatch"
	case errors.Is(err, syncerr.ErrUntrustedNode):
		return "untrusted"
	case errors.Is(err, ErrAccountMismatch):
		return "account"
	case errors.Is(err, ErrIncompatible):
		return "incompatible"
	case errors.Is(err, syncerr.ErrInvalidSignature):
		return "signature"
	default:
		return syncerr.KindOf(err).String()
	}
}
