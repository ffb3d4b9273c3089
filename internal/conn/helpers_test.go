package conn

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/internal/registry"
	"github.com/iudanet/peersync/internal/store/memory"
	"github.com/iudanet/peersync/internal/transport"
)

const testAccount = "alice_home"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type receivedFrame struct {
	frame  *protocol.Frame
	nodeID string
}

// recordingHandler складывает кадры синхронизации в канал
type recordingHandler struct {
	frames chan receivedFrame
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{frames: make(chan receivedFrame, 16)}
}

func (h *recordingHandler) HandleFrame(_ context.Context, peer *Peer, frame *protocol.Frame) {
	h.frames <- receivedFrame{nodeID: peer.NodeID(), frame: frame}
}

func (h *recordingHandler) next(t *testing.T) receivedFrame {
	t.Helper()
	select {
	case f := <-h.frames:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return receivedFrame{}
	}
}

type testNode struct {
	mgr     *Manager
	reg     *registry.Registry
	handler *recordingHandler
	id      string
	pub     []byte
}

func newTestNode(t *testing.T, network *transport.Memory, clk clock.Clock, mutate func(*Config)) *testNode {
	t.Helper()

	logger := quietLogger()
	if clk == nil {
		clk = clock.New()
	}

	keys := crypto.NewService(logger, clk)
	key, err := keys.GenerateKeyPair(models.AlgorithmEd25519)
	require.NoError(t, err)

	reg, err := registry.New(context.Background(), memory.New(nil), logger, clk)
	require.NoError(t, err)

	cfg := Config{
		Account:          testAccount,
		Version:          "test",
		HandshakeTimeout: 2 * time.Second,
		ConnectTimeout:   time.Second,
		RetryBase:        time.Millisecond,
		RetryMax:         5 * time.Millisecond,
		MaxRetries:       2,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	id := uuid.NewString()
	mgr := NewManager(cfg, LocalNode{NodeID: id, SigningKeyID: key.ID, PublicKey: key.PublicKey}, keys, reg, network, logger, WithClock(clk))
	h := newRecordingHandler()
	mgr.SetHandler(h)
	t.Cleanup(func() { _ = mgr.Close() })

	return &testNode{mgr: mgr, reg: reg, handler: h, id: id, pub: key.PublicKey}
}

// serve запускает прием соединений по адресу памяти
func (n *testNode) serve(t *testing.T, network *transport.Memory, addr string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := network.Listen(ctx, addr)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.mgr.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// know регистрирует узел other по адресу addr, при необходимости с закрепленным ключом
func (n *testNode) know(t *testing.T, other *testNode, addr string, pinKey []byte) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, n.reg.Register(ctx, &models.SyncNode{
		ID:           other.id,
		Address:      addr,
		Capabilities: models.DefaultCapabilities(),
	}))
	if pinKey != nil {
		require.NoError(t, n.reg.Pin(ctx, other.id, pinKey))
	}
}

// pipePeer создает соединение без handshake. Удаленная сторона читает и ничего не отвечает.
func pipePeer(t *testing.T, m *Manager, remoteID, dialerID string) *Peer {
	t.Helper()

	require.NoError(t, m.sem.Acquire(context.Background(), 1))
	local, remote := net.Pipe()
	go func() { _, _ = io.Copy(io.Discard, remote) }()
	t.Cleanup(func() { _ = remote.Close() })

	return &Peer{
		conn:     local,
		codec:    protocol.NewCodec(local),
		manager:  m,
		done:     make(chan struct{}),
		nodeID:   remoteID,
		dialerID: dialerID,
		info: models.Connection{
			ID:           uuid.NewString(),
			NodeID:       remoteID,
			Capabilities: models.DefaultCapabilities(),
		},
	}
}

// adopt подключает pipePeer так же, как establish после handshake
func adopt(m *Manager, p *Peer) {
	if m.attach(p) != p {
		return
	}
	m.registry.MarkOnline(p.nodeID)
	go m.readLoop(p)
}
