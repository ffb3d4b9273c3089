package engine_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/conn"
	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/registry"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/store/memory"
	"github.com/iudanet/peersync/internal/transport"
)

const (
	testAccount = "alice_home"
	dataKeyID   = "data"
)

// testDataKey общий ключ данных аккаунта для всех узлов теста
var testDataKey = bytes.Repeat([]byte{7}, crypto.KeySize)

type testPeer struct {
	store   *store.DataStore
	storage *memory.Storage
	reg     *registry.Registry
	conns   *conn.Manager
	engine  *engine.Engine
	id      string
	addr    string
	pub     []byte
}

type peerOptions struct {
	wrap      func(engine.Store) engine.Store
	config    func(*engine.SyncConfig)
	noHistory bool // движок без SessionStorage
}

func testSyncConfig() engine.SyncConfig {
	cfg := engine.DefaultSyncConfig()
	cfg.AckTimeout = 2 * time.Second
	cfg.RetryBase = 5 * time.Millisecond
	cfg.SessionTimeout = 30 * time.Second
	return cfg
}

func newTestPeer(t *testing.T, network *transport.Memory, opts peerOptions) *testPeer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.New()

	keys := crypto.NewService(logger, clk)
	sig, err := keys.GenerateKeyPair(models.AlgorithmEd25519)
	require.NoError(t, err)
	_, err = keys.ImportKey(dataKeyID, models.AlgorithmXChaCha20Poly1305, testDataKey)
	require.NoError(t, err)

	storage := memory.New(nil)
	reg, err := registry.New(ctx, storage, logger, clk)
	require.NoError(t, err)

	id := uuid.NewString()
	ds := store.New(storage, storage, keys, reg, store.Options{
		NodeID:            id,
		SigningKeyID:      sig.ID,
		DataKeyID:         dataKeyID,
		PublicKey:         sig.PublicKey,
		EncryptionEnabled: true,
		RetentionDays:     30,
	}, logger, clk)

	mgr := conn.NewManager(conn.Config{
		Account:          testAccount,
		Version:          "test",
		HandshakeTimeout: 2 * time.Second,
		RetryBase:        time.Millisecond,
		RetryMax:         5 * time.Millisecond,
		MaxRetries:       2,
	}, conn.LocalNode{NodeID: id, SigningKeyID: sig.ID, PublicKey: sig.PublicKey}, keys, reg, network, logger,
		conn.WithDigestSource(ds.Digest))

	var st engine.Store = ds
	if opts.wrap != nil {
		st = opts.wrap(ds)
	}
	cfg := testSyncConfig()
	if opts.config != nil {
		opts.config(&cfg)
	}
	deps := engine.Deps{
		Store:    st,
		Conns:    mgr,
		Peers:    reg,
		Sessions: storage,
		Meta:     storage,
		Logger:   logger,
		Clock:    clk,
	}
	if opts.noHistory {
		deps.Sessions = nil
	}
	eng := engine.New(deps, cfg)

	addr := "node-" + id[:8]
	ln, err := network.Listen(ctx, addr)
	require.NoError(t, err)
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = mgr.Serve(ctx, ln)
	}()

	t.Cleanup(func() {
		cancel()
		<-served
		_ = eng.Close()
		_ = mgr.Close()
	})

	return &testPeer{
		store:   ds,
		storage: storage,
		reg:     reg,
		conns:   mgr,
		engine:  eng,
		id:      id,
		addr:    addr,
		pub:     sig.PublicKey,
	}
}

// know регистрирует адрес другого узла без закрепления ключа
func (p *testPeer) know(t *testing.T, other *testPeer) {
	t.Helper()
	require.NoError(t, p.reg.Register(context.Background(), &models.SyncNode{
		ID:           other.id,
		Address:      other.addr,
		Capabilities: models.DefaultCapabilities(),
		Online:       true,
	}))
}

func (p *testPeer) put(t *testing.T, id, payload string) *models.SyncRecord {
	t.Helper()
	r, err := p.store.Put(context.Background(), store.PutRequest{ID: id, Type: "note", Payload: []byte(payload)})
	require.NoError(t, err)
	return r
}

func (p *testPeer) payload(t *testing.T, id string) string {
	t.Helper()
	ctx := context.Background()
	r, ok, err := p.store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok, "record %s missing", id)
	plaintext, err := p.store.Open(ctx, r)
	require.NoError(t, err)
	return string(plaintext)
}

func (p *testPeer) digest(t *testing.T) string {
	t.Helper()
	d, err := p.store.Digest(context.Background())
	require.NoError(t, err)
	return d
}

func syncOnce(t *testing.T, from, to *testPeer) *models.SyncSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sessions, err := from.engine.StartSync(ctx, to.id)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	return sessions[0]
}
