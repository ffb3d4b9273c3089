package node_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/config"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/node"
	"github.com/iudanet/peersync/internal/server/token"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/store/memory"
	"github.com/iudanet/peersync/internal/transport"
)

const (
	testAccount    = "alice_home"
	testPassphrase = "correct horse battery staple"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, listen string, peers ...string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Node.Storage = config.StorageMemory
	cfg.Node.DataDir = t.TempDir()
	cfg.Network.Listen = listen
	cfg.API.Listen = "127.0.0.1:0"
	cfg.Discovery.MDNS.Enabled = false
	cfg.Discovery.StaticPeers = peers
	cfg.Sync.AutoSync = false
	return cfg
}

func TestInitAndOpen(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "a.test:7946")
	mem := memory.New(nil)
	opts := []node.Option{node.WithMemoryStorage(mem), node.WithTransport(transport.NewMemory()), node.WithVersion("1.0.0")}

	_, err := node.Open(ctx, cfg, testPassphrase, testLogger(), opts...)
	require.ErrorIs(t, err, node.ErrNotInitialized)

	id, err := node.Init(ctx, cfg, node.InitRequest{Account: testAccount, Passphrase: testPassphrase}, testLogger(), opts...)
	require.NoError(t, err)
	assert.Equal(t, testAccount, id.Account)
	assert.NotEmpty(t, id.NodeID)

	_, err = node.Init(ctx, cfg, node.InitRequest{Account: testAccount, Passphrase: testPassphrase}, testLogger(), opts...)
	assert.Error(t, err)

	_, err = node.Open(ctx, cfg, "wrong passphrase value", testLogger(), opts...)
	assert.Error(t, err)

	n, err := node.Open(ctx, cfg, testPassphrase, testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Shutdown() })

	info := n.Info()
	assert.Equal(t, id.NodeID, info.NodeID)
	assert.Equal(t, testAccount, info.Account)
	assert.Equal(t, "1.0.0", info.Version)
	assert.NotEmpty(t, info.Fingerprint)
	assert.NotEmpty(t, info.Salt)
	assert.Equal(t, models.DefaultCapabilities(), info.Capabilities)

	other := *cfg
	other.Node.Account = "bob_home"
	_, err = node.Open(ctx, &other, testPassphrase, testLogger(), opts...)
	assert.ErrorIs(t, err, node.ErrAccountMismatch)
}

func TestInit_InvalidSalt(t *testing.T) {
	cfg := testConfig(t, "a.test:7946")
	_, err := node.Init(context.Background(), cfg, node.InitRequest{
		Account:    testAccount,
		Passphrase: testPassphrase,
		Salt:       "not base64!",
	}, testLogger(), node.WithMemoryStorage(memory.New(nil)))
	assert.Error(t, err)
}

func TestNode_SyncBetweenDevices(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	network := transport.NewMemory()

	memA := memory.New(nil)
	cfgA := testConfig(t, "a.test:7946")
	optsA := []node.Option{node.WithMemoryStorage(memA), node.WithTransport(network)}
	idA, err := node.Init(ctx, cfgA, node.InitRequest{Account: testAccount, Passphrase: testPassphrase}, testLogger(), optsA...)
	require.NoError(t, err)

	a, err := node.Open(ctx, cfgA, testPassphrase, testLogger(), optsA...)
	require.NoError(t, err)

	// второе устройство того же аккаунта получает соль первого
	memB := memory.New(nil)
	cfgB := testConfig(t, "b.test:7946", idA.NodeID+"@a.test:7946")
	optsB := []node.Option{node.WithMemoryStorage(memB), node.WithTransport(network)}
	_, err = node.Init(ctx, cfgB, node.InitRequest{
		Account:    testAccount,
		Passphrase: testPassphrase,
		Salt:       a.Info().Salt,
	}, testLogger(), optsB...)
	require.NoError(t, err)

	b, err := node.Open(ctx, cfgB, testPassphrase, testLogger(), optsB...)
	require.NoError(t, err)

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	assert.Error(t, a.Start(ctx))
	assert.Equal(t, "a.test:7946", a.P2PAddr())
	assert.NotEmpty(t, a.APIAddr())

	tok, err := token.ReadFile(cfgA.TokenPath())
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	_, err = a.Store().Put(ctx, store.PutRequest{ID: "notes/today", Type: "note", Payload: []byte("buy milk")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := b.Registry().Get(a.NodeID())
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	sessions, err := b.Engine().StartSync(ctx, a.NodeID())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionCompleted, sessions[0].State)

	rec, ok, err := b.Store().Get(ctx, "notes/today")
	require.NoError(t, err)
	require.True(t, ok)
	payload, err := b.Store().Open(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", string(payload))
	assert.Equal(t, a.NodeID(), rec.NodeID)

	require.NoError(t, b.Shutdown())
	require.NoError(t, a.Shutdown())

	_, err = os.Stat(cfgA.TokenPath())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
