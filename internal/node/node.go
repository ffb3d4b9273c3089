// Package node собирает компоненты узла и управляет их жизненным циклом:
// хранилища, keyring, identity, реестр узлов, DataStore, соединения,
// движок синхронизации и управляющий API.
package node

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/peersync/internal/config"
	"github.com/iudanet/peersync/internal/conn"
	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/discovery"
	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/identity"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/registry"
	"github.com/iudanet/peersync/internal/server"
	"github.com/iudanet/peersync/internal/server/handlers"
	"github.com/iudanet/peersync/internal/server/token"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/store/memory"
	"github.com/iudanet/peersync/internal/transport"
	"github.com/iudanet/peersync/pkg/api"
)

// ErrNotInitialized identity узла еще не создана
var ErrNotInitialized = errors.New("node is not initialized, run 'peersync init' first")

// ErrAccountMismatch identity создана для другого аккаунта
var ErrAccountMismatch = errors.New("node identity belongs to another account")

// Option настраивает узел
type Option func(*options)

type options struct {
	transport transport.Transport
	clock     clock.Clock
	memory    *memory.Storage
	version   string
}

// WithTransport подменяет транспорт P2P (по умолчанию TCP)
func WithTransport(tr transport.Transport) Option {
	return func(o *options) { o.transport = tr }
}

// WithClock подменяет часы
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithMemoryStorage задает хранилище для node.storage=memory,
// чтобы Init и Open работали с одним состоянием
func WithMemoryStorage(st *memory.Storage) Option {
	return func(o *options) { o.memory = st }
}

// WithVersion задает версию, которая объявляется в HELLO и в API
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

func buildOptions(cfg *config.Config, opts []Option) options {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.transport == nil {
		o.transport = transport.NewTCP(cfg.Network.KeepAlive)
	}
	return o
}

// InitRequest параметры создания identity
type InitRequest struct {
	Account    string
	Passphrase string
	Salt       string // соль аккаунта в base64; пусто - новый аккаунт
}

// Init создает identity узла. Работает без сети и без запущенного демона.
func Init(ctx context.Context, cfg *config.Config, req InitRequest, logger *slog.Logger, opts ...Option) (*models.NodeIdentity, error) {
	o := buildOptions(cfg, opts)

	var salt []byte
	if req.Salt != "" {
		decoded, err := crypto.DecodeSalt(req.Salt)
		if err != nil {
			return nil, fmt.Errorf("invalid account salt: %w", err)
		}
		salt = decoded
	}

	st, err := openStorages(ctx, cfg, o.memory)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	keystore := identity.NewKeystore(st.identity, crypto.NewService(logger, o.clock), logger, o.clock)
	if _, err := keystore.Create(ctx, identity.CreateRequest{
		Account:    req.Account,
		Passphrase: req.Passphrase,
		Salt:       salt,
	}); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return keystore.Info(ctx)
}

// Node собранный узел
type Node struct {
	cfg       *config.Config
	logger    *slog.Logger
	clock     clock.Clock
	transport transport.Transport
	storages  *storages
	crypto    *crypto.Service
	identity  *identity.Identity
	registry  *registry.Registry
	data      *store.DataStore
	conns     *conn.Manager
	engine    *engine.Engine
	mdns      *discovery.MDNS
	tokens    *token.Service
	api       *server.Server
	group     *errgroup.Group
	cancel    context.CancelFunc
	version   string
	p2pAddr   string
	apiAddr   string
	mu        sync.Mutex
	started   bool
}

// Open открывает identity парольной фразой и собирает все компоненты.
// Сеть не запускается до Start.
func Open(ctx context.Context, cfg *config.Config, passphrase string, logger *slog.Logger, opts ...Option) (n *Node, err error) {
	o := buildOptions(cfg, opts)

	st, err := openStorages(ctx, cfg, o.memory)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, st.Close())
		}
	}()

	cr := crypto.NewService(logger, o.clock)
	id, err := identity.NewKeystore(st.identity, cr, logger, o.clock).Unlock(ctx, passphrase)
	if err != nil {
		if errors.Is(err, store.ErrIdentityNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to unlock identity: %w", err)
	}
	if cfg.Node.Account != "" && cfg.Node.Account != id.Account {
		return nil, fmt.Errorf("%w: configured %q, identity %q", ErrAccountMismatch, cfg.Node.Account, id.Account)
	}

	reg, err := registry.New(ctx, st.peers, logger, o.clock)
	if err != nil {
		return nil, err
	}

	syncCfg := cfg.EngineConfig()
	data := store.New(st.records, st.audit, cr, reg, store.Options{
		NodeID:            id.NodeID,
		SigningKeyID:      id.SigningKeyID,
		DataKeyID:         id.DataKeyID,
		PublicKey:         id.PublicKey,
		RetentionDays:     syncCfg.DataRetentionDays,
		EncryptionEnabled: syncCfg.EncryptionEnabled,
	}, logger, o.clock)

	var discoverers []discovery.Discoverer
	if len(cfg.Discovery.StaticPeers) > 0 {
		static, err := discovery.NewStatic(cfg.Discovery.StaticPeers)
		if err != nil {
			return nil, fmt.Errorf("failed to parse static peers: %w", err)
		}
		discoverers = append(discoverers, static)
	}
	var mdns *discovery.MDNS
	if cfg.Discovery.MDNS.Enabled {
		mdns = discovery.NewMDNS(cfg.MDNS(), id.NodeID, id.Account, logger)
		discoverers = append(discoverers, mdns)
	}

	connCfg := cfg.ConnConfig()
	connCfg.Account = id.Account
	connCfg.Version = o.version
	conns := conn.NewManager(connCfg, conn.LocalNode{
		NodeID:       id.NodeID,
		SigningKeyID: id.SigningKeyID,
		PublicKey:    id.PublicKey,
	}, cr, reg, o.transport, logger,
		conn.WithDiscoverers(discoverers...),
		conn.WithDigestSource(data.Digest),
		conn.WithClock(o.clock),
	)

	eng := engine.New(engine.Deps{
		Store:    data,
		Conns:    conns,
		Peers:    reg,
		Sessions: st.sessions,
		Meta:     st.meta,
		Logger:   logger,
		Clock:    o.clock,
	}, syncCfg)

	secret, err := token.NewSecret()
	if err != nil {
		return nil, err
	}

	n = &Node{
		cfg:       cfg,
		logger:    logger.With("node_id", id.NodeID),
		clock:     o.clock,
		transport: o.transport,
		storages:  st,
		crypto:    cr,
		identity:  id,
		registry:  reg,
		data:      data,
		conns:     conns,
		engine:    eng,
		mdns:      mdns,
		tokens:    token.NewService(secret, cfg.API.TokenTTL, o.clock),
		version:   o.version,
	}

	n.api, err = server.New(server.Config{
		Version:   o.version,
		NodeID:    id.NodeID,
		RateLimit: float64(cfg.API.RateLimit),
		RateBurst: cfg.API.RateBurst,
	}, server.Deps{
		Records:   data,
		Peers:     reg,
		Conns:     conns,
		Engine:    eng,
		Validator: n.tokens,
		Status:    handlers.StatusDeps{Clock: o.clock, Node: n.Info()},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create control api: %w", err)
	}

	n.logger.Info("node opened", "account", id.Account, "storage", cfg.Node.Storage)
	return n, nil
}

// Info публичные сведения об узле
func (n *Node) Info() api.NodeInfo {
	return api.NodeInfo{
		NodeID:       n.identity.NodeID,
		Account:      n.identity.Account,
		Version:      n.version,
		PublicKey:    hex.EncodeToString(n.identity.PublicKey),
		Fingerprint:  crypto.Fingerprint(n.identity.PublicKey),
		Salt:         base64.StdEncoding.EncodeToString(n.identity.Salt),
		Capabilities: models.DefaultCapabilities(),
	}
}

// NodeID id локального узла
func (n *Node) NodeID() string {
	return n.identity.NodeID
}

// Store DataStore узла
func (n *Node) Store() *store.DataStore {
	return n.data
}

// Engine движок синхронизации узла
func (n *Node) Engine() *engine.Engine {
	return n.engine
}

// Registry реестр узлов аккаунта
func (n *Node) Registry() *registry.Registry {
	return n.registry
}

// Connections ConnectionManager узла
func (n *Node) Connections() *conn.Manager {
	return n.conns
}

// P2PAddr адрес P2P слушателя после Start
func (n *Node) P2PAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.p2pAddr
}

// APIAddr адрес управляющего API после Start
func (n *Node) APIAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.apiAddr
}

// Start открывает слушатели, выпускает токен API и запускает фоновые циклы.
// Не блокирует; остановка через Shutdown или отмену ctx.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return errors.New("node already started")
	}

	ln, err := n.transport.Listen(ctx, n.cfg.Network.Listen)
	if err != nil {
		return fmt.Errorf("failed to start p2p listener: %w", err)
	}
	var lc net.ListenConfig
	apiLn, err := lc.Listen(ctx, "tcp", n.cfg.API.Listen)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start control api listener: %w", err)
	}

	tok, err := n.tokens.Generate(n.identity.NodeID)
	if err == nil {
		err = token.WriteFile(n.cfg.TokenPath(), tok)
	}
	if err != nil {
		_ = ln.Close()
		_ = apiLn.Close()
		return fmt.Errorf("failed to issue control api token: %w", err)
	}

	if n.mdns != nil {
		if err := n.mdns.Advertise(n.cfg.ListenPort(), models.DefaultCapabilities()); err != nil {
			n.logger.Warn("mdns advertising disabled", "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return n.conns.Serve(gctx, ln) })
	g.Go(func() error { return ignoreCanceled(n.conns.Heartbeat(gctx)) })
	g.Go(func() error { return ignoreCanceled(n.engine.Run(gctx)) })
	g.Go(func() error { return n.api.Serve(gctx, apiLn) })
	g.Go(func() error {
		if !n.engine.Config().P2PEnabled {
			return nil
		}
		if _, err := n.conns.Discover(gctx); err != nil {
			n.logger.Warn("initial discovery failed", "error", err)
		}
		return nil
	})

	n.group = g
	n.cancel = cancel
	n.started = true
	n.p2pAddr = ln.Addr().String()
	n.apiAddr = apiLn.Addr().String()

	n.logger.Info("node started", "p2p", n.p2pAddr, "api", n.apiAddr, "transport", n.transport.Kind())
	return nil
}

// Shutdown останавливает фоновые циклы, закрывает соединения и хранилища.
// Ошибки всех этапов объединяются.
func (n *Node) Shutdown() error {
	n.mu.Lock()
	cancel, group, started := n.cancel, n.group, n.started
	n.mu.Unlock()

	var err error
	if started {
		cancel()
		err = multierr.Append(err, group.Wait())
	}

	err = multierr.Append(err, n.engine.Close())
	err = multierr.Append(err, n.conns.Close())
	if n.mdns != nil {
		err = multierr.Append(err, n.mdns.Close())
	}
	if started {
		if rerr := os.Remove(n.cfg.TokenPath()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = multierr.Append(err, rerr)
		}
	}
	err = multierr.Append(err, n.storages.Close())

	n.logger.Info("node stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
