// Package conn управляет соединениями с узлами аккаунта: обнаружение,
// dial с повторами, взаимная аутентификация, heartbeat и маршрутизация кадров.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/iudanet/peersync/internal/discovery"
	"github.com/iudanet/peersync/internal/metrics"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/internal/transport"
	"github.com/iudanet/peersync/pkg/api"
)

// LocalNode идентичность текущего узла
type LocalNode struct {
	NodeID       string
	SigningKeyID string
	PublicKey    []byte
}

// Signer подписывает handshake ключом узла
type Signer interface {
	Sign(data []byte, keyID string) ([]byte, error)
}

// NodeRegistry часть реестра узлов, нужная менеджеру
type NodeRegistry interface {
	Get(nodeID string) (*models.SyncNode, error)
	Register(ctx context.Context, node *models.SyncNode) error
	Pin(ctx context.Context, nodeID string, publicKey []byte) error
	FlagRepin(ctx context.Context, nodeID string) error
	MarkOnline(nodeID string)
	MarkOffline(nodeID string)
	Touch(nodeID, dataDigest string)
}

// FrameHandler получает кадры синхронизации. Не должен надолго блокировать:
// он вызывается из горутины чтения соединения.
type FrameHandler interface {
	HandleFrame(ctx context.Context, peer *Peer, frame *protocol.Frame)
}

// DigestSource возвращает digest локального manifest для HELLO
type DigestSource func(ctx context.Context) (string, error)

// Manager ConnectionManager узла
type Manager struct {
	transport   transport.Transport
	registry    NodeRegistry
	signer      Signer
	handler     FrameHandler
	logger      *slog.Logger
	clock       clock.Clock
	digest      DigestSource
	sem         *semaphore.Weighted
	ctx         context.Context
	cancel      context.CancelFunc
	peers       map[string]*Peer
	states      map[string]models.ConnState
	handshaking map[net.Conn]struct{} // соединения до завершения handshake
	local       LocalNode
	discoverers []discovery.Discoverer
	cfg         Config
	dials       singleflight.Group
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// Option настраивает Manager
type Option func(*Manager)

// WithDiscoverers задает источники обнаружения узлов
func WithDiscoverers(d ...discovery.Discoverer) Option {
	return func(m *Manager) { m.discoverers = append(m.discoverers, d...) }
}

// WithDigestSource задает источник digest для HELLO
func WithDigestSource(src DigestSource) Option {
	return func(m *Manager) { m.digest = src }
}

// WithClock подменяет часы (для тестов)
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clock = clk }
}

// NewManager создает ConnectionManager
func NewManager(cfg Config, local LocalNode, signer Signer, registry NodeRegistry, tr transport.Transport, logger *slog.Logger, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:         cfg,
		local:       local,
		signer:      signer,
		registry:    registry,
		transport:   tr,
		logger:      logger,
		clock:       clock.New(),
		sem:         semaphore.NewWeighted(cfg.MaxConnections),
		ctx:         ctx,
		cancel:      cancel,
		peers:       make(map[string]*Peer),
		states:      make(map[string]models.ConnState),
		handshaking: make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetHandler задает обработчик кадров синхронизации
func (m *Manager) SetHandler(h FrameHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Discover опрашивает все источники и регистрирует найденные узлы.
// Ошибка одного источника не мешает остальным.
func (m *Manager) Discover(ctx context.Context) ([]*models.SyncNode, error) {
	var (
		found []*models.SyncNode
		errs  error
	)
	for _, d := range m.discoverers {
		nodes, err := d.Discover(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s discovery failed: %w", d.Name(), err))
			continue
		}
		for _, n := range nodes {
			if n.ID == m.local.NodeID {
				continue
			}
			if err := m.registry.Register(ctx, n); err != nil {
				m.logger.Warn("failed to register discovered node", "node_id", n.ID, "source", d.Name(), "error", err)
				continue
			}
			found = append(found, n)
		}
	}

	if errs != nil {
		if len(found) == 0 {
			return nil, errs
		}
		m.logger.Warn("some discovery sources failed", "error", errs)
	}
	m.logger.Debug("discovery finished", "found", len(found))
	return found, nil
}

// Connect возвращает живое соединение с узлом, при необходимости устанавливая его
// с экспоненциальными повторами. Параллельные вызовы для одного узла объединяются.
func (m *Manager) Connect(ctx context.Context, nodeID string) (*Peer, error) {
	if p := m.Peer(nodeID); p != nil {
		return p, nil
	}

	v, err, _ := m.dials.Do(nodeID, func() (any, error) {
		return m.connectWithRetry(ctx, nodeID)
	})
	if err != nil {
		return nil, err
	}
	p := v.(*Peer)
	// соединение могло проиграть встречному при разрешении дубликатов
	if p.Closed() {
		if live := m.Peer(nodeID); live != nil {
			return live, nil
		}
		return nil, syncerr.Network("connect", net.ErrClosed).WithNode(nodeID)
	}
	return p, nil
}

func (m *Manager) connectWithRetry(ctx context.Context, nodeID string) (*Peer, error) {
	node, err := m.registry.Get(nodeID)
	if err != nil {
		return nil, err
	}
	if node.NeedsRepin {
		return nil, syncerr.Authentication("connect", fmt.Errorf("%w: node needs manual repin", syncerr.ErrKeyMismatch)).WithNode(nodeID)
	}
	if node.Address == "" {
		return nil, syncerr.Network("connect", fmt.Errorf("node %s has no known address", nodeID))
	}

	var peer *Peer
	attempt := 0
	err = retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
		attempt++
		p, err := m.dial(ctx, node)
		if err != nil {
			if syncerr.IsRetryable(err) {
				m.logger.Debug("connect attempt failed", "node_id", nodeID, "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		peer = p
		return nil
	})
	if err != nil {
		m.setState(nodeID, models.ConnFailed)
		m.logger.Warn("failed to connect to node", "node_id", nodeID, "attempts", attempt, "error", err)
		return nil, err
	}
	return peer, nil
}

func (m *Manager) backoff() retry.Backoff {
	b := retry.NewExponential(m.cfg.RetryBase)
	b = retry.WithCappedDuration(m.cfg.RetryMax, b)
	return retry.WithMaxRetries(m.cfg.MaxRetries, b)
}

func (m *Manager) dial(ctx context.Context, node *models.SyncNode) (*Peer, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire connection slot: %w", err)
	}

	m.setState(node.ID, models.ConnConnecting)
	dctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	c, err := m.transport.Dial(dctx, node.Addr())
	cancel()
	if err != nil {
		m.sem.Release(1)
		return nil, syncerr.Network("dial", err).WithNode(node.ID)
	}
	if !m.track(c) {
		_ = c.Close()
		m.sem.Release(1)
		return nil, syncerr.Network("dial", net.ErrClosed).WithNode(node.ID)
	}

	p, err := m.establish(ctx, c, true, node.ID)
	m.untrack(c)
	if err != nil {
		_ = c.Close()
		m.sem.Release(1)
		return nil, err
	}
	return p, nil
}

// Serve принимает входящие соединения до отмены ctx или закрытия listener
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	m.logger.Info("accepting connections", "addr", ln.Addr().String(), "transport", m.transport.Kind())
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		if !m.sem.TryAcquire(1) {
			m.logger.Warn("connection limit reached, rejecting", "remote", c.RemoteAddr().String())
			_ = c.Close()
			continue
		}

		if !m.track(c) {
			_ = c.Close()
			m.sem.Release(1)
			return nil
		}
		go func() {
			defer m.untrack(c)
			if _, err := m.establish(ctx, c, false, ""); err != nil {
				m.logger.Warn("inbound handshake failed", "remote", c.RemoteAddr().String(), "error", err)
				_ = c.Close()
				m.sem.Release(1)
			}
		}()
	}
}

// establish проводит handshake и регистрирует соединение
func (m *Manager) establish(ctx context.Context, c net.Conn, dialer bool, expectedID string) (*Peer, error) {
	if expectedID != "" {
		m.setState(expectedID, models.ConnHandshaking)
	}

	codec := protocol.NewCodec(c)
	_ = c.SetDeadline(time.Now().Add(m.cfg.HandshakeTimeout))
	res, err := m.handshake(ctx, codec, dialer, expectedID)
	if err != nil {
		metrics.HandshakeFailures.WithLabelValues(failureReason(err)).Inc()
		if expectedID != "" {
			m.setState(expectedID, models.ConnFailed)
		}
		return nil, err
	}
	_ = c.SetDeadline(time.Time{})
	codec.Secure(res.channel)

	remoteID := res.remote.NodeID
	if !dialer {
		m.registerInbound(ctx, c, &res.remote, res.caps)
	}

	dialerID := remoteID
	if dialer {
		dialerID = m.local.NodeID
	}
	p := &Peer{
		conn:     c,
		codec:    codec,
		manager:  m,
		done:     make(chan struct{}),
		nodeID:   remoteID,
		dialerID: dialerID,
		info: models.Connection{
			ID:            uuid.NewString(),
			NodeID:        remoteID,
			TransportKind: m.transport.Kind(),
			Capabilities:  res.caps,
			Initiator:     dialer,
		},
	}
	if m.cfg.BandwidthLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(m.cfg.BandwidthLimit), max(m.cfg.BandwidthLimit, protocol.MaxFrameSize+64))
	}

	winner := m.attach(p)
	if winner == nil {
		return nil, syncerr.Network("attach", net.ErrClosed).WithNode(remoteID)
	}
	if winner != p {
		m.logger.Debug("duplicate connection closed", "node_id", remoteID, "initiator", dialer)
		p.closeWith("duplicate connection")
		return winner, nil
	}

	m.registry.MarkOnline(remoteID)
	m.registry.Touch(remoteID, res.remote.DataDigest)
	m.logger.Info("connected to node", "node_id", remoteID, "initiator", dialer, "capabilities", res.caps)

	go m.readLoop(p)
	return p, nil
}

// registerInbound запоминает адрес входящего узла, если он его объявил
func (m *Manager) registerInbound(ctx context.Context, c net.Conn, hello *api.Hello, caps []string) {
	if hello.ListenPort <= 0 {
		return
	}
	host, _, err := net.SplitHostPort(c.RemoteAddr().String())
	if err != nil {
		return
	}
	node := &models.SyncNode{
		ID:           hello.NodeID,
		Address:      host,
		Port:         hello.ListenPort,
		Capabilities: caps,
		Online:       true,
	}
	if err := m.registry.Register(ctx, node); err != nil {
		m.logger.Warn("failed to register inbound node", "node_id", hello.NodeID, "error", err)
	}
}

// track учитывает соединение на время handshake, чтобы Close мог его прервать.
// После Close возвращает false.
func (m *Manager) track(c net.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.handshaking[c] = struct{}{}
	m.wg.Add(1)
	return true
}

func (m *Manager) untrack(c net.Conn) {
	m.mu.Lock()
	delete(m.handshaking, c)
	m.mu.Unlock()
	m.wg.Done()
}

// attach добавляет соединение. При дубликате остается соединение,
// инициированное узлом с меньшим id. Возвращает выжившее соединение
// или nil, если менеджер уже закрыт.
func (m *Manager) attach(p *Peer) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	if existing, ok := m.peers[p.nodeID]; ok && !existing.Closed() {
		preferred := min(m.local.NodeID, p.nodeID)
		if existing.dialerID == preferred || p.dialerID != preferred {
			return existing
		}
		go existing.closeWith("duplicate connection")
	}

	m.peers[p.nodeID] = p
	m.states[p.nodeID] = models.ConnConnected
	m.updateGaugeLocked()
	m.wg.Add(1) // readLoop
	return p
}

// detach убирает закрытое соединение, если оно еще активно
func (m *Manager) detach(p *Peer) {
	m.mu.Lock()
	current, ok := m.peers[p.nodeID]
	active := ok && current == p
	if active {
		delete(m.peers, p.nodeID)
		m.states[p.nodeID] = models.ConnDisconnected
		m.updateGaugeLocked()
	}
	m.mu.Unlock()

	if active {
		m.registry.MarkOffline(p.nodeID)
		m.logger.Info("disconnected from node", "node_id", p.nodeID)
	}
}

func (m *Manager) readLoop(p *Peer) {
	defer m.wg.Done()
	defer m.detach(p)

	for {
		f, err := p.codec.ReadFrame()
		if err != nil {
			if !p.Closed() {
				m.logger.Debug("connection read failed", "node_id", p.nodeID, "error", err)
			}
			p.close()
			return
		}
		metrics.BytesTotal.WithLabelValues("received").Add(float64(f.Size()))

		switch f.Type {
		case protocol.MsgPing:
			var ping api.Ping
			if err := f.Decode(&ping); err != nil {
				m.logger.Warn("invalid ping", "node_id", p.nodeID, "error", err)
				continue
			}
			// ответ из отдельной горутины: запись может ждать чтения на той стороне
			go func() {
				if err := p.Send(m.ctx, protocol.MsgPong, api.Pong(ping)); err != nil {
					m.logger.Debug("failed to send pong", "node_id", p.nodeID, "error", err)
				}
			}()
		case protocol.MsgPong:
			var pong api.Pong
			if err := f.Decode(&pong); err != nil {
				m.logger.Warn("invalid pong", "node_id", p.nodeID, "error", err)
				continue
			}
			p.onPong(pong, m.clock.Now())
			m.registry.Touch(p.nodeID, "")
		case protocol.MsgBye:
			var bye api.Bye
			_ = f.Decode(&bye)
			m.logger.Info("node closed connection", "node_id", p.nodeID, "reason", bye.Reason)
			p.close()
			return
		case protocol.MsgHello, protocol.MsgChallenge, protocol.MsgResponse:
			m.logger.Warn("handshake frame after handshake, closing", "node_id", p.nodeID, "type", f.Type.String())
			p.closeWith("protocol violation")
			return
		default:
			m.mu.RLock()
			h := m.handler
			m.mu.RUnlock()
			if h == nil {
				m.logger.Debug("no frame handler, dropping frame", "type", f.Type.String())
				continue
			}
			h.HandleFrame(m.ctx, p, f)
		}
	}
}

// Peer возвращает живое соединение с узлом или nil
func (m *Manager) Peer(nodeID string) *Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.peers[nodeID]
	if !ok || p.Closed() {
		return nil
	}
	return p
}

// State возвращает состояние соединения с узлом
func (m *Manager) State(nodeID string) models.ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.states[nodeID]; ok {
		return s
	}
	return models.ConnDisconnected
}

// MarkSyncing переводит соединение в syncing и обратно в connected
func (m *Manager) MarkSyncing(nodeID string, syncing bool) {
	next := models.ConnConnected
	if syncing {
		next = models.ConnSyncing
	}
	m.setState(nodeID, next)
}

func (m *Manager) setState(nodeID string, next models.ConnState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.states[nodeID]
	if !ok {
		cur = models.ConnDisconnected
	}
	if cur == next {
		return
	}
	if !cur.CanTransition(next) {
		m.logger.Debug("ignoring invalid connection state transition", "node_id", nodeID, "from", cur, "to", next)
		return
	}
	m.states[nodeID] = next
	m.updateGaugeLocked()
}

func (m *Manager) updateGaugeLocked() {
	counts := make(map[models.ConnState]int)
	for _, s := range m.states {
		counts[s]++
	}
	for _, s := range []models.ConnState{
		models.ConnDisconnected, models.ConnConnecting, models.ConnHandshaking,
		models.ConnConnected, models.ConnSyncing, models.ConnFailed,
	} {
		metrics.Connections.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// Connections возвращает снимки живых соединений, отсортированные по узлу
func (m *Manager) Connections() []models.Connection {
	m.mu.RLock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.RUnlock()

	result := make([]models.Connection, 0, len(peers))
	for _, p := range peers {
		result = append(result, p.Snapshot())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NodeID < result[j].NodeID })
	return result
}

// Disconnect закрывает соединение с узлом
func (m *Manager) Disconnect(nodeID, reason string) {
	if p := m.Peer(nodeID); p != nil {
		p.closeWith(reason)
	}
}

// Close закрывает все соединения, включая незавершенные handshake,
// и ждет завершения горутин чтения. Новые соединения после Close не принимаются.
func (m *Manager) Close() error {
	m.cancel()

	m.mu.Lock()
	m.closed = true
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	pending := make([]net.Conn, 0, len(m.handshaking))
	for c := range m.handshaking {
		pending = append(pending, c)
	}
	m.mu.Unlock()

	for _, c := range pending {
		_ = c.Close()
	}
	for _, p := range peers {
		p.closeWith("shutdown")
	}
	m.wg.Wait()
	return nil
}
