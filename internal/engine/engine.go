// Package engine реализует SyncEngine: сессии синхронизации с узлами аккаунта
// и ответную сторону протокола.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/iudanet/peersync/internal/conn"
	"github.com/iudanet/peersync/internal/metrics"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/pkg/api"
)

var (
	// ErrP2PDisabled синхронизация выключена настройками
	ErrP2PDisabled = errors.New("p2p sync is disabled")

	// ErrSessionRunning сессия еще не завершена
	ErrSessionRunning = errors.New("session is still running")

	// ErrNoPeers нет узлов для синхронизации
	ErrNoPeers = errors.New("no online peers")

	// ErrAckTimeout подтверждение не пришло вовремя
	ErrAckTimeout = errors.New("ack timeout")
)

// recentLimit сколько несохраненных завершенных сессий держать в памяти
const recentLimit = 64

// Store операции DataStore, которые использует движок
type Store interface {
	Manifest(ctx context.Context) (models.Manifest, error)
	Digest(ctx context.Context) (string, error)
	Diff(ctx context.Context, remote models.Manifest) (*store.DiffResult, error)
	Get(ctx context.Context, id string) (*models.SyncRecord, bool, error)
	WireRecord(ctx context.Context, record *models.SyncRecord) (*models.SyncRecord, error)
	ApplyRemote(ctx context.Context, senderID string, records []*models.SyncRecord) (*store.ApplyResult, error)
	Track(n int) func()
	WaitBelow(ctx context.Context, threshold int64) error
	Pending() int64
	Prune(ctx context.Context, now time.Time) (*store.PruneResult, error)
	SetEncryptionEnabled(enabled bool)
	SetRetentionDays(days int)
}

// Connections операции ConnectionManager
type Connections interface {
	Connect(ctx context.Context, nodeID string) (*conn.Peer, error)
	Discover(ctx context.Context) ([]*models.SyncNode, error)
	MarkSyncing(nodeID string, syncing bool)
	SetHandler(h conn.FrameHandler)
}

// PeerLister список узлов, доступных для синхронизации
type PeerLister interface {
	Online() []*models.SyncNode
}

// Engine SyncEngine узла
type Engine struct {
	store      Store
	conns      Connections
	peers      PeerLister
	sessions   store.SessionStorage
	meta       store.MetadataStorage
	logger     *slog.Logger
	clock      clock.Clock
	sem        *semaphore.Weighted
	ctx        context.Context
	cancel     context.CancelFunc
	active     map[string]*session   // по id сессии
	byNode     map[string]*session   // активная сессия инициатора для узла
	recent     []*models.SyncSession // завершенные, но не сохраненные сессии
	responders map[string]*responder
	subs       map[int]chan Event
	cfg        atomic.Pointer[SyncConfig]
	nextSub    int
	lastPrune  time.Time
	wg         sync.WaitGroup
	mu         sync.Mutex
	subsMu     sync.Mutex
}

// Deps зависимости движка. Sessions и Meta могут быть nil.
type Deps struct {
	Store    Store
	Conns    Connections
	Peers    PeerLister
	Sessions store.SessionStorage
	Meta     store.MetadataStorage
	Logger   *slog.Logger
	Clock    clock.Clock
}

// New создает движок и регистрирует его обработчиком кадров
func New(deps Deps, cfg SyncConfig) *Engine {
	cfg = cfg.withDefaults()
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:      deps.Store,
		conns:      deps.Conns,
		peers:      deps.Peers,
		sessions:   deps.Sessions,
		meta:       deps.Meta,
		logger:     deps.Logger,
		clock:      clk,
		sem:        semaphore.NewWeighted(cfg.MaxSessions),
		ctx:        ctx,
		cancel:     cancel,
		active:     make(map[string]*session),
		byNode:     make(map[string]*session),
		responders: make(map[string]*responder),
		subs:       make(map[int]chan Event),
	}
	e.cfg.Store(&cfg)
	e.store.SetEncryptionEnabled(cfg.EncryptionEnabled)
	e.store.SetRetentionDays(cfg.DataRetentionDays)
	e.conns.SetHandler(e)
	return e
}

// Config возвращает текущий снимок настроек
func (e *Engine) Config() SyncConfig {
	return *e.cfg.Load()
}

// UpdateConfig заменяет снимок настроек. Запущенные сессии продолжают со старым снимком.
// Исключение: EncryptionEnabled и DataRetentionDays это политика DataStore,
// они действуют сразу для всех последующих записей, в том числе внутри идущих сессий.
// MaxSessions и MaxConnections применяются после перезапуска узла.
func (e *Engine) UpdateConfig(cfg SyncConfig) {
	cfg = cfg.withDefaults()
	e.cfg.Store(&cfg)
	e.store.SetEncryptionEnabled(cfg.EncryptionEnabled)
	e.store.SetRetentionDays(cfg.DataRetentionDays)
	e.logger.Info("sync config updated",
		"auto_sync", cfg.AutoSync,
		"interval_ms", cfg.SyncIntervalMs,
		"encryption", cfg.EncryptionEnabled,
		"p2p", cfg.P2PEnabled,
	)
}

// StartSync синхронизирует с узлом (пустой id - со всеми online узлами)
// и ждет завершения сессий.
func (e *Engine) StartSync(ctx context.Context, nodeID string) ([]*models.SyncSession, error) {
	started, err := e.Begin(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	result := make([]*models.SyncSession, 0, len(started))
	for _, s := range started {
		final, err := e.Wait(ctx, s.ID)
		if err != nil {
			return result, err
		}
		result = append(result, final)
	}
	return result, nil
}

// Begin запускает сессии и возвращает их начальные снимки, не дожидаясь завершения.
// Если с узлом уже идет сессия, возвращается она.
func (e *Engine) Begin(_ context.Context, nodeID string) ([]*models.SyncSession, error) {
	cfg := e.Config()
	if !cfg.P2PEnabled {
		return nil, ErrP2PDisabled
	}

	var targets []string
	if nodeID != "" {
		targets = []string{nodeID}
	} else {
		for _, n := range e.peers.Online() {
			targets = append(targets, n.ID)
		}
		if len(targets) == 0 {
			return nil, ErrNoPeers
		}
	}

	result := make([]*models.SyncSession, 0, len(targets))
	for _, id := range targets {
		result = append(result, e.launch(id, "", cfg).snapshot())
	}
	return result, nil
}

func (e *Engine) launch(nodeID, resumedFrom string, cfg SyncConfig) *session {
	e.mu.Lock()
	if s, ok := e.byNode[nodeID]; ok {
		e.mu.Unlock()
		return s
	}

	s := newSession(e.ctx, models.SyncSession{
		ID:          uuid.NewString(),
		NodeID:      nodeID,
		State:       models.SessionConnecting,
		StartTime:   e.clock.Now().UTC(),
		ResumedFrom: resumedFrom,
		Errors:      []models.SessionError{},
	}, cfg)
	e.active[s.id()] = s
	e.byNode[nodeID] = s
	e.mu.Unlock()

	e.logger.Info("sync session started", "session_id", s.id(), "node_id", nodeID, "resumed_from", resumedFrom)
	e.publish(EventSessionStarted, s.snapshot())

	e.wg.Add(1)
	go e.run(s)
	return s
}

// Wait ждет завершения сессии и возвращает итоговый снимок
func (e *Engine) Wait(ctx context.Context, sessionID string) (*models.SyncSession, error) {
	e.mu.Lock()
	s, ok := e.active[sessionID]
	e.mu.Unlock()
	if !ok {
		return e.Session(ctx, sessionID)
	}

	select {
	case <-s.done:
		return s.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel прекращает планирование новых передач в сессии.
// Уже начатые применения записей завершаются, примененные записи остаются.
func (e *Engine) Cancel(sessionID string) error {
	e.mu.Lock()
	s, ok := e.active[sessionID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("failed to cancel session %s: %w", sessionID, store.ErrSessionNotFound)
	}
	if s.state().IsTerminal() {
		return nil
	}

	s.cancelled.Store(true)
	s.cancel()
	e.logger.Info("sync session cancel requested", "session_id", sessionID)
	return nil
}

// Resume запускает новую сессию с тем же узлом. Манифесты гарантируют,
// что уже синхронизированные записи не передаются повторно.
func (e *Engine) Resume(ctx context.Context, sessionID string) (*models.SyncSession, error) {
	prev, err := e.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !prev.State.IsTerminal() {
		return nil, fmt.Errorf("failed to resume session %s: %w", sessionID, ErrSessionRunning)
	}

	cfg := e.Config()
	if !cfg.P2PEnabled {
		return nil, ErrP2PDisabled
	}
	return e.launch(prev.NodeID, prev.ID, cfg).snapshot(), nil
}

// Session возвращает сессию по id: активную из памяти, завершенную из хранилища
func (e *Engine) Session(ctx context.Context, sessionID string) (*models.SyncSession, error) {
	e.mu.Lock()
	s, ok := e.active[sessionID]
	var kept *models.SyncSession
	for _, r := range e.recent {
		if r.ID == sessionID {
			kept = r
		}
	}
	e.mu.Unlock()
	if ok {
		return s.snapshot(), nil
	}
	if kept != nil {
		return kept, nil
	}

	if e.sessions == nil {
		return nil, store.ErrSessionNotFound
	}
	found, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return found, nil
}

// Sessions возвращает последние сессии, новые первыми
func (e *Engine) Sessions(ctx context.Context, limit int) ([]*models.SyncSession, error) {
	seen := make(map[string]struct{})
	var result []*models.SyncSession

	e.mu.Lock()
	for _, s := range e.active {
		snap := s.snapshot()
		seen[snap.ID] = struct{}{}
		result = append(result, snap)
	}
	for _, r := range e.recent {
		if _, ok := seen[r.ID]; !ok {
			seen[r.ID] = struct{}{}
			result = append(result, r)
		}
	}
	e.mu.Unlock()

	if e.sessions != nil {
		stored, err := e.sessions.ListSessions(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, s := range stored {
			if _, ok := seen[s.ID]; !ok {
				result = append(result, s)
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Run цикл автосинхронизации: обнаружение узлов, синхронизация со всеми online узлами
// и очистка по сроку хранения. Период и флаг AutoSync читаются из текущего снимка.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.Config().SyncInterval()
	ticker := e.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cfg := e.Config()
		if next := cfg.SyncInterval(); next != interval {
			interval = next
			ticker.Reset(interval)
		}

		e.maybePrune(ctx)
		if !cfg.AutoSync || !cfg.P2PEnabled {
			continue
		}

		if _, err := e.conns.Discover(ctx); err != nil {
			e.logger.Warn("discovery failed", "error", err)
		}
		if _, err := e.Begin(ctx, ""); err != nil && !errors.Is(err, ErrNoPeers) {
			e.logger.Warn("auto sync failed", "error", err)
		}
	}
}

// pruneInterval как часто очищать журнал по сроку хранения
const pruneInterval = time.Hour

func (e *Engine) maybePrune(ctx context.Context) {
	now := e.clock.Now()
	if !e.lastPrune.IsZero() && now.Sub(e.lastPrune) < pruneInterval {
		return
	}
	e.lastPrune = now

	res, err := e.store.Prune(ctx, now)
	if err != nil {
		e.logger.Warn("failed to prune by retention", "error", err)
		return
	}
	if res.LogEntries > 0 || res.AuditEntries > 0 {
		e.logger.Info("pruned expired history", "log_entries", res.LogEntries, "audit_entries", res.AuditEntries)
	}
}

// Close отменяет все сессии и ждет их завершения
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}

// HandleFrame маршрутизирует кадры синхронизации: ответы на свои сессии
// уходят в сессию, остальное обрабатывает ответная сторона.
func (e *Engine) HandleFrame(ctx context.Context, peer *conn.Peer, f *protocol.Frame) {
	switch f.Type {
	case protocol.MsgManifest:
		var m api.Manifest
		if err := f.Decode(&m); err != nil {
			e.logger.Warn("invalid manifest frame", "node_id", peer.NodeID(), "error", err)
			return
		}
		if m.Reply {
			e.toSession(ctx, peer, m.SessionID, f)
			return
		}
		e.respond(ctx, peer, f, nil)
	case protocol.MsgRequest:
		e.respond(ctx, peer, f, nil)
	case protocol.MsgRecord:
		var msg api.RecordMessage
		if err := f.Decode(&msg); err != nil {
			e.logger.Warn("invalid record frame", "node_id", peer.NodeID(), "error", err)
			return
		}
		if e.ownSession(msg.SessionID) {
			e.toSession(ctx, peer, msg.SessionID, f)
			return
		}
		e.respond(ctx, peer, f, e.store.Track(1))
	case protocol.MsgAck:
		var ack api.Ack
		if err := f.Decode(&ack); err != nil {
			e.logger.Warn("invalid ack frame", "node_id", peer.NodeID(), "error", err)
			return
		}
		if ack.Done {
			e.toSession(ctx, peer, ack.SessionID, f)
			return
		}
		if s := e.session(ack.SessionID); s == nil || !s.resolveAck(ack) {
			e.logger.Debug("late ack dropped", "session_id", ack.SessionID, "seq", ack.Seq)
		}
	default:
		e.logger.Warn("unexpected frame", "node_id", peer.NodeID(), "type", f.Type.String())
	}
}

func (e *Engine) session(id string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active[id]
}

func (e *Engine) ownSession(id string) bool {
	return e.session(id) != nil
}

func (e *Engine) toSession(ctx context.Context, peer *conn.Peer, sessionID string, f *protocol.Frame) {
	s := e.session(sessionID)
	if s == nil || s.nodeID() != peer.NodeID() {
		e.logger.Debug("frame for unknown session dropped", "session_id", sessionID, "type", f.Type.String())
		return
	}
	s.deliver(ctx, f)
}

var _ conn.FrameHandler = (*Engine)(nil)

// recordMetrics учитывает результат применения записей
func recordMetrics(direction string, res *store.ApplyResult) {
	metrics.RecordsTotal.WithLabelValues(direction, "applied").Add(float64(len(res.Applied)))
	metrics.RecordsTotal.WithLabelValues(direction, "stale").Add(float64(len(res.Stale)))
	metrics.RecordsTotal.WithLabelValues(direction, "rejected").Add(float64(len(res.Rejected)))
	metrics.ConflictsTotal.Add(float64(len(res.Conflicts)))
}
