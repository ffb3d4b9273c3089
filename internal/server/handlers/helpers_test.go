package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/syncerr"
)

const (
	testNodeID  = "6f1c2a4e-8a71-4b8e-9a55-0d2f3c1b7e90"
	otherNodeID = "0b7e6d32-5d1f-4c0e-8f3a-2b9c4d5e6f70"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// newRequest создает запрос с JSON телом
func newRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return httptest.NewRequest(method, target, &buf)
}

// serve прогоняет запрос через mux с тем же шаблоном, что и в сервере
func serve(pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

// mockRecordStore хранит записи в памяти, payload не шифруется
type mockRecordStore struct {
	records map[string]*models.SyncRecord
	audit   map[string][]*models.AuditEntry
	err     error
	openErr error
	digest  string
	pending int64
	mu      sync.Mutex
}

func newMockRecordStore() *mockRecordStore {
	return &mockRecordStore{
		records: make(map[string]*models.SyncRecord),
		audit:   make(map[string][]*models.AuditEntry),
		digest:  "digest-1",
	}
}

func (m *mockRecordStore) Put(_ context.Context, req store.PutRequest) (*models.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	next := uint64(1)
	if cur, ok := m.records[req.ID]; ok {
		next = cur.Version + 1
	}
	if req.Version != 0 {
		if req.Version < next {
			return nil, syncerr.Conflict("put record", syncerr.ErrVersionConflict).WithRecord(req.ID)
		}
		next = req.Version
	}

	rec := &models.SyncRecord{
		ID:          req.ID,
		Type:        req.Type,
		NodeID:      testNodeID,
		ContentHash: "hash-" + string(req.Payload),
		Payload:     append([]byte(nil), req.Payload...),
		Version:     next,
		Timestamp:   1700000000000,
	}
	m.records[req.ID] = rec
	return rec.Clone(), nil
}

func (m *mockRecordStore) Get(_ context.Context, id string) (*models.SyncRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (m *mockRecordStore) Delete(_ context.Context, id string) (*models.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	rec.Version++
	rec.Deleted = true
	rec.Payload = nil
	return rec.Clone(), nil
}

func (m *mockRecordStore) List(_ context.Context, includeDeleted bool) ([]*models.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	result := make([]*models.SyncRecord, 0, len(m.records))
	for _, rec := range m.records {
		if rec.Deleted && !includeDeleted {
			continue
		}
		result = append(result, rec.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockRecordStore) Open(_ context.Context, rec *models.SyncRecord) ([]byte, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return rec.Payload, nil
}

func (m *mockRecordStore) Audit(_ context.Context, recordID string) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.audit[recordID], nil
}

func (m *mockRecordStore) Digest(context.Context) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.digest, nil
}

func (m *mockRecordStore) Pending() int64 {
	return m.pending
}

// mockPeerDirectory реестр узлов в памяти
type mockPeerDirectory struct {
	nodes  map[string]*models.SyncNode
	pinned []string
	mu     sync.Mutex
}

func newMockPeerDirectory(nodes ...*models.SyncNode) *mockPeerDirectory {
	m := &mockPeerDirectory{nodes: make(map[string]*models.SyncNode)}
	for _, n := range nodes {
		m.nodes[n.ID] = n
	}
	return m
}

func (m *mockPeerDirectory) List() []*models.SyncNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*models.SyncNode, 0, len(m.nodes))
	for _, n := range m.nodes {
		result = append(result, n.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockPeerDirectory) Get(nodeID string) (*models.SyncNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return nil, syncerr.Authentication("get node", syncerr.ErrUnknownNode).WithNode(nodeID)
	}
	return n.Clone(), nil
}

func (m *mockPeerDirectory) Pin(_ context.Context, nodeID string, publicKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[nodeID] = &models.SyncNode{ID: nodeID, PublicKey: publicKey}
	m.pinned = append(m.pinned, "pin:"+nodeID)
	return nil
}

func (m *mockPeerDirectory) Repin(_ context.Context, nodeID string, publicKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.nodes[nodeID]
	n.PublicKey = publicKey
	n.NeedsRepin = false
	m.pinned = append(m.pinned, "repin:"+nodeID)
	return nil
}

// mockConns фиксированный список соединений
type mockConns struct {
	conns []models.Connection
}

func (m *mockConns) Connections() []models.Connection {
	return m.conns
}

// mockSyncController движок синхронизации с заранее заданными сессиями
type mockSyncController struct {
	sessions  map[string]*models.SyncSession
	beginErr  error
	cancelErr error
	cfg       engine.SyncConfig
	started   []string
	lastLimit int
	mu        sync.Mutex
}

func newMockSyncController() *mockSyncController {
	return &mockSyncController{
		sessions: make(map[string]*models.SyncSession),
		cfg:      engine.DefaultSyncConfig(),
	}
}

func (m *mockSyncController) Begin(_ context.Context, nodeID string) ([]*models.SyncSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.started = append(m.started, nodeID)
	target := nodeID
	if target == "" {
		target = otherNodeID
	}
	s := &models.SyncSession{ID: "s-" + target, NodeID: target, State: models.SessionConnecting}
	m.sessions[s.ID] = s
	return []*models.SyncSession{s.Clone()}, nil
}

func (m *mockSyncController) Wait(_ context.Context, sessionID string) (*models.SyncSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	s.State = models.SessionCompleted
	s.RecordsTransferred = 3
	return s.Clone(), nil
}

func (m *mockSyncController) Session(_ context.Context, sessionID string) (*models.SyncSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *mockSyncController) Sessions(_ context.Context, limit int) ([]*models.SyncSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	result := make([]*models.SyncSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, s.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockSyncController) Cancel(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return m.cancelErr
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	s.State = models.SessionCancelled
	return nil
}

func (m *mockSyncController) Resume(_ context.Context, sessionID string) (*models.SyncSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	if !old.State.IsTerminal() {
		return nil, engine.ErrSessionRunning
	}
	s := &models.SyncSession{ID: sessionID + "-r", NodeID: old.NodeID, State: models.SessionConnecting, ResumedFrom: sessionID}
	m.sessions[s.ID] = s
	return s.Clone(), nil
}

func (m *mockSyncController) Config() engine.SyncConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *mockSyncController) UpdateConfig(cfg engine.SyncConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}
