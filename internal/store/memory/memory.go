// Package memory реализует хранилища в памяти процесса.
// Используется в тестах и при storage.driver=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/peersync/internal/crdt"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
)

type logEntry struct {
	savedAt time.Time
	record  *models.SyncRecord
}

// Storage реализует все интерфейсы хранилищ пакета store
type Storage struct {
	now      func() time.Time
	records  *crdt.RegisterSet
	peers    map[string]*models.SyncNode
	sessions map[string]*models.SyncSession
	lastSync map[string]time.Time
	identity *models.NodeIdentity
	log      []logEntry
	audit    []*models.AuditEntry
	mu       sync.RWMutex
}

// New создает пустое хранилище. now может быть nil.
func New(now func() time.Time) *Storage {
	if now == nil {
		now = time.Now
	}
	return &Storage{
		now:      now,
		records:  crdt.NewRegisterSet(),
		peers:    make(map[string]*models.SyncNode),
		sessions: make(map[string]*models.SyncSession),
		lastSync: make(map[string]time.Time),
	}
}

var (
	_ store.RecordStorage   = (*Storage)(nil)
	_ store.AuditStorage    = (*Storage)(nil)
	_ store.SessionStorage  = (*Storage)(nil)
	_ store.PeerStorage     = (*Storage)(nil)
	_ store.IdentityStorage = (*Storage)(nil)
	_ store.MetadataStorage = (*Storage)(nil)
)

// GetRecord retrieves the current version of a record
func (s *Storage) GetRecord(_ context.Context, id string) (*models.SyncRecord, error) {
	record := s.records.Get(id)
	if record == nil {
		return nil, store.ErrRecordNotFound
	}
	return record, nil
}

// SaveRecord upserts the current state and appends to the log.
// RegisterSet сохраняет только выигрывающую версию; DataStore передает сюда
// только записи, которые уже выиграли Resolve.
func (s *Storage) SaveRecord(_ context.Context, record *models.SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records.Apply(record)
	s.log = append(s.log, logEntry{savedAt: s.now(), record: record.Clone()})
	return nil
}

// ListRecords returns all current records sorted by id
func (s *Storage) ListRecords(_ context.Context) ([]*models.SyncRecord, error) {
	records := s.records.GetAllIncludingDeleted()
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Manifest returns the manifest of current records
func (s *Storage) Manifest(_ context.Context) (models.Manifest, error) {
	return s.records.Manifest(), nil
}

// LogSize returns the number of log entries
func (s *Storage) LogSize(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log), nil
}

// PruneLog removes log entries saved before the given time
func (s *Storage) PruneLog(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.log[:0]
	removed := 0
	for _, e := range s.log {
		if e.savedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.log = kept
	return removed, nil
}

// SaveAudit appends an audit entry
func (s *Storage) SaveAudit(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *entry
	c.LoserPayload = append([]byte(nil), entry.LoserPayload...)
	s.audit = append(s.audit, &c)
	return nil
}

// ListAudit returns audit entries for a record, oldest first
func (s *Storage) ListAudit(_ context.Context, recordID string) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.AuditEntry, 0)
	for _, e := range s.audit {
		if recordID == "" || e.RecordID == recordID {
			c := *e
			result = append(result, &c)
		}
	}
	return result, nil
}

// PruneAudit removes audit entries created before the given time
func (s *Storage) PruneAudit(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.audit[:0]
	removed := 0
	for _, e := range s.audit {
		if e.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.audit = kept
	return removed, nil
}

// SaveSession stores or replaces a session
func (s *Storage) SaveSession(_ context.Context, session *models.SyncSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// GetSession retrieves a session by ID
func (s *Storage) GetSession(_ context.Context, id string) (*models.SyncSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// ListSessions returns the most recent sessions first
func (s *Storage) ListSessions(_ context.Context, limit int) ([]*models.SyncSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.SyncSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		result = append(result, session.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SavePeer stores or updates a peer
func (s *Storage) SavePeer(_ context.Context, node *models.SyncNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[node.ID] = node.Clone()
	return nil
}

// GetPeer retrieves a peer by ID
func (s *Storage) GetPeer(_ context.Context, id string) (*models.SyncNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.peers[id]
	if !ok {
		return nil, store.ErrPeerNotFound
	}
	return node.Clone(), nil
}

// ListPeers returns all known peers sorted by id
func (s *Storage) ListPeers(_ context.Context) ([]*models.SyncNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.SyncNode, 0, len(s.peers))
	for _, node := range s.peers {
		result = append(result, node.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DeletePeer removes a peer
func (s *Storage) DeletePeer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
	return nil
}

// SaveIdentity stores the node identity
func (s *Storage) SaveIdentity(_ context.Context, identity *models.NodeIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *identity
	s.identity = &c
	return nil
}

// GetIdentity retrieves the node identity
func (s *Storage) GetIdentity(_ context.Context) (*models.NodeIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return nil, store.ErrIdentityNotFound
	}
	c := *s.identity
	return &c, nil
}

// SaveLastSync saves the time of the last successful sync with a peer
func (s *Storage) SaveLastSync(_ context.Context, nodeID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync[nodeID] = at
	return nil
}

// GetLastSync retrieves the time of the last successful sync with a peer
func (s *Storage) GetLastSync(_ context.Context, nodeID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync[nodeID], nil
}
