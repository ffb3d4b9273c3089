package crdt

import (
	"sync"

	"github.com/iudanet/peersync/internal/models"
)

// RegisterSet набор версионированных регистров, по одному на id записи.
// Apply использует Resolve, поэтому итог не зависит от порядка и повторов.
type RegisterSet struct {
	elements map[string]*models.SyncRecord // map[id]record
	mu       sync.RWMutex                  // мьютекс для потокобезопасности
}

// NewRegisterSet создает пустой набор
func NewRegisterSet() *RegisterSet {
	return &RegisterSet{
		elements: make(map[string]*models.SyncRecord),
	}
}

// Apply применяет запись по правилам Resolve.
// Запись сохраняется только если исход Replaces.
func (s *RegisterSet) Apply(record *models.SyncRecord) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := Resolve(s.elements[record.ID], record)
	if outcome.Replaces() {
		s.elements[record.ID] = record.Clone()
	}
	return outcome
}

// Get возвращает запись по ID, включая tombstone.
// Возвращает nil, если записи нет.
func (s *RegisterSet) Get(id string) *models.SyncRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.elements[id]
	if !exists {
		return nil
	}
	return record.Clone()
}

// GetAllIncludingDeleted возвращает все записи, включая tombstone.
// Используется для синхронизации с другими узлами.
func (s *RegisterSet) GetAllIncludingDeleted() []*models.SyncRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.SyncRecord, 0, len(s.elements))
	for _, record := range s.elements {
		result = append(result, record.Clone())
	}
	return result
}

// Manifest возвращает манифест всех записей, включая tombstone
func (s *RegisterSet) Manifest() models.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := make(models.Manifest, len(s.elements))
	for id, record := range s.elements {
		m[id] = record.ManifestEntry()
	}
	return m
}
