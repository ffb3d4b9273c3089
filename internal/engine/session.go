package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/pkg/api"
)

// inboxSize буфер кадров, адресованных сессии
const inboxSize = 64

// session исполняемая сессия на стороне инициатора
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan *protocol.Frame
	done   chan struct{}
	acks   map[uint64]chan api.Ack

	data models.SyncSession
	cfg  SyncConfig

	seq       atomic.Uint64
	bytes     atomic.Int64
	records   atomic.Int64
	cancelled atomic.Bool

	acksMu sync.Mutex
	mu     sync.Mutex
}

func newSession(parent context.Context, data models.SyncSession, cfg SyncConfig) *session {
	ctx, cancel := context.WithTimeout(parent, cfg.SessionTimeout)
	return &session{
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan *protocol.Frame, inboxSize),
		done:   make(chan struct{}),
		acks:   make(map[uint64]chan api.Ack),
		data:   data,
		cfg:    cfg,
	}
}

func (s *session) id() string {
	return s.data.ID
}

func (s *session) nodeID() string {
	return s.data.NodeID
}

// snapshot возвращает копию сессии с актуальными счетчиками
func (s *session) snapshot() *models.SyncSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.data.Clone()
	c.BytesTransferred = s.bytes.Load()
	c.RecordsTransferred = s.records.Load()
	return c
}

func (s *session) setState(state models.SessionState) {
	s.mu.Lock()
	s.data.State = state
	s.mu.Unlock()
}

func (s *session) state() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.State
}

// addError добавляет ошибку записи или шага, сессия продолжается
func (s *session) addError(now time.Time, recordID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Errors = append(s.data.Errors, models.SessionError{
		Time:     now.UTC(),
		RecordID: recordID,
		Kind:     syncerr.KindOf(err).String(),
		Message:  err.Error(),
	})
}

func (s *session) addWarning(w string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Warnings = append(s.data.Warnings, w)
}

func (s *session) progress(bytes int) {
	s.bytes.Add(int64(bytes))
	s.records.Add(1)
}

// finish переводит сессию в терминальное состояние. Ожидающие Wait
// освобождаются отдельно через markDone, после сохранения итога.
func (s *session) finish(state models.SessionState, now time.Time) *models.SyncSession {
	s.mu.Lock()
	s.data.State = state
	s.data.EndTime = now.UTC()
	s.data.BytesTransferred = s.bytes.Load()
	s.data.RecordsTransferred = s.records.Load()
	final := s.data.Clone()
	s.mu.Unlock()

	s.cancel()
	return final
}

func (s *session) markDone() {
	close(s.done)
}

// deliver передает кадр сессии; блокируется, пока сессия не заберет кадр
func (s *session) deliver(ctx context.Context, f *protocol.Frame) {
	select {
	case s.inbox <- f:
	case <-s.done:
	case <-ctx.Done():
	}
}

// expectAck регистрирует ожидание ACK для номера записи
func (s *session) expectAck(seq uint64) chan api.Ack {
	ch := make(chan api.Ack, 1)
	s.acksMu.Lock()
	s.acks[seq] = ch
	s.acksMu.Unlock()
	return ch
}

func (s *session) dropAck(seq uint64) {
	s.acksMu.Lock()
	delete(s.acks, seq)
	s.acksMu.Unlock()
}

// resolveAck передает ACK ожидающей отправке. Запоздавший ACK отбрасывается.
func (s *session) resolveAck(ack api.Ack) bool {
	s.acksMu.Lock()
	ch, ok := s.acks[ack.Seq]
	delete(s.acks, ack.Seq)
	s.acksMu.Unlock()

	if !ok {
		return false
	}
	ch <- ack
	return true
}
