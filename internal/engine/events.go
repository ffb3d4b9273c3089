package engine

import "github.com/iudanet/peersync/internal/models"

// EventType тип события движка
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventProgress        EventType = "progress"
	EventSessionFinished EventType = "session_finished"
)

// Event событие сессии со снимком ее состояния
type Event struct {
	Session *models.SyncSession
	Type    EventType
}

const subscriberBuffer = 64

// Subscribe подписывает на события сессий. Медленный подписчик теряет события,
// но не тормозит синхронизацию. Возвращенная функция отменяет подписку.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subsMu.Unlock()

	return ch, func() {
		e.subsMu.Lock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
		e.subsMu.Unlock()
	}
}

func (e *Engine) publish(t EventType, s *models.SyncSession) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- Event{Type: t, Session: s.Clone()}:
		default:
		}
	}
}
