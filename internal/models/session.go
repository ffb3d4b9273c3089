package models

import "time"

// SessionState состояние сессии синхронизации
type SessionState string

const (
	SessionConnecting SessionState = "connecting"
	SessionSyncing    SessionState = "syncing"
	SessionCompleted  SessionState = "completed"
	SessionFailed     SessionState = "failed"
	SessionCancelled  SessionState = "cancelled"
)

// IsTerminal сообщает, что сессия завершена и больше не меняется
func (s SessionState) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCancelled
}

// SessionError ошибка по отдельной записи или шагу сессии
type SessionError struct {
	Time     time.Time `json:"time"`
	RecordID string    `json:"record_id,omitempty"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
}

// Предупреждения сессии
const (
	WarningDigestMismatch = "DigestMismatch"
)

// SyncSession представляет один сеанс синхронизации с узлом.
// После перехода в терминальное состояние не изменяется.
type SyncSession struct {
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time,omitempty"`
	ID                 string         `json:"id"`
	NodeID             string         `json:"node_id"`
	State              SessionState   `json:"state"`
	ResumedFrom        string         `json:"resumed_from,omitempty"`
	Errors             []SessionError `json:"errors"`
	Warnings           []string       `json:"warnings,omitempty"`
	BytesTransferred   int64          `json:"bytes_transferred"`
	RecordsTransferred int64          `json:"records_transferred"`
}

// PartiallySynced сообщает, что сессия завершилась, но часть записей пропущена
func (s *SyncSession) PartiallySynced() bool {
	return s.State == SessionCompleted && len(s.Errors) > 0
}

// Clone создает глубокую копию сессии
func (s *SyncSession) Clone() *SyncSession {
	c := *s
	c.Errors = append([]SessionError(nil), s.Errors...)
	c.Warnings = append([]string(nil), s.Warnings...)
	return &c
}
