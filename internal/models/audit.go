package models

import "time"

// AuditReason причина записи в журнал аудита
type AuditReason string

const (
	AuditConflict          AuditReason = "conflict"           // конфликт одинаковых версий, проигравшая запись
	AuditRejectedSignature AuditReason = "rejected-signature" // подпись не прошла проверку
	AuditRejectedCrypto    AuditReason = "rejected-crypto"    // ошибка расшифровки или content hash
)

// AuditEntry фиксирует проигравшую или отклоненную версию записи.
// Проигравшая запись конфликта хранится только здесь, а не как отдельная запись.
type AuditEntry struct {
	CreatedAt    time.Time   `json:"created_at"`
	ID           string      `json:"id"`
	RecordID     string      `json:"record_id"`
	WinnerHash   string      `json:"winner_hash,omitempty"`
	LoserHash    string      `json:"loser_hash"`
	LoserNodeID  string      `json:"loser_node_id"`
	SenderNodeID string      `json:"sender_node_id,omitempty"`
	Reason       AuditReason `json:"reason"`
	Detail       string      `json:"detail,omitempty"`
	LoserPayload []byte      `json:"loser_payload,omitempty"`
	Version      uint64      `json:"version"`
}
