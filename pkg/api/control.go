package api

import "time"

// DTO локального управляющего API (JSON). Приватный ключевой материал
// здесь никогда не передается.

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`          // описание ошибки
	Kind  string `json:"kind,omitempty"` // категория ошибки синхронизации, если есть
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	NodeID   string `json:"node_id,omitempty"`
	UptimeMs int64  `json:"uptime_ms"`
}

// NodeInfo публичные сведения о локальном узле
type NodeInfo struct {
	NodeID       string   `json:"node_id"`
	Account      string   `json:"account"`
	Version      string   `json:"version"`
	PublicKey    string   `json:"public_key"` // hex
	Fingerprint  string   `json:"fingerprint"`
	Salt         string   `json:"salt"` // соль аккаунта (base64), нужна для init следующих устройств
	Capabilities []string `json:"capabilities"`
}

// SyncSettings изменяемые настройки синхронизации
type SyncSettings struct {
	SyncIntervalMs    int64 `json:"sync_interval_ms"`
	MaxConnections    int   `json:"max_connections"`
	DataRetentionDays int   `json:"data_retention_days"`
	AutoSync          bool  `json:"auto_sync"`
	EncryptionEnabled bool  `json:"encryption_enabled"`
	P2PEnabled        bool  `json:"p2p_enabled"`
}

// StatusResponse состояние узла
type StatusResponse struct {
	Node         NodeInfo     `json:"node"`
	Digest       string       `json:"digest"`
	Connections  []Connection `json:"connections"`
	Settings     SyncSettings `json:"settings"`
	Records      int          `json:"records"`
	Tombstones   int          `json:"tombstones"`
	KnownPeers   int          `json:"known_peers"`
	OnlinePeers  int          `json:"online_peers"`
	PendingWrite int64        `json:"pending_writes"`
}

// Record представляет запись. Payload открыт только в ответе на GET одной записи.
type Record struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	NodeID      string `json:"node_id"`
	ContentHash string `json:"content_hash"`
	Payload     []byte `json:"payload,omitempty"`
	Version     uint64 `json:"version"`
	Timestamp   int64  `json:"timestamp"`
	Encrypted   bool   `json:"encrypted"`
	Deleted     bool   `json:"deleted"`
}

// PutRecordRequest запрос на запись
type PutRecordRequest struct {
	Type    string `json:"type"`
	Payload []byte `json:"payload"`           // base64 в JSON
	Version uint64 `json:"version,omitempty"` // 0 - следующая версия
}

// RecordList список записей
type RecordList struct {
	Records []Record `json:"records"`
}

// Connection активное соединение с узлом
type Connection struct {
	LastPing          time.Time `json:"last_ping"`
	ID                string    `json:"id"`
	NodeID            string    `json:"node_id"`
	TransportKind     string    `json:"transport_kind"`
	State             string    `json:"state"`
	Capabilities      []string  `json:"capabilities"`
	LatencyMs         int64     `json:"latency_ms"`
	BandwidthEstimate float64   `json:"bandwidth_estimate"`
	Initiator         bool      `json:"initiator"`
}

// Peer известный узел аккаунта
type Peer struct {
	LastSeen     time.Time   `json:"last_seen"`
	PinnedAt     time.Time   `json:"pinned_at,omitempty"`
	Connection   *Connection `json:"connection,omitempty"`
	ID           string      `json:"id"`
	Address      string      `json:"address"`
	PublicKey    string      `json:"public_key,omitempty"` // hex
	Fingerprint  string      `json:"fingerprint,omitempty"`
	DataDigest   string      `json:"data_digest,omitempty"`
	Capabilities []string    `json:"capabilities"`
	Port         int         `json:"port"`
	Online       bool        `json:"online"`
	NeedsRepin   bool        `json:"needs_repin"`
}

// PeerList список узлов
type PeerList struct {
	Peers []Peer `json:"peers"`
}

// PinRequest ручное закрепление ключа узла
type PinRequest struct {
	PublicKey string `json:"public_key"` // hex ed25519
}

// SyncRequest запуск синхронизации
type SyncRequest struct {
	NodeID string `json:"node_id,omitempty"` // пусто - все доступные узлы
	Wait   bool   `json:"wait"`              // дождаться завершения сессий
}

// SessionError ошибка отдельной записи или шага
type SessionError struct {
	Time     time.Time `json:"time"`
	RecordID string    `json:"record_id,omitempty"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
}

// Session сессия синхронизации
type Session struct {
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time,omitempty"`
	ID                 string         `json:"id"`
	NodeID             string         `json:"node_id"`
	State              string         `json:"state"`
	ResumedFrom        string         `json:"resumed_from,omitempty"`
	Errors             []SessionError `json:"errors"`
	Warnings           []string       `json:"warnings,omitempty"`
	BytesTransferred   int64          `json:"bytes_transferred"`
	RecordsTransferred int64          `json:"records_transferred"`
	PartiallySynced    bool           `json:"partially_synced"`
}

// SessionList список сессий
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// AuditEntry проигравшая или отклоненная версия записи
type AuditEntry struct {
	CreatedAt    time.Time `json:"created_at"`
	ID           string    `json:"id"`
	RecordID     string    `json:"record_id"`
	Reason       string    `json:"reason"`
	WinnerHash   string    `json:"winner_hash,omitempty"`
	LoserHash    string    `json:"loser_hash"`
	LoserNodeID  string    `json:"loser_node_id"`
	SenderNodeID string    `json:"sender_node_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Version      uint64    `json:"version"`
}

// AuditList журнал аудита записи
type AuditList struct {
	Entries []AuditEntry `json:"entries"`
}

// Export диагностическая выгрузка: узел, узлы аккаунта и история сессий
type Export struct {
	ExportedAt time.Time `json:"exported_at"`
	Node       NodeInfo  `json:"node"`
	Digest     string    `json:"digest"`
	Peers      []Peer    `json:"peers"`
	Sessions   []Session `json:"sessions"`
}
