package api

// Сообщения P2P протокола. Кодируются msgpack и передаются в кадрах internal/protocol.

// Hello первое сообщение handshake с каждой стороны
type Hello struct {
	NodeID       string   `msgpack:"node_id"`      // id узла отправителя
	Account      string   `msgpack:"account"`      // аккаунт; узлы разных аккаунтов не синхронизируются
	Version      string   `msgpack:"version"`      // версия peersync
	DataDigest   string   `msgpack:"digest"`       // digest данных отправителя
	PublicKey    []byte   `msgpack:"public_key"`   // ed25519 ключ identity
	Ephemeral    []byte   `msgpack:"ephemeral"`    // одноразовый X25519 ключ
	Capabilities []string `msgpack:"capabilities"` // объявленные возможности
	ListenPort   int      `msgpack:"listen_port"`  // порт для обратных соединений, 0 если узел не слушает
}

// Challenge случайный nonce, который должна подписать другая сторона
type Challenge struct {
	Nonce []byte `msgpack:"nonce"`
}

// Response подпись transcript || nonce ключом identity
type Response struct {
	Signature []byte `msgpack:"sig"`
}

// ManifestEntry версия и content hash одной записи
type ManifestEntry struct {
	ContentHash string `msgpack:"h"`
	Version     uint64 `msgpack:"v"`
}

// Manifest снимок состояния отправителя
type Manifest struct {
	SessionID string                   `msgpack:"session"`
	Digest    string                   `msgpack:"digest"`
	Entries   map[string]ManifestEntry `msgpack:"entries"`
	Seq       uint64                   `msgpack:"seq"`   // номер попытки обмена, ответ повторяет его
	Reply     bool                     `msgpack:"reply"` // ответ на MANIFEST инициатора
}

// Request запрос записей по id. Seq повторяется в ответных RECORD и ACK(done),
// по нему инициатор отличает ответ на текущую попытку от запоздавшего.
type Request struct {
	SessionID string   `msgpack:"session"`
	IDs       []string `msgpack:"ids"`
	Seq       uint64   `msgpack:"seq"`
}

// WireRecord запись на проводе. Payload всегда зашифрован ключом данных аккаунта.
type WireRecord struct {
	ID          string `msgpack:"id"`
	Type        string `msgpack:"type"`
	NodeID      string `msgpack:"node"`
	ContentHash string `msgpack:"hash"`
	Payload     []byte `msgpack:"payload"`
	Signature   []byte `msgpack:"sig"`
	Version     uint64 `msgpack:"ver"`
	Timestamp   int64  `msgpack:"ts"`
	Encrypted   bool   `msgpack:"enc"`
	Deleted     bool   `msgpack:"del"`
}

// RecordMessage запись в рамках сессии
type RecordMessage struct {
	SessionID string     `msgpack:"session"`
	Record    WireRecord `msgpack:"record"`
	Seq       uint64     `msgpack:"seq"`
}

// Статусы подтверждения записи
const (
	AckApplied  = "applied"
	AckSame     = "same"
	AckStale    = "stale"
	AckConflict = "conflict"
	AckRejected = "rejected"
)

// Ack подтверждение записи (Seq > 0) или завершения потока ответов на REQUEST (Done)
type Ack struct {
	SessionID string `msgpack:"session"`
	RecordID  string `msgpack:"record"`
	Status    string `msgpack:"status"`
	Error     string `msgpack:"error,omitempty"`
	Seq       uint64 `msgpack:"seq"`
	Count     int    `msgpack:"count"`
	Done      bool   `msgpack:"done"`
}

// Ping проверка живости соединения
type Ping struct {
	Seq    uint64 `msgpack:"seq"`
	SentAt int64  `msgpack:"sent_at"` // unix ns по часам отправителя
}

// Pong ответ на Ping, повторяет его поля
type Pong struct {
	Seq    uint64 `msgpack:"seq"`
	SentAt int64  `msgpack:"sent_at"`
}

// Bye корректное закрытие соединения
type Bye struct {
	Reason string `msgpack:"reason"`
}
