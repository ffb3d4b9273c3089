package models

import (
	"bytes"
	"encoding/binary"
)

// recordSigningDomain префикс подписываемого сообщения записи
const recordSigningDomain = "peersync/record/v1"

// SyncRecord представляет версионированную запись, которой обмениваются узлы.
// Payload непрозрачен для движка: при Encrypted=true это шифротекст.
type SyncRecord struct {
	ID          string `json:"id" msgpack:"id"`                     // ID стабильный идентификатор записи
	Type        string `json:"type" msgpack:"type"`                 // Type тег типа записи (выбирается внешним слоем)
	NodeID      string `json:"node_id" msgpack:"node"`              // NodeID узел, записавший эту версию (автор подписи)
	ContentHash string `json:"content_hash" msgpack:"hash"`         // ContentHash хеш открытого payload (hex)
	Payload     []byte `json:"payload,omitempty" msgpack:"payload"` // Payload данные (шифротекст при Encrypted)
	Signature   []byte `json:"signature" msgpack:"sig"`             // Signature подпись автора над SigningBytes
	Version     uint64 `json:"version" msgpack:"ver"`               // Version строго растет для каждого ID
	Timestamp   int64  `json:"timestamp" msgpack:"ts"`              // Timestamp unix ms, только информативно
	Encrypted   bool   `json:"encrypted" msgpack:"enc"`             // Encrypted payload зашифрован ключом данных аккаунта
	Deleted     bool   `json:"deleted" msgpack:"del"`               // Deleted tombstone (soft delete)
}

// SigningBytes возвращает каноническое сообщение для подписи.
// Подписываются id, тип, content hash, версия, timestamp и флаг удаления,
// но не сам payload: шифротекст может перешифровываться без смены подписи.
func (r *SyncRecord) SigningBytes() []byte {
	var buf bytes.Buffer

	writeField := func(s string) {
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}

	writeField(recordSigningDomain)
	writeField(r.ID)
	writeField(r.Type)
	writeField(r.ContentHash)

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], r.Version)
	buf.Write(num[:])
	binary.BigEndian.PutUint64(num[:], uint64(r.Timestamp))
	buf.Write(num[:])

	if r.Deleted {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

// ManifestEntry возвращает краткое описание записи для манифеста
func (r *SyncRecord) ManifestEntry() ManifestEntry {
	return ManifestEntry{Version: r.Version, ContentHash: r.ContentHash}
}

// Size возвращает примерный размер записи на проводе
func (r *SyncRecord) Size() int {
	return len(r.ID) + len(r.Type) + len(r.NodeID) + len(r.ContentHash) +
		len(r.Payload) + len(r.Signature) + 8 + 8 + 2
}

// Clone создает глубокую копию записи
func (r *SyncRecord) Clone() *SyncRecord {
	c := *r
	if r.Payload != nil {
		c.Payload = append([]byte(nil), r.Payload...)
	}
	if r.Signature != nil {
		c.Signature = append([]byte(nil), r.Signature...)
	}
	return &c
}
