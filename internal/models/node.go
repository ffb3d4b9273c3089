package models

import (
	"net"
	"slices"
	"strconv"
	"time"
)

// Возможности протокола, которые узел объявляет в HELLO и mDNS
const (
	CapabilitySync       = "sync/v1"       // базовый протокол синхронизации (обязателен)
	CapabilityEncryption = "encryption/v1" // узел хранит payload зашифрованным
	CapabilityTombstones = "tombstones/v1" // узел понимает soft delete
)

// DefaultCapabilities возможности текущей реализации
func DefaultCapabilities() []string {
	return []string{CapabilitySync, CapabilityTombstones, CapabilityEncryption}
}

// SyncNode представляет известный узел аккаунта.
// PublicKey закрепляется один раз (TOFU или вручную) и никогда не перезаписывается молча.
type SyncNode struct {
	LastSeen     time.Time `json:"last_seen"`
	PinnedAt     time.Time `json:"pinned_at,omitempty"`
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	DataDigest   string    `json:"data_digest,omitempty"`
	PublicKey    []byte    `json:"public_key,omitempty"`
	Capabilities []string  `json:"capabilities"`
	Port         int       `json:"port"`
	Online       bool      `json:"online"`
	NeedsRepin   bool      `json:"needs_repin"` // NeedsRepin выставляется после ошибки аутентификации
}

// Addr возвращает адрес для dial в формате host:port
func (n *SyncNode) Addr() string {
	if n.Port == 0 {
		return n.Address
	}
	return net.JoinHostPort(n.Address, strconv.Itoa(n.Port))
}

// IsPinned сообщает, закреплен ли публичный ключ узла
func (n *SyncNode) IsPinned() bool {
	return len(n.PublicKey) > 0
}

// HasCapability проверяет наличие возможности
func (n *SyncNode) HasCapability(capability string) bool {
	return slices.Contains(n.Capabilities, capability)
}

// Clone создает глубокую копию узла
func (n *SyncNode) Clone() *SyncNode {
	c := *n
	c.PublicKey = append([]byte(nil), n.PublicKey...)
	c.Capabilities = append([]string(nil), n.Capabilities...)
	return &c
}

// IntersectCapabilities возвращает отсортированное пересечение двух наборов возможностей
func IntersectCapabilities(a, b []string) []string {
	result := make([]string, 0, len(a))
	for _, c := range a {
		if slices.Contains(b, c) && !slices.Contains(result, c) {
			result = append(result, c)
		}
	}
	slices.Sort(result)
	return result
}
