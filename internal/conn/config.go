package conn

import (
	"time"

	"github.com/iudanet/peersync/internal/models"
)

// Режимы доверия к незакрепленным узлам
const (
	TrustTOFU   = "tofu"   // закрепить ключ при первом успешном handshake
	TrustStrict = "strict" // принимать только заранее закрепленные узлы
)

// Config параметры ConnectionManager
type Config struct {
	Account           string
	Version           string
	TrustMode         string
	Capabilities      []string
	ConnectTimeout    time.Duration
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	RetryBase         time.Duration
	RetryMax          time.Duration
	MaxRetries        uint64
	MaxConnections    int64
	HeartbeatMisses   int
	BandwidthLimit    int // байт/с на соединение, 0 - без ограничения
	ListenPort        int
}

func (c Config) withDefaults() Config {
	if c.TrustMode == "" {
		c.TrustMode = TrustTOFU
	}
	if len(c.Capabilities) == 0 {
		c.Capabilities = models.DefaultCapabilities()
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.HeartbeatMisses <= 0 {
		c.HeartbeatMisses = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 200 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 16
	}
	return c
}
