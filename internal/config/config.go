// Package config загружает настройки узла из YAML файла и переменных окружения.
//
// Переменные окружения имеют префикс PEERSYNC_, точка в ключе заменяется
// подчеркиванием: sync.auto_sync -> PEERSYNC_SYNC_AUTO_SYNC.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/peersync/internal/conn"
	"github.com/iudanet/peersync/internal/discovery"
	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/validation"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "PEERSYNC"

// Имена файлов внутри data_dir
const (
	boltFile   = "peersync.db"
	sqliteFile = "history.db"
	tokenFile  = "api.token"
)

// Config корневая конфигурация
type Config struct {
	Node      NodeConfig      `mapstructure:"node"`
	Log       LogConfig       `mapstructure:"log"`
	API       APIConfig       `mapstructure:"api"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Network   NetworkConfig   `mapstructure:"network"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

// Драйверы хранилища
const (
	StorageBolt   = "bolt"   // bbolt + sqlite в data_dir
	StorageMemory = "memory" // все в памяти процесса, состояние теряется при выходе
)

// NodeConfig идентичность и расположение данных узла
type NodeConfig struct {
	Account string `mapstructure:"account"`
	DataDir string `mapstructure:"data_dir"`
	Storage string `mapstructure:"storage"`
}

// NetworkConfig P2P слушатель, доверие и таймауты соединений
type NetworkConfig struct {
	Listen            string        `mapstructure:"listen"`
	TrustMode         string        `mapstructure:"trust_mode"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	RetryBase         time.Duration `mapstructure:"retry_base"`
	RetryMax          time.Duration `mapstructure:"retry_max"`
	KeepAlive         time.Duration `mapstructure:"keep_alive"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	HeartbeatMisses   int           `mapstructure:"heartbeat_misses"`
	BandwidthLimit    int           `mapstructure:"bandwidth_limit"`
}

// SyncConfig настройки движка синхронизации
type SyncConfig struct {
	AckTimeout            time.Duration `mapstructure:"ack_timeout"`
	SessionTimeout        time.Duration `mapstructure:"session_timeout"`
	RetryBase             time.Duration `mapstructure:"retry_base"`
	SyncIntervalMs        int64         `mapstructure:"sync_interval_ms"`
	MaxSessions           int64         `mapstructure:"max_sessions"`
	BackpressureThreshold int64         `mapstructure:"backpressure_threshold"`
	RecordRetries         uint64        `mapstructure:"record_retries"`
	MaxConnections        int           `mapstructure:"max_connections"`
	DataRetentionDays     int           `mapstructure:"data_retention_days"`
	SendWindow            int           `mapstructure:"send_window"`
	AutoSync              bool          `mapstructure:"auto_sync"`
	EncryptionEnabled     bool          `mapstructure:"encryption_enabled"`
	P2PEnabled            bool          `mapstructure:"p2p_enabled"`
}

// DiscoveryConfig источники узлов
type DiscoveryConfig struct {
	MDNS        MDNSConfig `mapstructure:"mdns"`
	StaticPeers []string   `mapstructure:"static_peers"`
}

// MDNSConfig настройки mDNS
type MDNSConfig struct {
	Service   string        `mapstructure:"service"`
	Domain    string        `mapstructure:"domain"`
	Interface string        `mapstructure:"interface"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Enabled   bool          `mapstructure:"enabled"`
}

// APIConfig локальный управляющий API
type APIConfig struct {
	Listen    string        `mapstructure:"listen"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	RateLimit int           `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	s := engine.DefaultSyncConfig()

	v.SetDefault("node.account", "")
	v.SetDefault("node.data_dir", defaultDataDir())
	v.SetDefault("node.storage", StorageBolt)

	v.SetDefault("network.listen", "0.0.0.0:7946")
	v.SetDefault("network.trust_mode", conn.TrustTOFU)
	v.SetDefault("network.connect_timeout", 10*time.Second)
	v.SetDefault("network.handshake_timeout", 10*time.Second)
	v.SetDefault("network.heartbeat_interval", 5*time.Second)
	v.SetDefault("network.heartbeat_misses", 3)
	v.SetDefault("network.retry_base", 200*time.Millisecond)
	v.SetDefault("network.retry_max", 30*time.Second)
	v.SetDefault("network.max_retries", 5)
	v.SetDefault("network.keep_alive", 30*time.Second)
	v.SetDefault("network.bandwidth_limit", 0)

	v.SetDefault("sync.auto_sync", s.AutoSync)
	v.SetDefault("sync.sync_interval_ms", s.SyncIntervalMs)
	v.SetDefault("sync.encryption_enabled", s.EncryptionEnabled)
	v.SetDefault("sync.p2p_enabled", s.P2PEnabled)
	v.SetDefault("sync.max_connections", s.MaxConnections)
	v.SetDefault("sync.data_retention_days", s.DataRetentionDays)
	v.SetDefault("sync.max_sessions", s.MaxSessions)
	v.SetDefault("sync.record_retries", s.RecordRetries)
	v.SetDefault("sync.send_window", s.SendWindow)
	v.SetDefault("sync.backpressure_threshold", s.BackpressureThreshold)
	v.SetDefault("sync.ack_timeout", s.AckTimeout)
	v.SetDefault("sync.session_timeout", s.SessionTimeout)
	v.SetDefault("sync.retry_base", s.RetryBase)

	v.SetDefault("discovery.static_peers", []string{})
	v.SetDefault("discovery.mdns.enabled", true)
	v.SetDefault("discovery.mdns.service", "_peersync._tcp")
	v.SetDefault("discovery.mdns.domain", "local.")
	v.SetDefault("discovery.mdns.interface", "")
	v.SetDefault("discovery.mdns.timeout", 2*time.Second)

	v.SetDefault("api.listen", "127.0.0.1:7947")
	v.SetDefault("api.token_ttl", 24*time.Hour)
	v.SetDefault("api.rate_limit", 50)
	v.SetDefault("api.rate_burst", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".peersync"
	}
	return filepath.Join(dir, "peersync")
}

// Load читает конфигурацию. Пустой path означает только значения
// по умолчанию и переменные окружения.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// список из переменной окружения приходит одной строкой
	cfg.Discovery.StaticPeers = splitList(cfg.Discovery.StaticPeers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		result = append(result, strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' })...)
	}
	return result
}

// Validate отклоняет бессмысленные значения
func (c *Config) Validate() error {
	var errs []error

	if c.Node.Account != "" {
		if err := validation.ValidateAccount(c.Node.Account); err != nil {
			errs = append(errs, fmt.Errorf("node.account: %w", err))
		}
	}
	if c.Node.DataDir == "" {
		errs = append(errs, errors.New("node.data_dir cannot be empty"))
	}
	if c.Node.Storage != StorageBolt && c.Node.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("node.storage must be %q or %q", StorageBolt, StorageMemory))
	}

	if c.Network.TrustMode != conn.TrustTOFU && c.Network.TrustMode != conn.TrustStrict {
		errs = append(errs, fmt.Errorf("network.trust_mode must be %q or %q", conn.TrustTOFU, conn.TrustStrict))
	}
	if c.Network.Listen == "" {
		errs = append(errs, errors.New("network.listen cannot be empty"))
	}
	if c.Network.ConnectTimeout <= 0 || c.Network.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("network timeouts must be positive"))
	}
	if c.Network.HeartbeatInterval <= 0 || c.Network.HeartbeatMisses <= 0 {
		errs = append(errs, errors.New("network heartbeat settings must be positive"))
	}
	if c.Network.RetryBase <= 0 || c.Network.RetryMax < c.Network.RetryBase {
		errs = append(errs, errors.New("network.retry_max must be >= network.retry_base > 0"))
	}
	if c.Network.BandwidthLimit < 0 {
		errs = append(errs, errors.New("network.bandwidth_limit cannot be negative"))
	}

	if c.Sync.SyncIntervalMs < 1000 {
		errs = append(errs, errors.New("sync.sync_interval_ms must be at least 1000"))
	}
	if c.Sync.MaxConnections <= 0 {
		errs = append(errs, errors.New("sync.max_connections must be positive"))
	}
	if c.Sync.DataRetentionDays < 0 {
		errs = append(errs, errors.New("sync.data_retention_days cannot be negative"))
	}
	if c.Sync.MaxSessions <= 0 || c.Sync.SendWindow <= 0 {
		errs = append(errs, errors.New("sync.max_sessions and sync.send_window must be positive"))
	}
	if c.Sync.BackpressureThreshold < int64(c.Sync.SendWindow) {
		errs = append(errs, errors.New("sync.backpressure_threshold must be >= sync.send_window"))
	}
	if c.Sync.AckTimeout <= 0 || c.Sync.SessionTimeout <= 0 || c.Sync.RetryBase <= 0 {
		errs = append(errs, errors.New("sync timeouts must be positive"))
	}

	for _, p := range c.Discovery.StaticPeers {
		if _, err := discovery.ParsePeer(p); err != nil {
			errs = append(errs, fmt.Errorf("discovery.static_peers: %w", err))
		}
	}

	if c.API.Listen == "" {
		errs = append(errs, errors.New("api.listen cannot be empty"))
	}
	if c.API.TokenTTL <= 0 {
		errs = append(errs, errors.New("api.token_ttl must be positive"))
	}
	if c.API.RateLimit <= 0 || c.API.RateBurst <= 0 {
		errs = append(errs, errors.New("api rate limits must be positive"))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// BoltPath путь к файлу bbolt
func (c *Config) BoltPath() string {
	return filepath.Join(c.Node.DataDir, boltFile)
}

// SQLitePath путь к файлу истории
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Node.DataDir, sqliteFile)
}

// TokenPath путь к файлу токена управляющего API
func (c *Config) TokenPath() string {
	return filepath.Join(c.Node.DataDir, tokenFile)
}

// APIURL адрес управляющего API для клиента. Адрес "все интерфейсы"
// заменяется на loopback.
func (c *Config) APIURL() string {
	host, port, err := net.SplitHostPort(c.API.Listen)
	if err != nil {
		return "http://" + c.API.Listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// EngineConfig снимок настроек для SyncEngine
func (c *Config) EngineConfig() engine.SyncConfig {
	return engine.SyncConfig{
		AutoSync:              c.Sync.AutoSync,
		SyncIntervalMs:        c.Sync.SyncIntervalMs,
		EncryptionEnabled:     c.Sync.EncryptionEnabled,
		P2PEnabled:            c.Sync.P2PEnabled,
		MaxConnections:        c.Sync.MaxConnections,
		DataRetentionDays:     c.Sync.DataRetentionDays,
		MaxSessions:           c.Sync.MaxSessions,
		RecordRetries:         c.Sync.RecordRetries,
		SendWindow:            c.Sync.SendWindow,
		BackpressureThreshold: c.Sync.BackpressureThreshold,
		AckTimeout:            c.Sync.AckTimeout,
		SessionTimeout:        c.Sync.SessionTimeout,
		RetryBase:             c.Sync.RetryBase,
	}
}

// ConnConfig настройки ConnectionManager. Account и Version заполняет вызывающий.
func (c *Config) ConnConfig() conn.Config {
	return conn.Config{
		Account:           c.Node.Account,
		TrustMode:         c.Network.TrustMode,
		ConnectTimeout:    c.Network.ConnectTimeout,
		HandshakeTimeout:  c.Network.HandshakeTimeout,
		HeartbeatInterval: c.Network.HeartbeatInterval,
		HeartbeatMisses:   c.Network.HeartbeatMisses,
		RetryBase:         c.Network.RetryBase,
		RetryMax:          c.Network.RetryMax,
		MaxRetries:        c.Network.MaxRetries,
		MaxConnections:    int64(c.Sync.MaxConnections),
		BandwidthLimit:    c.Network.BandwidthLimit,
		ListenPort:        c.ListenPort(),
	}
}

// ListenPort порт P2P слушателя, 0 если его нельзя определить
func (c *Config) ListenPort() int {
	_, portStr, err := net.SplitHostPort(c.Network.Listen)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// MDNS настройки mDNS discoverer
func (c *Config) MDNS() discovery.MDNSConfig {
	return discovery.MDNSConfig{
		Service:   c.Discovery.MDNS.Service,
		Domain:    c.Discovery.MDNS.Domain,
		Interface: c.Discovery.MDNS.Interface,
		Timeout:   c.Discovery.MDNS.Timeout,
	}
}

// NewLogger создает slog логгер по настройкам
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", level, err)
	}
	return l, nil
}
