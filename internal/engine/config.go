package engine

import "time"

// SyncConfig снимок настроек движка. Сессия получает копию при старте
// и не видит последующих изменений, кроме политики хранилища (см. Engine.UpdateConfig).
type SyncConfig struct {
	SyncIntervalMs        int64
	MaxConnections        int
	DataRetentionDays     int
	MaxSessions           int64
	RecordRetries         uint64
	SendWindow            int
	BackpressureThreshold int64
	AckTimeout            time.Duration
	SessionTimeout        time.Duration
	RetryBase             time.Duration
	AutoSync              bool
	EncryptionEnabled     bool
	P2PEnabled            bool
}

// DefaultSyncConfig настройки по умолчанию
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		AutoSync:              false,
		SyncIntervalMs:        60_000,
		EncryptionEnabled:     true,
		P2PEnabled:            true,
		MaxConnections:        16,
		DataRetentionDays:     90,
		MaxSessions:           4,
		RecordRetries:         3,
		SendWindow:            8,
		BackpressureThreshold: 1024,
		AckTimeout:            10 * time.Second,
		SessionTimeout:        10 * time.Minute,
		RetryBase:             100 * time.Millisecond,
	}
}

// SyncInterval период автосинхронизации
func (c SyncConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMs) * time.Millisecond
}

func (c SyncConfig) withDefaults() SyncConfig {
	d := DefaultSyncConfig()
	if c.SyncIntervalMs <= 0 {
		c.SyncIntervalMs = d.SyncIntervalMs
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = d.MaxSessions
	}
	if c.SendWindow <= 0 {
		c.SendWindow = d.SendWindow
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = d.AckTimeout
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = d.SessionTimeout
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	return c
}
