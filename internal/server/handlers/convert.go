package handlers

import (
	"encoding/hex"

	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/pkg/api"
)

func toAPIRecord(r *models.SyncRecord, payload []byte) api.Record {
	return api.Record{
		ID:          r.ID,
		Type:        r.Type,
		NodeID:      r.NodeID,
		ContentHash: r.ContentHash,
		Payload:     payload,
		Version:     r.Version,
		Timestamp:   r.Timestamp,
		Encrypted:   r.Encrypted,
		Deleted:     r.Deleted,
	}
}

func toAPIConnection(c models.Connection) api.Connection {
	return api.Connection{
		ID:                c.ID,
		NodeID:            c.NodeID,
		TransportKind:     c.TransportKind,
		State:             string(c.State),
		Capabilities:      c.Capabilities,
		LatencyMs:         c.Latency.Milliseconds(),
		BandwidthEstimate: c.BandwidthEstimate,
		LastPing:          c.LastPing,
		Initiator:         c.Initiator,
	}
}

func toAPIPeer(n *models.SyncNode, conn *models.Connection) api.Peer {
	p := api.Peer{
		ID:           n.ID,
		Address:      n.Address,
		Port:         n.Port,
		Capabilities: n.Capabilities,
		Online:       n.Online,
		NeedsRepin:   n.NeedsRepin,
		LastSeen:     n.LastSeen,
		PinnedAt:     n.PinnedAt,
		DataDigest:   n.DataDigest,
	}
	if n.IsPinned() {
		p.PublicKey = hex.EncodeToString(n.PublicKey)
		p.Fingerprint = crypto.Fingerprint(n.PublicKey)
	}
	if conn != nil {
		c := toAPIConnection(*conn)
		p.Connection = &c
	}
	return p
}

func toAPIPeers(nodes []*models.SyncNode, conns []models.Connection) []api.Peer {
	byNode := make(map[string]*models.Connection, len(conns))
	for i := range conns {
		byNode[conns[i].NodeID] = &conns[i]
	}

	result := make([]api.Peer, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, toAPIPeer(n, byNode[n.ID]))
	}
	return result
}

func toAPISession(s *models.SyncSession) api.Session {
	errs := make([]api.SessionError, 0, len(s.Errors))
	for _, e := range s.Errors {
		errs = append(errs, api.SessionError{
			Time:     e.Time,
			RecordID: e.RecordID,
			Kind:     e.Kind,
			Message:  e.Message,
		})
	}
	return api.Session{
		ID:                 s.ID,
		NodeID:             s.NodeID,
		State:              string(s.State),
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		ResumedFrom:        s.ResumedFrom,
		Errors:             errs,
		Warnings:           s.Warnings,
		BytesTransferred:   s.BytesTransferred,
		RecordsTransferred: s.RecordsTransferred,
		PartiallySynced:    s.PartiallySynced(),
	}
}

func toAPISessions(sessions []*models.SyncSession) []api.Session {
	result := make([]api.Session, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, toAPISession(s))
	}
	return result
}

func toAPIAudit(e *models.AuditEntry) api.AuditEntry {
	return api.AuditEntry{
		ID:           e.ID,
		RecordID:     e.RecordID,
		Reason:       string(e.Reason),
		WinnerHash:   e.WinnerHash,
		LoserHash:    e.LoserHash,
		LoserNodeID:  e.LoserNodeID,
		SenderNodeID: e.SenderNodeID,
		Detail:       e.Detail,
		Version:      e.Version,
		CreatedAt:    e.CreatedAt,
	}
}

func toAPISettings(c engine.SyncConfig) api.SyncSettings {
	return api.SyncSettings{
		AutoSync:          c.AutoSync,
		SyncIntervalMs:    c.SyncIntervalMs,
		EncryptionEnabled: c.EncryptionEnabled,
		P2PEnabled:        c.P2PEnabled,
		MaxConnections:    c.MaxConnections,
		DataRetentionDays: c.DataRetentionDays,
	}
}

// applySettings переносит изменяемые поля, остальные настройки движка сохраняются
func applySettings(c engine.SyncConfig, s api.SyncSettings) engine.SyncConfig {
	c.AutoSync = s.AutoSync
	c.SyncIntervalMs = s.SyncIntervalMs
	c.EncryptionEnabled = s.EncryptionEnabled
	c.P2PEnabled = s.P2PEnabled
	c.MaxConnections = s.MaxConnections
	c.DataRetentionDays = s.DataRetentionDays
	return c
}
