package protocol

import (
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/pkg/api"
)

// ToWireRecord переводит запись в формат протокола
func ToWireRecord(r *models.SyncRecord) api.WireRecord {
	return api.WireRecord{
		ID:          r.ID,
		Type:        r.Type,
		NodeID:      r.NodeID,
		ContentHash: r.ContentHash,
		Payload:     r.Payload,
		Signature:   r.Signature,
		Version:     r.Version,
		Timestamp:   r.Timestamp,
		Encrypted:   r.Encrypted,
		Deleted:     r.Deleted,
	}
}

// FromWireRecord переводит запись протокола в модель
func FromWireRecord(r api.WireRecord) *models.SyncRecord {
	return &models.SyncRecord{
		ID:          r.ID,
		Type:        r.Type,
		NodeID:      r.NodeID,
		ContentHash: r.ContentHash,
		Payload:     r.Payload,
		Signature:   r.Signature,
		Version:     r.Version,
		Timestamp:   r.Timestamp,
		Encrypted:   r.Encrypted,
		Deleted:     r.Deleted,
	}
}

// ToWireManifest переводит манифест в формат протокола
func ToWireManifest(m models.Manifest) map[string]api.ManifestEntry {
	out := make(map[string]api.ManifestEntry, len(m))
	for id, e := range m {
		out[id] = api.ManifestEntry{Version: e.Version, ContentHash: e.ContentHash}
	}
	return out
}

// FromWireManifest переводит манифест протокола в модель
func FromWireManifest(m map[string]api.ManifestEntry) models.Manifest {
	out := make(models.Manifest, len(m))
	for id, e := range m {
		out[id] = models.ManifestEntry{Version: e.Version, ContentHash: e.ContentHash}
	}
	return out
}
