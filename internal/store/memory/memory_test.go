package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
)

func newRecord(id string, version uint64, hash string) *models.SyncRecord {
	return &models.SyncRecord{
		ID:          id,
		Type:        "note",
		NodeID:      "node-a",
		ContentHash: hash,
		Payload:     []byte(hash),
		Version:     version,
	}
}

func TestStorage_Records(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	_, err := s.GetRecord(ctx, "notes/a")
	require.ErrorIs(t, err, store.ErrRecordNotFound)

	require.NoError(t, s.SaveRecord(ctx, newRecord("notes/b", 1, "bbb")))
	require.NoError(t, s.SaveRecord(ctx, newRecord("notes/a", 1, "aaa")))
	require.NoError(t, s.SaveRecord(ctx, newRecord("notes/a", 2, "ccc")))

	rec, err := s.GetRecord(ctx, "notes/a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Version)
	assert.Equal(t, "ccc", rec.ContentHash)

	// возвращается копия
	rec.Payload[0] = 'x'
	again, err := s.GetRecord(ctx, "notes/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("ccc"), again.Payload)

	list, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "notes/a", list[0].ID)
	assert.Equal(t, "notes/b", list[1].ID)

	manifest, err := s.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Manifest{
		"notes/a": {ContentHash: "ccc", Version: 2},
		"notes/b": {ContentHash: "bbb", Version: 1},
	}, manifest)

	size, err := s.LogSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestStorage_PruneLog(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(func() time.Time { return now })

	require.NoError(t, s.SaveRecord(ctx, newRecord("a", 1, "h1")))
	now = now.Add(48 * time.Hour)
	require.NoError(t, s.SaveRecord(ctx, newRecord("a", 2, "h2")))

	removed, err := s.PruneLog(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	size, err := s.LogSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	// текущее состояние не затрагивается
	rec, err := s.GetRecord(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Version)
}

func TestStorage_Audit(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	old := time.UnixMilli(1000)
	recent := time.UnixMilli(5000)

	payload := []byte("losing payload")
	require.NoError(t, s.SaveAudit(ctx, &models.AuditEntry{ID: "1", RecordID: "a", Reason: models.AuditConflict, LoserPayload: payload, CreatedAt: old}))
	require.NoError(t, s.SaveAudit(ctx, &models.AuditEntry{ID: "2", RecordID: "b", Reason: models.AuditRejectedSignature, CreatedAt: recent}))
	payload[0] = 'X'

	entries, err := s.ListAudit(ctx, "a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("losing payload"), entries[0].LoserPayload)

	all, err := s.ListAudit(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	removed, err := s.PruneAudit(ctx, time.UnixMilli(2000))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err = s.ListAudit(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2", all[0].ID)
}

func TestStorage_Sessions(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	base := time.UnixMilli(1_000_000)

	_, err := s.GetSession(ctx, "missing")
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, s.SaveSession(ctx, &models.SyncSession{
			ID:        id,
			NodeID:    "node-b",
			State:     models.SessionCompleted,
			StartTime: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	session, err := s.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.State)

	latest, err := s.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "s3", latest[0].ID)
	assert.Equal(t, "s2", latest[1].ID)

	all, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStorage_PeersAndMetadata(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	_, err := s.GetPeer(ctx, "node-b")
	require.ErrorIs(t, err, store.ErrPeerNotFound)

	require.NoError(t, s.SavePeer(ctx, &models.SyncNode{ID: "node-c", Address: "10.0.0.3", Port: 7946}))
	require.NoError(t, s.SavePeer(ctx, &models.SyncNode{ID: "node-b", Address: "10.0.0.2", Port: 7946}))

	peers, err := s.ListPeers(ctx)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "node-b", peers[0].ID)

	require.NoError(t, s.DeletePeer(ctx, "node-b"))
	_, err = s.GetPeer(ctx, "node-b")
	require.ErrorIs(t, err, store.ErrPeerNotFound)

	last, err := s.GetLastSync(ctx, "node-c")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	at := time.UnixMilli(42_000)
	require.NoError(t, s.SaveLastSync(ctx, "node-c", at))
	last, err = s.GetLastSync(ctx, "node-c")
	require.NoError(t, err)
	assert.Equal(t, at, last)
}

func TestStorage_Identity(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	_, err := s.GetIdentity(ctx)
	require.ErrorIs(t, err, store.ErrIdentityNotFound)

	require.NoError(t, s.SaveIdentity(ctx, &models.NodeIdentity{NodeID: "node-a", Account: "alice_home"}))
	id, err := s.GetIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-a", id.NodeID)
	assert.Equal(t, "alice_home", id.Account)
}
