package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
)

// setupTestStorage создает in-memory хранилище для тестов
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestNew_CreatesTables(t *testing.T) {
	s := setupTestStorage(t)

	for _, table := range []string{"audit_log", "sessions"} {
		var name string
		err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
		assert.Equal(t, table, name)
	}
}

func TestNew_FileDatabase(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	s, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, s.SaveAudit(ctx, &models.AuditEntry{
		ID:        "a1",
		RecordID:  "note-1",
		Version:   2,
		Reason:    models.AuditConflict,
		LoserHash: "bbb",
		CreatedAt: time.UnixMilli(1000),
	}))
	require.NoError(t, s.Close())

	// Повторное открытие: миграции не должны падать, данные сохраняются
	s, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	entries, err := s.ListAudit(ctx, "note-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a1", entries[0].ID)
}

func TestAudit_SaveAndList(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000).UTC()
	entries := []*models.AuditEntry{
		{
			ID:           "a1",
			RecordID:     "note-1",
			Version:      3,
			Reason:       models.AuditConflict,
			WinnerHash:   "aaa",
			LoserHash:    "bbb",
			LoserNodeID:  "node-b",
			SenderNodeID: "node-b",
			LoserPayload: []byte("loser"),
			CreatedAt:    base,
		},
		{
			ID:           "a2",
			RecordID:     "note-2",
			Version:      1,
			Reason:       models.AuditRejectedSignature,
			LoserHash:    "ccc",
			LoserNodeID:  "node-c",
			SenderNodeID: "node-b",
			Detail:       "invalid signature",
			CreatedAt:    base.Add(time.Second),
		},
		{
			ID:          "a3",
			RecordID:    "note-1",
			Version:     4,
			Reason:      models.AuditRejectedCrypto,
			LoserHash:   "ddd",
			LoserNodeID: "node-b",
			CreatedAt:   base.Add(2 * time.Second),
		},
	}
	for _, e := range entries {
		require.NoError(t, s.SaveAudit(ctx, e))
	}

	t.Run("by record", func(t *testing.T) {
		got, err := s.ListAudit(ctx, "note-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a1", got[0].ID)
		assert.Equal(t, "a3", got[1].ID)

		assert.Equal(t, models.AuditConflict, got[0].Reason)
		assert.Equal(t, "aaa", got[0].WinnerHash)
		assert.Equal(t, []byte("loser"), got[0].LoserPayload)
		assert.Equal(t, uint64(3), got[0].Version)
		assert.True(t, base.Equal(got[0].CreatedAt))
	})

	t.Run("all", func(t *testing.T) {
		got, err := s.ListAudit(ctx, "")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "invalid signature", got[1].Detail)
	})

	t.Run("unknown record", func(t *testing.T) {
		got, err := s.ListAudit(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := s.SaveAudit(ctx, entries[0])
		assert.Error(t, err)
	})
}

func TestAudit_Prune(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	for i, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, s.SaveAudit(ctx, &models.AuditEntry{
			ID:        id,
			RecordID:  "note",
			Reason:    models.AuditConflict,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	n, err := s.PruneAudit(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.ListAudit(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a3", got[0].ID)
}

func TestSessions_SaveAndGet(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	start := time.UnixMilli(1_700_000_000_000).UTC()
	session := &models.SyncSession{
		ID:        "s1",
		NodeID:    "node-b",
		State:     models.SessionSyncing,
		StartTime: start,
	}
	require.NoError(t, s.SaveSession(ctx, session))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionSyncing, got.State)
	assert.True(t, got.EndTime.IsZero())
	assert.Empty(t, got.Errors)

	// Обновление той же сессии
	session.State = models.SessionFailed
	session.EndTime = start.Add(time.Minute)
	session.RecordsTransferred = 5
	session.BytesTransferred = 1024
	session.Errors = []models.SessionError{
		{RecordID: "note-1", Kind: "crypto", Message: "invalid signature", Time: start},
	}
	session.Warnings = []string{models.WarningDigestMismatch}
	require.NoError(t, s.SaveSession(ctx, session))

	got, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionFailed, got.State)
	assert.True(t, start.Add(time.Minute).Equal(got.EndTime))
	assert.Equal(t, int64(5), got.RecordsTransferred)
	assert.Equal(t, int64(1024), got.BytesTransferred)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "note-1", got.Errors[0].RecordID)
	assert.Equal(t, []string{models.WarningDigestMismatch}, got.Warnings)
}

func TestSessions_GetNotFound(t *testing.T) {
	s := setupTestStorage(t)

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSessions_List(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, s.SaveSession(ctx, &models.SyncSession{
			ID:        id,
			NodeID:    "node-b",
			State:     models.SessionCompleted,
			StartTime: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	tests := []struct {
		name  string
		want  []string
		limit int
	}{
		{name: "no limit", limit: 0, want: []string{"s3", "s2", "s1"}},
		{name: "limit 2", limit: 2, want: []string{"s3", "s2"}},
		{name: "limit above size", limit: 10, want: []string{"s3", "s2", "s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListSessions(ctx, tt.limit)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, session := range got {
				ids = append(ids, session.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
