package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
)

// createTestStorage создает временное хранилище для тестов
func createTestStorage(t *testing.T) *Storage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func createTestRecord(id string, version uint64, hash string) *models.SyncRecord {
	return &models.SyncRecord{
		ID:          id,
		Type:        "note",
		NodeID:      "node-a",
		ContentHash: hash,
		Payload:     []byte("ciphertext-" + id),
		Signature:   []byte("sig"),
		Version:     version,
		Timestamp:   1000,
		Encrypted:   true,
	}
}

func TestNew_Success(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	s, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, s.Close())
	}()

	// Проверяем что файл БД действительно создан
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	// Проверяем, что бакеты существуют
	err = s.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketRecords, bucketRecordLog, bucketPeers, bucketIdentity, bucketMetadata} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "db"))
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestClose(t *testing.T) {
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Nil(t, s.db)

	// Второй вызов Close не должен падать
	require.NoError(t, s.Close())

	_, err = s.GetRecord(context.Background(), "x")
	assert.ErrorIs(t, err, store.ErrStorageClosed)
}

func TestStorage_Records(t *testing.T) {
	ctx := context.Background()
	s := createTestStorage(t)

	_, err := s.GetRecord(ctx, "id1")
	require.ErrorIs(t, err, store.ErrRecordNotFound)

	require.NoError(t, s.SaveRecord(ctx, createTestRecord("id2", 1, "bb")))
	require.NoError(t, s.SaveRecord(ctx, createTestRecord("id1", 1, "aa")))
	require.NoError(t, s.SaveRecord(ctx, createTestRecord("id1", 2, "cc")))

	got, err := s.GetRecord(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, createTestRecord("id1", 2, "cc"), got)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "id1", records[0].ID, "записи должны быть отсортированы по id")
	assert.Equal(t, "id2", records[1].ID)

	m, err := s.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Manifest{
		"id1": {Version: 2, ContentHash: "cc"},
		"id2": {Version: 1, ContentHash: "bb"},
	}, m)

	n, err := s.LogSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "журнал хранит все версии")
}

func TestStorage_PruneLog(t *testing.T) {
	ctx := context.Background()
	s := createTestStorage(t)

	require.NoError(t, s.SaveRecord(ctx, createTestRecord("id1", 1, "aa")))
	require.NoError(t, s.SaveRecord(ctx, createTestRecord("id1", 2, "bb")))

	// Ничего не старше часа назад
	removed, err := s.PruneLog(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	removed, err = s.PruneLog(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := s.LogSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Текущее состояние не затрагивается
	got, err := s.GetRecord(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
}

func TestStorage_Peers(t *testing.T) {
	ctx := context.Background()
	s := createTestStorage(t)

	_, err := s.GetPeer(ctx, "node-b")
	require.ErrorIs(t, err, store.ErrPeerNotFound)

	node := &models.SyncNode{
		ID:           "node-b",
		Address:      "10.0.0.2",
		Port:         7400,
		PublicKey:    []byte{1, 2, 3},
		Capabilities: []string{models.CapabilitySync},
		PinnedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SavePeer(ctx, node))
	require.NoError(t, s.SavePeer(ctx, &models.SyncNode{ID: "node-a"}))

	got, err := s.GetPeer(ctx, "node-b")
	require.NoError(t, err)
	assert.Equal(t, node.PublicKey, got.PublicKey)
	assert.Equal(t, node.PinnedAt, got.PinnedAt)
	assert.Equal(t, "10.0.0.2:7400", got.Addr())

	peers, err := s.ListPeers(ctx)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "node-a", peers[0].ID)

	require.NoError(t, s.DeletePeer(ctx, "node-a"))
	peers, err = s.ListPeers(ctx)
	require.NoError(t, err)
	assert.Len(t, peers, 1)
}

func TestStorage_Identity(t *testing.T) {
	ctx := context.Background()
	s := createTestStorage(t)

	_, err := s.GetIdentity(ctx)
	require.ErrorIs(t, err, store.ErrIdentityNotFound)

	identity := &models.NodeIdentity{
		NodeID:        "node-a",
		Account:       "alice",
		PublicKey:     []byte{1, 2, 3},
		EncryptedSeed: []byte{4, 5, 6},
		Salt:          []byte{7, 8, 9},
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveIdentity(ctx, identity))

	got, err := s.GetIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestStorage_LastSync(t *testing.T) {
	ctx := context.Background()
	s := createTestStorage(t)

	at, err := s.GetLastSync(ctx, "node-b")
	require.NoError(t, err)
	assert.True(t, at.IsZero(), "без синхронизации возвращается нулевое время")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveLastSync(ctx, "node-b", now))

	at, err = s.GetLastSync(ctx, "node-b")
	require.NoError(t, err)
	assert.True(t, now.Equal(at))
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, s.SaveRecord(ctx, createTestRecord("id1", 1, "aa")))
	require.NoError(t, s.SavePeer(ctx, &models.SyncNode{ID: "node-b", PublicKey: []byte{1}}))
	require.NoError(t, s.Close())

	s, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.GetRecord(ctx, "id1")
	require.NoError(t, err)
	peer, err := s.GetPeer(ctx, "node-b")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, peer.PublicKey)
}
