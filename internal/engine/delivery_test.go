package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/internal/transport"
)

// brokenStore не может применить одну запись, ACK на нее не уходит
type brokenStore struct {
	engine.Store
	id string
}

func (b *brokenStore) ApplyRemote(ctx context.Context, senderID string, records []*models.SyncRecord) (*store.ApplyResult, error) {
	for _, r := range records {
		if r.ID == b.id {
			return nil, syncerr.Storage("apply remote", errors.New("disk full")).WithRecord(r.ID)
		}
	}
	return b.Store.ApplyRemote(ctx, senderID, records)
}

// slowStore один раз задерживает чтение записи
type slowStore struct {
	engine.Store
	id    string
	delay time.Duration
	once  sync.Once
}

func (s *slowStore) Get(ctx context.Context, id string) (*models.SyncRecord, bool, error) {
	if id == s.id {
		s.once.Do(func() { time.Sleep(s.delay) })
	}
	return s.Store.Get(ctx, id)
}

func TestSync_UnackedRecordIsRetriedThenReported(t *testing.T) {
	network := transport.NewMemory()
	a := newTestPeer(t, network, peerOptions{config: func(c *engine.SyncConfig) {
		c.AckTimeout = 200 * time.Millisecond
		c.RecordRetries = 2
	}})
	b := newTestPeer(t, network, peerOptions{wrap: func(s engine.Store) engine.Store {
		return &brokenStore{Store: s, id: "bad"}
	}})
	a.know(t, b)

	for i := range 4 {
		a.put(t, fmt.Sprintf("note-%02d", i), fmt.Sprintf("payload %d", i))
	}
	a.put(t, "bad", "never acked")

	s := syncOnce(t, a, b)
	assert.Equal(t, models.SessionCompleted, s.State)
	assert.True(t, s.PartiallySynced())
	assert.Equal(t, int64(4), s.RecordsTransferred)
	assert.Contains(t, s.Warnings, models.WarningDigestMismatch)

	require.NotEmpty(t, s.Errors)
	for _, e := range s.Errors {
		assert.Equal(t, "bad", e.RecordID)
		assert.Equal(t, "network", e.Kind)
	}

	for i := range 4 {
		assert.Equal(t, fmt.Sprintf("payload %d", i), b.payload(t, fmt.Sprintf("note-%02d", i)))
	}
	_, ok, err := b.store.Get(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSync_PushWaitsForBackpressure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	network := transport.NewMemory()
	a := newTestPeer(t, network, peerOptions{config: func(c *engine.SyncConfig) {
		c.BackpressureThreshold = 1
	}})
	b := newTestPeer(t, network, peerOptions{})
	a.know(t, b)

	for i := range 3 {
		a.put(t, fmt.Sprintf("note-%02d", i), fmt.Sprintf("payload %d", i))
	}

	release := a.store.Track(1)
	started, err := a.engine.Begin(ctx, b.id)
	require.NoError(t, err)
	require.Len(t, started, 1)

	require.Never(t, func() bool {
		_, ok, err := b.store.Get(ctx, "note-00")
		return err != nil || ok
	}, 300*time.Millisecond, 20*time.Millisecond)
	assert.Equal(t, int64(1), a.store.Pending())

	release()

	final, err := a.engine.Wait(ctx, started[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, final.State)
	assert.Empty(t, final.Errors)
	assert.Equal(t, int64(3), final.RecordsTransferred)
	for i := range 3 {
		assert.Equal(t, fmt.Sprintf("payload %d", i), b.payload(t, fmt.Sprintf("note-%02d", i)))
	}
}

func TestSync_SlowReplyIsRequestedAgain(t *testing.T) {
	network := transport.NewMemory()
	a := newTestPeer(t, network, peerOptions{config: func(c *engine.SyncConfig) {
		c.AckTimeout = 300 * time.Millisecond
	}})
	b := newTestPeer(t, network, peerOptions{wrap: func(s engine.Store) engine.Store {
		return &slowStore{Store: s, id: "note-00", delay: 600 * time.Millisecond}
	}})
	a.know(t, b)

	for i := range 5 {
		b.put(t, fmt.Sprintf("note-%02d", i), fmt.Sprintf("payload %d", i))
	}

	s := syncOnce(t, a, b)
	assert.Equal(t, models.SessionCompleted, s.State)
	assert.Empty(t, s.Errors)
	assert.Empty(t, s.Warnings)
	assert.Equal(t, int64(5), s.RecordsTransferred)
	assert.Equal(t, a.digest(t), b.digest(t))
	for i := range 5 {
		assert.Equal(t, fmt.Sprintf("payload %d", i), a.payload(t, fmt.Sprintf("note-%02d", i)))
	}
}

func TestSync_UnansweredRequestIsReported(t *testing.T) {
	network := transport.NewMemory()
	a := newTestPeer(t, network, peerOptions{config: func(c *engine.SyncConfig) {
		c.AckTimeout = 200 * time.Millisecond
		c.RecordRetries = 1
	}})
	// ответ задерживается дольше всех попыток запроса, но не дольше обмена манифестами
	b := newTestPeer(t, network, peerOptions{wrap: func(s engine.Store) engine.Store {
		return &slowStore{Store: s, id: "note-00", delay: 600 * time.Millisecond}
	}})
	a.know(t, b)
	b.put(t, "note-00", "slow")

	s := syncOnce(t, a, b)

	// сессия не падает, неполученная запись попадает в Errors,
	// следующий проход забирает ее
	assert.Equal(t, models.SessionCompleted, s.State)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "note-00", s.Errors[0].RecordID)
	assert.Equal(t, "network", s.Errors[0].Kind)
	assert.Equal(t, int64(1), s.RecordsTransferred)
	assert.Equal(t, "slow", a.payload(t, "note-00"))
}

func TestEngine_SessionsWithoutStorage(t *testing.T) {
	ctx := context.Background()
	network := transport.NewMemory()
	a := newTestPeer(t, network, peerOptions{noHistory: true})
	b := newTestPeer(t, network, peerOptions{})
	a.know(t, b)
	a.put(t, "x", "1")

	first := syncOnce(t, a, b)
	second := syncOnce(t, a, b)
	assert.Equal(t, models.SessionCompleted, first.State)
	assert.Equal(t, models.SessionCompleted, second.State)

	got, err := a.engine.Session(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, got.State)

	list, err := a.engine.Sessions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// завершенная сессия больше не активна
	assert.ErrorIs(t, a.engine.Cancel(first.ID), store.ErrSessionNotFound)
}

func TestEngine_UpdateConfigAppliesStoragePolicyAtOnce(t *testing.T) {
	network := transport.NewMemory()
	a := newTestPeer(t, network, peerOptions{})

	assert.True(t, a.put(t, "before", "1").Encrypted)

	cfg := a.engine.Config()
	cfg.EncryptionEnabled = false
	a.engine.UpdateConfig(cfg)

	assert.False(t, a.engine.Config().EncryptionEnabled)
	assert.False(t, a.put(t, "after", "2").Encrypted)
	assert.Equal(t, "1", a.payload(t, "before"))
	assert.Equal(t, "2", a.payload(t, "after"))
}
