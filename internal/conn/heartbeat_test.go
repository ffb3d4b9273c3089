package conn

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/transport"
)

func TestHeartbeat_PongUpdatesLiveness(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	network := transport.NewMemory()
	a := newTestNode(t, network, clk, nil)
	b := newTestNode(t, network, clk, nil)
	b.serve(t, network, "node-b")
	a.know(t, b, "node-b", nil)

	p, err := a.mgr.Connect(ctx, b.id)
	require.NoError(t, err)

	for range 5 {
		a.mgr.heartbeatTick(ctx)
		require.Eventually(t, func() bool {
			return p.Snapshot().LastPing.Equal(clk.Now())
		}, 5*time.Second, 10*time.Millisecond)
		clk.Add(time.Second)
	}

	assert.NotNil(t, a.mgr.Peer(b.id))
	p.mu.Lock()
	assert.Zero(t, p.missed)
	p.mu.Unlock()
}

func TestHeartbeat_SilentNodeGoesOffline(t *testing.T) {
	ctx := context.Background()
	a := newTestNode(t, transport.NewMemory(), clock.NewMock(), nil)

	remoteID := uuid.NewString()
	require.NoError(t, a.reg.Register(ctx, &models.SyncNode{ID: remoteID, Address: "10.0.0.9", Port: 7946}))

	p := pipePeer(t, a.mgr, remoteID, a.id)
	adopt(a.mgr, p)
	require.True(t, a.reg.IsOnline(remoteID))

	// три тика: PONG не пришел на два PING, соединение еще живо
	for range 3 {
		a.mgr.heartbeatTick(ctx)
	}
	assert.False(t, p.Closed())
	assert.True(t, a.reg.IsOnline(remoteID))

	// третий подряд пропуск
	a.mgr.heartbeatTick(ctx)
	// detach снимает узел и метку online после закрытия, ждем всего вместе
	require.Eventually(t, func() bool {
		return p.Closed() && a.mgr.Peer(remoteID) == nil &&
			!a.reg.IsOnline(remoteID) &&
			a.mgr.State(remoteID) == models.ConnDisconnected
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHeartbeat_StopsOnCancel(t *testing.T) {
	a := newTestNode(t, transport.NewMemory(), clock.NewMock(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.mgr.Heartbeat(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat did not stop")
	}
}
