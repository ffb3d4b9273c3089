package handlers

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/pkg/api"
)

func TestPeerHandler_List(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	peers := newMockPeerDirectory(
		&models.SyncNode{ID: otherNodeID, Address: "10.0.0.2", Port: 7946, Online: true, PublicKey: key},
		&models.SyncNode{ID: testNodeID, Address: "10.0.0.3", Port: 7946},
	)
	conns := &mockConns{conns: []models.Connection{{
		ID:            "c1",
		NodeID:        otherNodeID,
		TransportKind: "tcp",
		State:         models.ConnConnected,
		Latency:       12 * time.Millisecond,
	}}}
	h := NewPeerHandler(setupTestLogger(), peers, conns)

	w := serve("GET /api/v1/peers", h.List, newRequest(t, http.MethodGet, "/api/v1/peers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	list := decodeBody[api.PeerList](t, w)
	require.Len(t, list.Peers, 2)

	byID := map[string]api.Peer{}
	for _, p := range list.Peers {
		byID[p.ID] = p
	}

	online := byID[otherNodeID]
	assert.True(t, online.Online)
	assert.Equal(t, hex.EncodeToString(key), online.PublicKey)
	assert.Equal(t, crypto.Fingerprint(key), online.Fingerprint)
	require.NotNil(t, online.Connection)
	assert.Equal(t, int64(12), online.Connection.LatencyMs)
	assert.Equal(t, "connected", online.Connection.State)

	unpinned := byID[testNodeID]
	assert.Empty(t, unpinned.PublicKey)
	assert.Nil(t, unpinned.Connection)
}

func TestPeerHandler_Pin(t *testing.T) {
	key := bytes.Repeat([]byte{9}, 32)

	tests := []struct {
		name      string
		nodeID    string
		body      any
		known     bool
		want      int
		wantCalls []string
	}{
		{
			name:      "pin unknown node",
			nodeID:    otherNodeID,
			body:      api.PinRequest{PublicKey: hex.EncodeToString(key)},
			want:      http.StatusOK,
			wantCalls: []string{"pin:" + otherNodeID},
		},
		{
			name:      "repin known node",
			nodeID:    otherNodeID,
			body:      api.PinRequest{PublicKey: hex.EncodeToString(key)},
			known:     true,
			want:      http.StatusOK,
			wantCalls: []string{"repin:" + otherNodeID},
		},
		{
			name:   "invalid node id",
			nodeID: "not-a-uuid",
			body:   api.PinRequest{PublicKey: hex.EncodeToString(key)},
			want:   http.StatusBadRequest,
		},
		{
			name:   "short key",
			nodeID: otherNodeID,
			body:   api.PinRequest{PublicKey: "abcd"},
			want:   http.StatusBadRequest,
		},
		{
			name:   "not hex",
			nodeID: otherNodeID,
			body:   api.PinRequest{PublicKey: "zz"},
			want:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peers := newMockPeerDirectory()
			if tt.known {
				peers.nodes[tt.nodeID] = &models.SyncNode{ID: tt.nodeID, NeedsRepin: true, PublicKey: []byte("old")}
			}
			h := NewPeerHandler(setupTestLogger(), peers, &mockConns{})

			w := serve("POST /api/v1/peers/{id}/pin", h.Pin,
				newRequest(t, http.MethodPost, "/api/v1/peers/"+tt.nodeID+"/pin", tt.body))
			require.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.wantCalls, peers.pinned)

			if tt.want == http.StatusOK {
				p := decodeBody[api.Peer](t, w)
				assert.Equal(t, hex.EncodeToString(key), p.PublicKey)
				assert.False(t, p.NeedsRepin)
			}
		})
	}
}
