package conn

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/metrics"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/internal/transport"
	"github.com/iudanet/peersync/pkg/api"
)

func TestBuildTranscript(t *testing.T) {
	d := &api.Hello{NodeID: "d", Ephemeral: []byte{1}, PublicKey: []byte{2}}
	l := &api.Hello{NodeID: "l", Ephemeral: []byte{3}, PublicKey: []byte{4}}

	assert.Equal(t, buildTranscript(d, l), buildTranscript(d, l))
	assert.NotEqual(t, buildTranscript(d, l), buildTranscript(l, d))

	// префиксы длины исключают склейку полей
	a := &api.Hello{NodeID: "ab", Ephemeral: []byte{1}, PublicKey: []byte{2}}
	b := &api.Hello{NodeID: "a", Ephemeral: []byte{'b', 1}, PublicKey: []byte{2}}
	assert.NotEqual(t, buildTranscript(a, l), buildTranscript(b, l))
}

func TestHandshake_WrongSigningKeyRejected(t *testing.T) {
	network := transport.NewMemory()
	a := newTestNode(t, network, nil, nil)
	b := newTestNode(t, network, nil, nil)
	b.serve(t, network, "node-b")
	a.know(t, b, "node-b", nil)

	// a объявляет свой ключ, но подписывает чужим
	other, err := a.mgr.signer.(interface {
		GenerateKeyPair(string) (*models.EncryptionKey, error)
	}).GenerateKeyPair(models.AlgorithmEd25519)
	require.NoError(t, err)
	a.mgr.local.SigningKeyID = other.ID

	before := testutil.ToFloat64(metrics.HandshakeFailures.WithLabelValues("signature"))

	_, err = a.mgr.Connect(context.Background(), b.id)
	require.Error(t, err)

	assert.Nil(t, b.mgr.Peer(a.id))
	_, err = b.reg.Get(a.id)
	assert.ErrorIs(t, err, syncerr.ErrUnknownNode, "key must not be pinned after failed handshake")
	assert.Greater(t, testutil.ToFloat64(metrics.HandshakeFailures.WithLabelValues("signature")), before)
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{syncerr.Authentication("handshake", syncerr.ErrKeyMismatch), "key_mismatch"},
		{syncerr.Authentication("handshake", syncerr.ErrUntrustedNode), "untrusted"},
		{syncerr.Authentication("handshake", fmt.Errorf("%w: %q", ErrAccountMismatch, "bob")), "account"},
		{syncerr.Authentication("handshake", ErrIncompatible), "incompatible"},
		{syncerr.Authentication("handshake", syncerr.ErrInvalidSignature), "signature"},
		{syncerr.Network("handshake", fmt.Errorf("reset")), "network"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, failureReason(tt.err))
		})
	}
}
