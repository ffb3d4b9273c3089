package protocol

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/crypto"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/pkg/api"
)

func TestCodec_PlainFrames(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec(&buf)

	require.NoError(t, c.Send(MsgPing, api.Ping{Seq: 7, SentAt: 42}))
	require.NoError(t, c.Send(MsgBye, api.Bye{Reason: "shutdown"}))
	written := c.BytesWritten()
	assert.Equal(t, int64(buf.Len()), written)

	f, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, MsgPing, f.Type)

	var ping api.Ping
	require.NoError(t, f.Decode(&ping))
	assert.Equal(t, uint64(7), ping.Seq)
	assert.Equal(t, int64(42), ping.SentAt)

	f, err = c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, MsgBye, f.Type)

	var bye api.Bye
	require.NoError(t, f.Decode(&bye))
	assert.Equal(t, "shutdown", bye.Reason)

	assert.Equal(t, written, c.BytesRead())

	_, err = c.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCodec_FrameLayout(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec(&buf)

	require.NoError(t, c.Send(MsgChallenge, api.Challenge{Nonce: []byte{1, 2, 3}}))

	raw := buf.Bytes()
	length, n, err := varint.FromUvarint(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw)-n, int(length))
	assert.Equal(t, byte(MsgChallenge), raw[n])
}

func TestCodec_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(varint.ToUvarint(MaxFrameSize + 1024))
	c := NewCodec(&buf)

	_, err := c.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestCodec_EmptyFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(varint.ToUvarint(0))
	c := NewCodec(&buf)

	_, err := c.ReadFrame()
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestNewFrame_TooLarge(t *testing.T) {
	_, err := NewFrame(MsgRecord, api.RecordMessage{Record: api.WireRecord{Payload: make([]byte, MaxFrameSize)}})
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func newChannelPair(t *testing.T) (*crypto.Channel, *crypto.Channel) {
	t.Helper()

	shared := bytes.Repeat([]byte{0x42}, 32)
	transcript := []byte("transcript")

	dk, err := crypto.DeriveChannelKeys(shared, transcript, true)
	require.NoError(t, err)
	lk, err := crypto.DeriveChannelKeys(shared, transcript, false)
	require.NoError(t, err)

	d, err := crypto.NewChannel(dk)
	require.NoError(t, err)
	l, err := crypto.NewChannel(lk)
	require.NoError(t, err)
	return d, l
}

func TestCodec_SecuredOverPipe(t *testing.T) {
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	ca, cb := NewCodec(a), NewCodec(b)
	chD, chL := newChannelPair(t)
	ca.Secure(chD)
	cb.Secure(chL)
	assert.True(t, ca.Secured())

	record := &models.SyncRecord{
		ID:          "note-1",
		Type:        "note",
		NodeID:      "node-a",
		ContentHash: "abc",
		Payload:     []byte("ciphertext"),
		Signature:   []byte("sig"),
		Version:     3,
		Timestamp:   1000,
		Encrypted:   true,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- ca.Send(MsgRecord, api.RecordMessage{SessionID: "s1", Seq: 1, Record: ToWireRecord(record)})
	}()

	f, err := cb.ReadFrame()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, MsgRecord, f.Type)

	var msg api.RecordMessage
	require.NoError(t, f.Decode(&msg))
	assert.Equal(t, "s1", msg.SessionID)
	assert.Equal(t, record, FromWireRecord(msg.Record))
}

func TestCodec_SecuredRejectsTampering(t *testing.T) {
	var wire bytes.Buffer
	writer := NewCodec(&wire)
	chD, chL := newChannelPair(t)
	writer.Secure(chD)

	require.NoError(t, writer.Send(MsgPing, api.Ping{Seq: 1}))

	raw := wire.Bytes()
	raw[len(raw)-1] ^= 0x01

	reader := NewCodec(bytes.NewBuffer(raw))
	reader.Secure(chL)

	_, err := reader.ReadFrame()
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrAuthenticationFailed))
}

func TestCodec_SecuredRejectsPlainPeer(t *testing.T) {
	var wire bytes.Buffer
	require.NoError(t, NewCodec(&wire).Send(MsgPing, api.Ping{Seq: 1}))

	_, chL := newChannelPair(t)
	reader := NewCodec(&wire)
	reader.Secure(chL)

	_, err := reader.ReadFrame()
	assert.Error(t, err)
}

func TestManifestConversion(t *testing.T) {
	m := models.Manifest{
		"a": {Version: 1, ContentHash: "h1"},
		"b": {Version: 4, ContentHash: "h2"},
	}
	assert.Equal(t, m, FromWireManifest(ToWireManifest(m)))
	assert.Empty(t, FromWireManifest(nil))
}

func TestMsgType_String(t *testing.T) {
	assert.Equal(t, "HELLO", MsgHello.String())
	assert.Equal(t, "BYE", MsgBye.String())
	assert.Equal(t, "UNKNOWN(99)", MsgType(99).String())
}
