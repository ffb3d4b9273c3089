// Package protocol реализует кадры P2P протокола.
//
// Кадр: uvarint длина тела, затем тело. Тело - байт типа сообщения и
// msgpack payload. После handshake тело целиком шифруется ключом канала.
package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize максимальный размер тела кадра
const MaxFrameSize = 16 << 20

var (
	// ErrFrameTooLarge кадр превышает MaxFrameSize
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrEmptyFrame кадр без байта типа
	ErrEmptyFrame = errors.New("empty frame")
)

// MsgType тип сообщения
type MsgType byte

const (
	MsgHello MsgType = iota + 1
	MsgChallenge
	MsgResponse
	MsgManifest
	MsgRequest
	MsgRecord
	MsgAck
	MsgPing
	MsgPong
	MsgBye
)

func (t MsgType) String() string {
	switch t {
	case MsgHello:
		return "HELLO"
	case MsgChallenge:
		return "CHALLENGE"
	case MsgResponse:
		return "RESPONSE"
	case MsgManifest:
		return "MANIFEST"
	case MsgRequest:
		return "REQUEST"
	case MsgRecord:
		return "RECORD"
	case MsgAck:
		return "ACK"
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	case MsgBye:
		return "BYE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// Frame декодированный кадр
type Frame struct {
	Payload []byte
	Type    MsgType
}

// NewFrame кодирует сообщение msgpack
func NewFrame(t MsgType, msg any) (*Frame, error) {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", t, err)
	}
	if len(payload)+1 > MaxFrameSize {
		return nil, fmt.Errorf("%w: %s of %d bytes", ErrFrameTooLarge, t, len(payload))
	}
	return &Frame{Type: t, Payload: payload}, nil
}

// Decode декодирует payload кадра в msg
func (f *Frame) Decode(msg any) error {
	if err := msgpack.Unmarshal(f.Payload, msg); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", f.Type, err)
	}
	return nil
}

// Size размер тела кадра
func (f *Frame) Size() int {
	return len(f.Payload) + 1
}

func (f *Frame) body() []byte {
	body := make([]byte, 0, f.Size())
	body = append(body, byte(f.Type))
	return append(body, f.Payload...)
}

func parseBody(body []byte) (*Frame, error) {
	if len(body) == 0 {
		return nil, ErrEmptyFrame
	}
	return &Frame{Type: MsgType(body[0]), Payload: body[1:]}, nil
}
