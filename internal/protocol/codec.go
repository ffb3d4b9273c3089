package protocol

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/multiformats/go-varint"
)

// Sealer шифрует тела кадров после handshake
type Sealer interface {
	Seal(plaintext []byte) []byte
	Open(ciphertext []byte) ([]byte, error)
}

// sealOverhead запас на тег AEAD при проверке размера
const sealOverhead = 16

// Codec читает и пишет кадры поверх потока.
// WriteFrame безопасен для конкурентного вызова, ReadFrame вызывается из одной горутины.
type Codec struct {
	r      *bufio.Reader
	w      io.Writer
	sealer Sealer

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64

	wmu sync.Mutex
}

// NewCodec создает Codec поверх rw
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		r: bufio.NewReader(rw),
		w: rw,
	}
}

// Secure включает шифрование кадров. Вызывается после handshake,
// до того как codec начнут использовать несколько горутин.
func (c *Codec) Secure(s Sealer) {
	c.wmu.Lock()
	c.sealer = s
	c.wmu.Unlock()
}

// Secured сообщает, включено ли шифрование
func (c *Codec) Secured() bool {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.sealer != nil
}

// WriteFrame записывает кадр
func (c *Codec) WriteFrame(f *Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	body := f.body()
	// шифруем под тем же мьютексом, чтобы счетчик nonce совпадал с порядком на проводе
	if c.sealer != nil {
		body = c.sealer.Seal(body)
	}
	if len(body) > MaxFrameSize+sealOverhead {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	buf := make([]byte, 0, varint.UvarintSize(uint64(len(body)))+len(body))
	buf = append(buf, varint.ToUvarint(uint64(len(body)))...)
	buf = append(buf, body...)

	n, err := c.w.Write(buf)
	c.bytesWritten.Add(int64(n))
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Send кодирует сообщение и записывает кадр
func (c *Codec) Send(t MsgType, msg any) error {
	f, err := NewFrame(t, msg)
	if err != nil {
		return err
	}
	return c.WriteFrame(f)
}

// ReadFrame читает следующий кадр
func (c *Codec) ReadFrame() (*Frame, error) {
	length, err := varint.ReadUvarint(c.r)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame length: %w", err)
	}
	if length > MaxFrameSize+sealOverhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	c.bytesRead.Add(int64(varint.UvarintSize(length)) + int64(length))

	if c.sealer != nil {
		body, err = c.sealer.Open(body)
		if err != nil {
			return nil, err
		}
	}
	return parseBody(body)
}

// BytesRead возвращает число прочитанных байт
func (c *Codec) BytesRead() int64 {
	return c.bytesRead.Load()
}

// BytesWritten возвращает число записанных байт
func (c *Codec) BytesWritten() int64 {
	return c.bytesWritten.Load()
}
