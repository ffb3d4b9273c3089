package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Memory транспорт внутри процесса на net.Pipe.
// Все узлы, использующие один экземпляр Memory, видят друг друга по адресу.
type Memory struct {
	listeners map[string]*memListener
	mu        sync.Mutex
}

// NewMemory создает пустую сеть
func NewMemory() *Memory {
	return &Memory{listeners: make(map[string]*memListener)}
}

// Kind возвращает вид транспорта
func (m *Memory) Kind() string {
	return KindMemory
}

// Dial соединяется со слушателем по адресу
func (m *Memory) Dial(ctx context.Context, addr string) (net.Conn, error) {
	m.mu.Lock()
	ln, ok := m.listeners[addr]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, ErrUnknownAddress)
	}

	client, server := net.Pipe()
	select {
	case ln.conns <- server:
		return client, nil
	case <-ln.done:
		_ = client.Close()
		_ = server.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", addr, net.ErrClosed)
	case <-ctx.Done():
		_ = client.Close()
		_ = server.Close()
		return nil, ctx.Err()
	}
}

// Listen регистрирует слушателя по адресу
func (m *Memory) Listen(_ context.Context, addr string) (net.Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.listeners[addr]; ok {
		return nil, fmt.Errorf("failed to listen on %s: address in use", addr)
	}
	ln := &memListener{
		addr:  memAddr(addr),
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
		onClose: func() {
			m.mu.Lock()
			delete(m.listeners, addr)
			m.mu.Unlock()
		},
	}
	m.listeners[addr] = ln
	return ln, nil
}

type memAddr string

func (a memAddr) Network() string { return KindMemory }
func (a memAddr) String() string  { return string(a) }

type memListener struct {
	conns   chan net.Conn
	done    chan struct{}
	onClose func()
	addr    memAddr
	once    sync.Once
}

func (l *memListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *memListener) Close() error {
	l.once.Do(func() {
		close(l.done)
		l.onClose()
	})
	return nil
}

func (l *memListener) Addr() net.Addr {
	return l.addr
}
