package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCP транспорт поверх net
type TCP struct {
	dialer net.Dialer
	lc     net.ListenConfig
}

// NewTCP создает TCP транспорт
func NewTCP(keepAlive time.Duration) *TCP {
	return &TCP{
		dialer: net.Dialer{KeepAlive: keepAlive},
		lc:     net.ListenConfig{KeepAlive: keepAlive},
	}
}

// Kind возвращает вид транспорта
func (t *TCP) Kind() string {
	return KindTCP
}

// Dial устанавливает TCP соединение
func (t *TCP) Dial(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return conn, nil
}

// Listen начинает прием TCP соединений
func (t *TCP) Listen(ctx context.Context, addr string) (net.Listener, error) {
	ln, err := t.lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}
