// Package transport абстрагирует способ доставки байтов между узлами.
// TCP используется в работе, Memory - в тестах и для узлов в одном процессе.
package transport

import (
	"context"
	"errors"
	"net"
)

// Виды транспорта
const (
	KindTCP    = "tcp"
	KindMemory = "memory"
)

// ErrUnknownAddress по адресу никто не слушает
var ErrUnknownAddress = errors.New("no listener at address")

// Transport устанавливает и принимает потоковые соединения
type Transport interface {
	Kind() string
	Dial(ctx context.Context, addr string) (net.Conn, error)
	Listen(ctx context.Context, addr string) (net.Listener, error)
}
