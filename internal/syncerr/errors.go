// Package syncerr описывает таксономию ошибок движка синхронизации.
//
// Каждая ошибка относится к одному из классов (Kind), от которого зависит
// политика распространения: сетевые и storage ошибки повторяются внутри
// движка, ошибки аутентификации и криптографии поднимаются наверх сразу.
package syncerr

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
)

// Kind класс ошибки
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuthentication
	KindCrypto
	KindVersionConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthentication:
		return "authentication"
	case KindCrypto:
		return "crypto"
	case KindVersionConflict:
		return "version_conflict"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Sentinel ошибки. Их класс определяется через KindOf даже без обертки *Error.
var (
	// ErrKeyNotFound ключ с указанным id отсутствует в keyring
	ErrKeyNotFound = errors.New("key not found")

	// ErrAuthenticationFailed тег AEAD не прошел проверку (подмена данных или неверный ключ)
	ErrAuthenticationFailed = errors.New("authentication tag verification failed")

	// ErrInvalidSignature подпись записи или handshake не прошла проверку
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrContentHashMismatch расшифрованный payload не совпадает с content hash
	ErrContentHashMismatch = errors.New("content hash mismatch")

	// ErrUnknownSigner автор записи не известен реестру узлов
	ErrUnknownSigner = errors.New("unknown record signer")

	// ErrVersionConflict версия записи не больше сохраненной
	ErrVersionConflict = errors.New("version conflict")

	// ErrKeyMismatch публичный ключ узла отличается от закрепленного
	ErrKeyMismatch = errors.New("public key mismatch with pinned key")

	// ErrUntrustedNode узел не закреплен, а политика доверия запрещает TOFU
	ErrUntrustedNode = errors.New("node is not pinned")

	// ErrUnknownNode узел отсутствует в реестре
	ErrUnknownNode = errors.New("unknown node")
)

// Error ошибка с классом и контекстом операции
type Error struct {
	Err      error
	Op       string
	NodeID   string
	RecordID string
	Kind     Kind
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.NodeID != "" {
		b.WriteString(" (node ")
		b.WriteString(e.NodeID)
		b.WriteString(")")
	}
	if e.RecordID != "" {
		b.WriteString(" (record ")
		b.WriteString(e.RecordID)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithNode возвращает копию ошибки с заполненным NodeID
func (e *Error) WithNode(nodeID string) *Error {
	c := *e
	c.NodeID = nodeID
	return &c
}

// WithRecord возвращает копию ошибки с заполненным RecordID
func (e *Error) WithRecord(recordID string) *Error {
	c := *e
	c.RecordID = recordID
	return &c
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Network оборачивает сетевую (повторяемую) ошибку
func Network(op string, err error) *Error { return newError(KindNetwork, op, err) }

// Authentication оборачивает ошибку аутентификации узла
func Authentication(op string, err error) *Error { return newError(KindAuthentication, op, err) }

// Crypto оборачивает ошибку расшифровки или проверки подписи
func Crypto(op string, err error) *Error { return newError(KindCrypto, op, err) }

// Conflict оборачивает конфликт версий
func Conflict(op string, err error) *Error { return newError(KindVersionConflict, op, err) }

// Storage оборачивает ошибку локального хранилища
func Storage(op string, err error) *Error { return newError(KindStorage, op, err) }

// KindOf определяет класс ошибки.
// Явная обертка *Error имеет приоритет над sentinel ошибками.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	switch {
	case errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrContentHashMismatch),
		errors.Is(err, ErrUnknownSigner):
		return KindCrypto
	case errors.Is(err, ErrKeyMismatch), errors.Is(err, ErrUntrustedNode):
		return KindAuthentication
	case errors.Is(err, ErrVersionConflict):
		return KindVersionConflict
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	return KindUnknown
}

// Is проверяет принадлежность ошибки классу
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable сообщает, можно ли повторить операцию.
// Повторяются только сетевые и storage ошибки.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindStorage:
		return true
	default:
		return false
	}
}
