package conn

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iudanet/peersync/internal/metrics"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/pkg/api"
)

// byeTimeout сколько ждать отправки BYE при закрытии
const byeTimeout = time.Second

// Peer живое аутентифицированное соединение с узлом
type Peer struct {
	conn    net.Conn
	codec   *protocol.Codec
	limiter *rate.Limiter
	manager *Manager
	done    chan struct{}

	info     models.Connection
	nodeID   string
	dialerID string

	lastSample   time.Time
	lastBytes    int64
	pingSeq      uint64
	missed       int
	awaitingPong bool
	closeOnce    sync.Once
	mu           sync.Mutex
}

// NodeID возвращает id удаленного узла
func (p *Peer) NodeID() string {
	return p.nodeID
}

// Done закрывается, когда соединение закрыто
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Closed сообщает, закрыто ли соединение
func (p *Peer) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Snapshot возвращает копию описания соединения
func (p *Peer) Snapshot() models.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.info
	c.Capabilities = append([]string(nil), p.info.Capabilities...)
	c.State = p.manager.State(p.nodeID)
	return c
}

// HasCapability проверяет согласованную возможность
func (p *Peer) HasCapability(capability string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(p.info.Capabilities, capability)
}

// Send кодирует и отправляет сообщение с учетом ограничения полосы
func (p *Peer) Send(ctx context.Context, t protocol.MsgType, msg any) error {
	f, err := protocol.NewFrame(t, msg)
	if err != nil {
		return err
	}

	if p.limiter != nil {
		if err := p.limiter.WaitN(ctx, f.Size()); err != nil {
			return fmt.Errorf("failed to wait for bandwidth: %w", err)
		}
	}

	if p.Closed() {
		return syncerr.Network("send "+t.String(), net.ErrClosed).WithNode(p.nodeID)
	}

	if err := p.codec.WriteFrame(f); err != nil {
		p.close()
		return syncerr.Network("send "+t.String(), err).WithNode(p.nodeID)
	}
	metrics.BytesTotal.WithLabelValues("sent").Add(float64(f.Size()))
	return nil
}

// BytesTransferred возвращает байты, прочитанные и записанные соединением
func (p *Peer) BytesTransferred() int64 {
	return p.codec.BytesRead() + p.codec.BytesWritten()
}

// closeWith отправляет BYE и закрывает соединение
func (p *Peer) closeWith(reason string) {
	if p.Closed() {
		return
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(byeTimeout))
	_ = p.codec.Send(protocol.MsgBye, api.Bye{Reason: reason})
	p.close()
}

// close закрывает соединение и освобождает слот
func (p *Peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
		p.manager.sem.Release(1)
	})
}

// nextPing регистрирует новый PING и возвращает число подряд пропущенных PONG
func (p *Peer) nextPing() (seq uint64, missed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.awaitingPong {
		p.missed++
		metrics.HeartbeatMisses.Inc()
	}
	p.pingSeq++
	p.awaitingPong = true
	return p.pingSeq, p.missed
}

// onPong обрабатывает ответ на последний PING
func (p *Peer) onPong(pong api.Pong, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pong.Seq != p.pingSeq {
		return
	}
	p.awaitingPong = false
	p.missed = 0
	p.info.LastPing = now
	p.info.Latency = now.Sub(time.Unix(0, pong.SentAt))
}

// sampleBandwidth обновляет оценку полосы по байтам с прошлого замера
func (p *Peer) sampleBandwidth(now time.Time) {
	total := p.BytesTransferred()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastSample.IsZero() {
		if elapsed := now.Sub(p.lastSample).Seconds(); elapsed > 0 {
			p.info.BandwidthEstimate = float64(total-p.lastBytes) / elapsed
		}
	}
	p.lastSample = now
	p.lastBytes = total
}
