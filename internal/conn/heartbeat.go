package conn

import (
	"context"

	"github.com/iudanet/peersync/internal/protocol"
	"github.com/iudanet/peersync/pkg/api"
)

// Heartbeat периодически отправляет PING всем соединениям.
// После HeartbeatMisses подряд пропущенных PONG узел считается offline.
func (m *Manager) Heartbeat(ctx context.Context) error {
	ticker := m.clock.Ticker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.heartbeatTick(ctx)
		}
	}
}

func (m *Manager) heartbeatTick(ctx context.Context) {
	m.mu.RLock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.RUnlock()

	now := m.clock.Now()
	for _, p := range peers {
		if p.Closed() {
			continue
		}
		p.sampleBandwidth(now)

		seq, missed := p.nextPing()
		if missed >= m.cfg.HeartbeatMisses {
			m.logger.Warn("node stopped answering heartbeat", "node_id", p.nodeID, "missed", missed)
			// detach из горутины чтения отметит узел offline
			p.close()
			continue
		}

		go func() {
			if err := p.Send(ctx, protocol.MsgPing, api.Ping{Seq: seq, SentAt: now.UnixNano()}); err != nil {
				m.logger.Debug("failed to send ping", "node_id", p.nodeID, "error", err)
			}
		}()
	}
}
