// Package metrics описывает Prometheus метрики узла.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRegistry общий Registry узла, отдается на /metrics
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		SessionsTotal, SessionDuration,
		RecordsTotal, BytesTotal, ConflictsTotal,
		Connections, HandshakeFailures, HeartbeatMisses,
		PendingWrites,
		APIRequests, APIRequestDuration,
	)
}

// SessionsTotal завершенные сессии по итоговому состоянию
var SessionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "peersync_sessions_total",
		Help: "Sync sessions by terminal state",
	},
	[]string{"state"}, // completed | failed | cancelled
)

// SessionDuration длительность сессий (секунды)
var SessionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "peersync_session_duration_seconds",
		Help:    "Sync session duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

// RecordsTotal записи по направлению и результату
var RecordsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "peersync_records_total",
		Help: "Records exchanged with peers",
	},
	[]string{"direction", "result"}, // sent|received, applied|same|stale|conflict|rejected|failed
)

// BytesTotal байты протокола по направлению
var BytesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "peersync_bytes_total",
		Help: "Protocol bytes exchanged with peers",
	},
	[]string{"direction"}, // sent | received
)

// ConflictsTotal разрешенные конфликты версий
var ConflictsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "peersync_conflicts_total",
		Help: "Version conflicts resolved by the content hash tie-break",
	},
)

// Connections текущие соединения по состоянию
var Connections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "peersync_connections",
		Help: "Peer connections by state",
	},
	[]string{"state"},
)

// HandshakeFailures неудачные handshake по причине
var HandshakeFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "peersync_handshake_failures_total",
		Help: "Failed handshakes by reason",
	},
	[]string{"reason"}, // key_mismatch | untrusted | signature | protocol | network
)

// HeartbeatMisses пропущенные PONG
var HeartbeatMisses = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "peersync_heartbeat_misses_total",
		Help: "Heartbeat pings left without a pong",
	},
)

// PendingWrites ожидающие применения записи
var PendingWrites = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "peersync_pending_writes",
		Help: "Records queued for apply",
	},
)

// APIRequests запросы к управляющему API
var APIRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "peersync_api_requests_total",
		Help: "Control API requests by route and status code",
	},
	[]string{"method", "route", "code"},
)

// APIRequestDuration длительность запросов к управляющему API (секунды)
var APIRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "peersync_api_request_duration_seconds",
		Help:    "Control API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route"},
)

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
