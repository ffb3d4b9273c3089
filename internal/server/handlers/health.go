package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/iudanet/peersync/pkg/api"
)

// HealthHandler отвечает на проверку живости демона
type HealthHandler struct {
	logger  *slog.Logger
	clock   clock.Clock
	started time.Time
	version string
	nodeID  string
}

// NewHealthHandler создает handler; время запуска фиксируется в момент создания
func NewHealthHandler(logger *slog.Logger, clk clock.Clock, version, nodeID string) *HealthHandler {
	if clk == nil {
		clk = clock.New()
	}
	return &HealthHandler{
		logger:  logger,
		clock:   clk,
		started: clk.Now(),
		version: version,
		nodeID:  nodeID,
	}
}

// Health обрабатывает GET /api/v1/health.
// Доступен без токена: CLI проверяет по нему, что демон запущен.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, api.HealthResponse{
		Status:   "ok",
		Version:  h.version,
		NodeID:   h.nodeID,
		UptimeMs: h.clock.Since(h.started).Milliseconds(),
	})
}
