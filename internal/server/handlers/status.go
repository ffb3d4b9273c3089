package handlers

import (
	"log/slog"
	"net/http"

	"github.com/benbjohnson/clock"

	"github.com/iudanet/peersync/pkg/api"
)

// StatusDeps источники данных для статуса и диагностической выгрузки
type StatusDeps struct {
	Records RecordStore
	Peers   PeerDirectory
	Conns   ConnectionLister
	Engine  SyncController
	Clock   clock.Clock
	Node    api.NodeInfo
}

// StatusHandler обрабатывает запросы статуса узла
type StatusHandler struct {
	logger *slog.Logger
	deps   StatusDeps
}

// NewStatusHandler создает handler статуса
func NewStatusHandler(logger *slog.Logger, deps StatusDeps) *StatusHandler {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &StatusHandler{
		logger: logger,
		deps:   deps,
	}
}

// Status обрабатывает GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	digest, err := h.deps.Records.Digest(ctx)
	if err != nil {
		writeFailure(w, h.logger, "status", err)
		return
	}
	records, err := h.deps.Records.List(ctx, true)
	if err != nil {
		writeFailure(w, h.logger, "status", err)
		return
	}

	resp := api.StatusResponse{
		Node:         h.deps.Node,
		Digest:       digest,
		Settings:     toAPISettings(h.deps.Engine.Config()),
		PendingWrite: h.deps.Records.Pending(),
	}
	for _, rec := range records {
		if rec.Deleted {
			resp.Tombstones++
		} else {
			resp.Records++
		}
	}
	for _, p := range h.deps.Peers.List() {
		resp.KnownPeers++
		if p.Online {
			resp.OnlinePeers++
		}
	}

	conns := h.deps.Conns.Connections()
	resp.Connections = make([]api.Connection, 0, len(conns))
	for _, c := range conns {
		resp.Connections = append(resp.Connections, toAPIConnection(c))
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Export обрабатывает GET /api/v1/export
// Содержит публичные ключи узлов и историю сессий, но не приватный ключевой материал
func (h *StatusHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	digest, err := h.deps.Records.Digest(ctx)
	if err != nil {
		writeFailure(w, h.logger, "export", err)
		return
	}
	sessions, err := h.deps.Engine.Sessions(ctx, 0)
	if err != nil {
		writeFailure(w, h.logger, "export", err)
		return
	}

	h.logger.Info("diagnostic export requested", "sessions", len(sessions))
	writeJSON(w, h.logger, http.StatusOK, api.Export{
		ExportedAt: h.deps.Clock.Now().UTC(),
		Node:       h.deps.Node,
		Digest:     digest,
		Peers:      toAPIPeers(h.deps.Peers.List(), h.deps.Conns.Connections()),
		Sessions:   toAPISessions(sessions),
	})
}
