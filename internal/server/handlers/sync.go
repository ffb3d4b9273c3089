package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/validation"
	"github.com/iudanet/peersync/pkg/api"
)

// defaultSessionLimit сколько сессий возвращать без параметра limit
const defaultSessionLimit = 50

// SyncController операции SyncEngine, доступные через API
type SyncController interface {
	Begin(ctx context.Context, nodeID string) ([]*models.SyncSession, error)
	Wait(ctx context.Context, sessionID string) (*models.SyncSession, error)
	Session(ctx context.Context, sessionID string) (*models.SyncSession, error)
	Sessions(ctx context.Context, limit int) ([]*models.SyncSession, error)
	Cancel(sessionID string) error
	Resume(ctx context.Context, sessionID string) (*models.SyncSession, error)
	Config() engine.SyncConfig
	UpdateConfig(cfg engine.SyncConfig)
}

// SyncHandler обрабатывает запросы синхронизации
type SyncHandler struct {
	logger *slog.Logger
	engine SyncController
}

// NewSyncHandler создает handler синхронизации
func NewSyncHandler(logger *slog.Logger, engine SyncController) *SyncHandler {
	return &SyncHandler{
		logger: logger,
		engine: engine,
	}
}

// Sync обрабатывает POST /api/v1/sync
// Без wait возвращает 202 и начальные снимки сессий
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req api.SyncRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NodeID != "" {
		if err := validation.ValidateNodeID(req.NodeID); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := r.Context()
	started, err := h.engine.Begin(ctx, req.NodeID)
	if err != nil {
		writeFailure(w, h.logger, "start sync", err)
		return
	}
	h.logger.Info("sync requested via api", "node_id", req.NodeID, "sessions", len(started))

	if !req.Wait {
		writeJSON(w, h.logger, http.StatusAccepted, api.SessionList{Sessions: toAPISessions(started)})
		return
	}

	finished := make([]*models.SyncSession, 0, len(started))
	for _, s := range started {
		final, err := h.engine.Wait(ctx, s.ID)
		if err != nil {
			writeFailure(w, h.logger, "wait sync", err)
			return
		}
		finished = append(finished, final)
	}
	writeJSON(w, h.logger, http.StatusOK, api.SessionList{Sessions: toAPISessions(finished)})
}

// Sessions обрабатывает GET /api/v1/sessions?limit=N
func (h *SyncHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	sessions, err := h.engine.Sessions(r.Context(), limit)
	if err != nil {
		writeFailure(w, h.logger, "list sessions", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, api.SessionList{Sessions: toAPISessions(sessions)})
}

// Session обрабатывает GET /api/v1/sessions/{id}
func (h *SyncHandler) Session(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, h.logger, "get session", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toAPISession(s))
}

// Cancel обрабатывает POST /api/v1/sessions/{id}/cancel
func (h *SyncHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.Cancel(id); err != nil {
		writeFailure(w, h.logger, "cancel session", err)
		return
	}

	s, err := h.engine.Session(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, "get session", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toAPISession(s))
}

// Resume обрабатывает POST /api/v1/sessions/{id}/resume
func (h *SyncHandler) Resume(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, h.logger, "resume session", err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, toAPISession(s))
}

// Config обрабатывает GET /api/v1/config
func (h *SyncHandler) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, toAPISettings(h.engine.Config()))
}

// UpdateConfig обрабатывает PUT /api/v1/config
// Изменения применяются к следующим сессиям
func (h *SyncHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req api.SyncSettings
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SyncIntervalMs < 1000 || req.MaxConnections <= 0 || req.DataRetentionDays < 0 {
		writeError(w, h.logger, http.StatusBadRequest, "invalid sync settings")
		return
	}

	cfg := applySettings(h.engine.Config(), req)
	h.engine.UpdateConfig(cfg)
	writeJSON(w, h.logger, http.StatusOK, toAPISettings(h.engine.Config()))
}
