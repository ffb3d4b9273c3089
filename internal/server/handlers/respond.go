package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/peersync/internal/engine"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/pkg/api"
)

// maxBodySize ограничение тела запроса (payload записи + JSON)
const maxBodySize = 32 << 20

// writeJSON отправляет JSON ответ
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// writeError отправляет ErrorResponse с явным статусом
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, api.ErrorResponse{Error: msg})
}

// writeFailure переводит ошибку сервиса в HTTP статус
func writeFailure(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	resp := api.ErrorResponse{Error: err.Error()}
	if kind := syncerr.KindOf(err); kind != syncerr.KindUnknown {
		resp.Kind = kind.String()
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "op", op, "error", err)
		resp.Error = "internal server error"
	} else {
		logger.Warn("request rejected", "op", op, "status", status, "error", err)
	}
	writeJSON(w, logger, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrRecordNotFound),
		errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, store.ErrPeerNotFound),
		errors.Is(err, syncerr.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoPeers),
		errors.Is(err, engine.ErrSessionRunning),
		errors.Is(err, engine.ErrP2PDisabled):
		return http.StatusConflict
	}

	switch syncerr.KindOf(err) {
	case syncerr.KindVersionConflict:
		return http.StatusConflict
	case syncerr.KindAuthentication:
		return http.StatusForbidden
	case syncerr.KindCrypto:
		return http.StatusUnprocessableEntity
	case syncerr.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON читает тело запроса в v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
