package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/validation"
	"github.com/iudanet/peersync/pkg/api"
)

// RecordStore операции DataStore, доступные через API
type RecordStore interface {
	Put(ctx context.Context, req store.PutRequest) (*models.SyncRecord, error)
	Get(ctx context.Context, id string) (*models.SyncRecord, bool, error)
	Delete(ctx context.Context, id string) (*models.SyncRecord, error)
	List(ctx context.Context, includeDeleted bool) ([]*models.SyncRecord, error)
	Open(ctx context.Context, record *models.SyncRecord) ([]byte, error)
	Audit(ctx context.Context, recordID string) ([]*models.AuditEntry, error)
	Digest(ctx context.Context) (string, error)
	Pending() int64
}

// RecordHandler обрабатывает запросы к записям
type RecordHandler struct {
	logger *slog.Logger
	store  RecordStore
}

// NewRecordHandler создает handler записей
func NewRecordHandler(logger *slog.Logger, store RecordStore) *RecordHandler {
	return &RecordHandler{
		logger: logger,
		store:  store,
	}
}

// List обрабатывает GET /api/v1/records?deleted=true
// Payload в списке не возвращается
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	includeDeleted := false
	if v := r.URL.Query().Get("deleted"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid deleted parameter")
			return
		}
		includeDeleted = parsed
	}

	records, err := h.store.List(r.Context(), includeDeleted)
	if err != nil {
		writeFailure(w, h.logger, "list records", err)
		return
	}

	resp := api.RecordList{Records: make([]api.Record, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, toAPIRecord(rec, nil))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Get обрабатывает GET /api/v1/records/{id}
// Возвращает открытый payload; для tombstone payload пуст
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateRecordID(id); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	rec, ok, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, "get record", err)
		return
	}
	if !ok {
		writeFailure(w, h.logger, "get record", store.ErrRecordNotFound)
		return
	}

	var payload []byte
	if !rec.Deleted {
		payload, err = h.store.Open(r.Context(), rec)
		if err != nil {
			writeFailure(w, h.logger, "open record", err)
			return
		}
	}
	writeJSON(w, h.logger, http.StatusOK, toAPIRecord(rec, payload))
}

// Put обрабатывает PUT /api/v1/records/{id}
func (h *RecordHandler) Put(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateRecordID(id); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	var req api.PutRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to decode put request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.ValidateRecordType(req.Type); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.store.Put(r.Context(), store.PutRequest{
		ID:      id,
		Type:    req.Type,
		Payload: req.Payload,
		Version: req.Version,
	})
	if err != nil {
		writeFailure(w, h.logger, "put record", err)
		return
	}

	h.logger.Info("record stored via api", "record_id", rec.ID, "version", rec.Version)
	writeJSON(w, h.logger, http.StatusOK, toAPIRecord(rec, nil))
}

// Delete обрабатывает DELETE /api/v1/records/{id}
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateRecordID(id); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.store.Delete(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, "delete record", err)
		return
	}

	h.logger.Info("record deleted via api", "record_id", rec.ID, "version", rec.Version)
	writeJSON(w, h.logger, http.StatusOK, toAPIRecord(rec, nil))
}

// Audit обрабатывает GET /api/v1/audit/{id}
func (h *RecordHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateRecordID(id); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.store.Audit(r.Context(), id)
	if err != nil {
		writeFailure(w, h.logger, "audit", err)
		return
	}

	resp := api.AuditList{Entries: make([]api.AuditEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toAPIAudit(e))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
