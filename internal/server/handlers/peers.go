package handlers

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/internal/validation"
	"github.com/iudanet/peersync/pkg/api"
)

// PeerDirectory операции NodeRegistry, доступные через API
type PeerDirectory interface {
	List() []*models.SyncNode
	Get(nodeID string) (*models.SyncNode, error)
	Pin(ctx context.Context, nodeID string, publicKey []byte) error
	Repin(ctx context.Context, nodeID string, publicKey []byte) error
}

// ConnectionLister снимки живых соединений
type ConnectionLister interface {
	Connections() []models.Connection
}

// PeerHandler обрабатывает запросы к реестру узлов
type PeerHandler struct {
	logger *slog.Logger
	peers  PeerDirectory
	conns  ConnectionLister
}

// NewPeerHandler создает handler узлов
func NewPeerHandler(logger *slog.Logger, peers PeerDirectory, conns ConnectionLister) *PeerHandler {
	return &PeerHandler{
		logger: logger,
		peers:  peers,
		conns:  conns,
	}
}

// List обрабатывает GET /api/v1/peers
func (h *PeerHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, api.PeerList{
		Peers: toAPIPeers(h.peers.List(), h.conns.Connections()),
	})
}

// Pin обрабатывает POST /api/v1/peers/{id}/pin
// Неизвестный узел закрепляется заранее (нужно для strict режима),
// известный узел получает новый ключ и снимает флаг NeedsRepin.
func (h *PeerHandler) Pin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateNodeID(id); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	var req api.PinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	key, err := hex.DecodeString(req.PublicKey)
	if err != nil || len(key) != ed25519.PublicKeySize {
		writeError(w, h.logger, http.StatusBadRequest, "public_key must be a hex encoded ed25519 key")
		return
	}

	_, err = h.peers.Get(id)
	switch {
	case err == nil:
		err = h.peers.Repin(r.Context(), id, key)
	case errors.Is(err, syncerr.ErrUnknownNode):
		err = h.peers.Pin(r.Context(), id, key)
	}
	if err != nil {
		writeFailure(w, h.logger, "pin peer", err)
		return
	}

	node, err := h.peers.Get(id)
	if err != nil {
		writeFailure(w, h.logger, "pin peer", err)
		return
	}
	h.logger.Info("peer key pinned via api", "node_id", id)
	writeJSON(w, h.logger, http.StatusOK, toAPIPeer(node, nil))
}
