// Package registry хранит известные узлы аккаунта и их закрепленные ключи.
//
// Состояние online и время последней активности живут только в памяти,
// закрепленные ключи и адреса сохраняются в PeerStorage и переживают перезапуск.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/syncerr"
	"github.com/iudanet/peersync/internal/validation"
)

// Registry реестр узлов
type Registry struct {
	storage store.PeerStorage
	logger  *slog.Logger
	clock   clock.Clock
	nodes   map[string]*models.SyncNode
	mu      sync.RWMutex
}

// New создает реестр и загружает сохраненные узлы. Все загруженные узлы считаются offline.
func New(ctx context.Context, storage store.PeerStorage, logger *slog.Logger, clk clock.Clock) (*Registry, error) {
	if clk == nil {
		clk = clock.New()
	}

	peers, err := storage.ListPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}

	r := &Registry{
		storage: storage,
		logger:  logger,
		clock:   clk,
		nodes:   make(map[string]*models.SyncNode, len(peers)),
	}
	for _, p := range peers {
		p.Online = false
		r.nodes[p.ID] = p
	}

	logger.Debug("node registry loaded", "peers", len(peers))
	return r, nil
}

func (r *Registry) persist(ctx context.Context, node *models.SyncNode) error {
	if err := r.storage.SavePeer(ctx, node.Clone()); err != nil {
		return syncerr.Storage("save peer", err).WithNode(node.ID)
	}
	return nil
}

// IsKnown сообщает, известен ли узел
func (r *Registry) IsKnown(nodeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[nodeID]
	return ok
}

// IsOnline сообщает, считается ли узел доступным
func (r *Registry) IsOnline(nodeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeID]
	return ok && n.Online
}

// Register добавляет или обновляет узел по данным discovery.
// Ключ узла здесь никогда не закрепляется. Если объявленный ключ отличается
// от закрепленного, узел не обновляется и возвращается AuthenticationError.
func (r *Registry) Register(ctx context.Context, node *models.SyncNode) error {
	if err := validation.ValidateNodeID(node.ID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.nodes[node.ID]
	if !ok {
		n := node.Clone()
		n.PublicKey = nil
		n.PinnedAt = time.Time{}
		n.NeedsRepin = false
		n.LastSeen = r.clock.Now().UTC()
		r.nodes[n.ID] = n
		r.logger.Info("node discovered", "node_id", n.ID, "address", n.Addr())
		return r.persist(ctx, n)
	}

	if existing.IsPinned() && len(node.PublicKey) > 0 && !bytes.Equal(existing.PublicKey, node.PublicKey) {
		r.logger.Warn("advertised key differs from pinned key", "node_id", node.ID)
		return syncerr.Authentication("register node", syncerr.ErrKeyMismatch).WithNode(node.ID)
	}

	changed := existing.Address != node.Address || existing.Port != node.Port
	existing.Address = node.Address
	existing.Port = node.Port
	if len(node.Capabilities) > 0 {
		existing.Capabilities = append([]string(nil), node.Capabilities...)
	}
	if node.Online {
		existing.Online = true
	}
	existing.LastSeen = r.clock.Now().UTC()

	if changed {
		return r.persist(ctx, existing)
	}
	return nil
}

// Pin закрепляет ключ узла при первом успешном handshake (TOFU).
// Неизвестный узел добавляется. Повторный Pin тем же ключом ничего не меняет,
// другим ключом - AuthenticationError.
func (r *Registry) Pin(ctx context.Context, nodeID string, publicKey []byte) error {
	if len(publicKey) == 0 {
		return fmt.Errorf("public key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		node = &models.SyncNode{ID: nodeID, LastSeen: r.clock.Now().UTC()}
		r.nodes[nodeID] = node
	}

	if node.IsPinned() {
		if bytes.Equal(node.PublicKey, publicKey) {
			return nil
		}
		return syncerr.Authentication("pin node", syncerr.ErrKeyMismatch).WithNode(nodeID)
	}

	node.PublicKey = append([]byte(nil), publicKey...)
	node.PinnedAt = r.clock.Now().UTC()
	r.logger.Info("node key pinned", "node_id", nodeID)
	return r.persist(ctx, node)
}

// Repin вручную заменяет закрепленный ключ и снимает флаг NeedsRepin
func (r *Registry) Repin(ctx context.Context, nodeID string, publicKey []byte) error {
	if len(publicKey) == 0 {
		return fmt.Errorf("public key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return syncerr.Authentication("repin node", syncerr.ErrUnknownNode).WithNode(nodeID)
	}

	node.PublicKey = append([]byte(nil), publicKey...)
	node.PinnedAt = r.clock.Now().UTC()
	node.NeedsRepin = false
	r.logger.Warn("node key re-pinned manually", "node_id", nodeID)
	return r.persist(ctx, node)
}

// FlagRepin помечает узел после ошибки аутентификации.
// Флаг снимается только через Repin.
func (r *Registry) FlagRepin(ctx context.Context, nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return syncerr.Authentication("flag repin", syncerr.ErrUnknownNode).WithNode(nodeID)
	}
	if node.NeedsRepin {
		return nil
	}
	node.NeedsRepin = true
	node.Online = false
	return r.persist(ctx, node)
}

// Forget удаляет узел из реестра вместе с закрепленным ключом
func (r *Registry) Forget(ctx context.Context, nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[nodeID]; !ok {
		return syncerr.Authentication("forget node", syncerr.ErrUnknownNode).WithNode(nodeID)
	}
	if err := r.storage.DeletePeer(ctx, nodeID); err != nil && !errors.Is(err, store.ErrPeerNotFound) {
		return syncerr.Storage("delete peer", err).WithNode(nodeID)
	}
	delete(r.nodes, nodeID)
	return nil
}

// MarkOnline отмечает узел доступным
func (r *Registry) MarkOnline(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node, ok := r.nodes[nodeID]; ok {
		if !node.Online {
			r.logger.Debug("node online", "node_id", nodeID)
		}
		node.Online = true
		node.LastSeen = r.clock.Now().UTC()
	}
}

// MarkOffline отмечает узел недоступным
func (r *Registry) MarkOffline(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node, ok := r.nodes[nodeID]; ok && node.Online {
		node.Online = false
		r.logger.Info("node offline", "node_id", nodeID)
	}
}

// Touch обновляет время активности и, если передан, digest данных узла
func (r *Registry) Touch(nodeID, dataDigest string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node, ok := r.nodes[nodeID]; ok {
		node.LastSeen = r.clock.Now().UTC()
		if dataDigest != "" {
			node.DataDigest = dataDigest
		}
	}
}

// Get возвращает копию узла
func (r *Registry) Get(nodeID string) (*models.SyncNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return nil, syncerr.Authentication("get node", syncerr.ErrUnknownNode).WithNode(nodeID)
	}
	return node.Clone(), nil
}

// PublicKey возвращает закрепленный ключ узла
func (r *Registry) PublicKey(_ context.Context, nodeID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[nodeID]
	if !ok || !node.IsPinned() {
		return nil, syncerr.ErrUnknownNode
	}
	return append([]byte(nil), node.PublicKey...), nil
}

// List возвращает все известные узлы, отсортированные по id
func (r *Registry) List() []*models.SyncNode {
	return r.filter(func(*models.SyncNode) bool { return true })
}

// Online возвращает доступные узлы, отсортированные по id
func (r *Registry) Online() []*models.SyncNode {
	return r.filter(func(n *models.SyncNode) bool { return n.Online })
}

func (r *Registry) filter(keep func(*models.SyncNode) bool) []*models.SyncNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.SyncNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		if keep(n) {
			result = append(result, n.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
