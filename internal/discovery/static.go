package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/iudanet/peersync/internal/models"
	"github.com/iudanet/peersync/internal/validation"
)

// Static список узлов из конфигурации в формате <node-id>@<host>:<port>
type Static struct {
	nodes []*models.SyncNode
}

// NewStatic разбирает список узлов
func NewStatic(peers []string) (*Static, error) {
	nodes := make([]*models.SyncNode, 0, len(peers))
	for _, p := range peers {
		node, err := ParsePeer(p)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return &Static{nodes: nodes}, nil
}

// ParsePeer разбирает строку <node-id>@<host>:<port>
func ParsePeer(s string) (*models.SyncNode, error) {
	id, addr, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok {
		return nil, fmt.Errorf("invalid peer %q: expected <node-id>@<host>:<port>", s)
	}
	if err := validation.ValidateNodeID(id); err != nil {
		return nil, fmt.Errorf("invalid peer %q: %w", s, err)
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid peer address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid peer port %q", portStr)
	}

	return &models.SyncNode{
		ID:           id,
		Address:      host,
		Port:         port,
		Capabilities: models.DefaultCapabilities(),
		Online:       true,
	}, nil
}

// Name возвращает имя источника
func (s *Static) Name() string {
	return "static"
}

// Discover возвращает узлы из конфигурации
func (s *Static) Discover(_ context.Context) ([]*models.SyncNode, error) {
	result := make([]*models.SyncNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		result = append(result, n.Clone())
	}
	return result, nil
}
