// Package discovery находит узлы аккаунта в сети.
// Discovery только сообщает адреса и возможности; ключи здесь никогда не закрепляются.
package discovery

import (
	"context"

	"github.com/iudanet/peersync/internal/models"
)

// Discoverer источник узлов
type Discoverer interface {
	// Name короткое имя источника для логов
	Name() string
	// Discover возвращает найденные узлы
	Discover(ctx context.Context) ([]*models.SyncNode, error)
}
