package node

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/iudanet/peersync/internal/config"
	"github.com/iudanet/peersync/internal/store"
	"github.com/iudanet/peersync/internal/store/boltdb"
	"github.com/iudanet/peersync/internal/store/memory"
	"github.com/iudanet/peersync/internal/store/sqlite"
)

// storages хранилища узла, открытые по node.storage
type storages struct {
	records  store.RecordStorage
	audit    store.AuditStorage
	sessions store.SessionStorage
	peers    store.PeerStorage
	identity store.IdentityStorage
	meta     store.MetadataStorage
	closers  []io.Closer
}

// openStorages открывает bbolt и sqlite в data_dir или использует хранилище в памяти.
// mem может быть nil: тогда для memory создается новое пустое хранилище.
func openStorages(ctx context.Context, cfg *config.Config, mem *memory.Storage) (*storages, error) {
	if cfg.Node.Storage == config.StorageMemory {
		if mem == nil {
			mem = memory.New(nil)
		}
		return &storages{
			records:  mem,
			audit:    mem,
			sessions: mem,
			peers:    mem,
			identity: mem,
			meta:     mem,
		}, nil
	}

	if err := os.MkdirAll(cfg.Node.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	bolt, err := boltdb.New(ctx, cfg.BoltPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open record storage: %w", err)
	}

	history, err := sqlite.New(ctx, cfg.SQLitePath())
	if err != nil {
		_ = bolt.Close()
		return nil, fmt.Errorf("failed to open history storage: %w", err)
	}

	return &storages{
		records:  bolt,
		audit:    history,
		sessions: history,
		peers:    bolt,
		identity: bolt,
		meta:     bolt,
		closers:  []io.Closer{history, bolt},
	}, nil
}

// Close закрывает файлы хранилищ
func (s *storages) Close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c.Close())
	}
	s.closers = nil
	return err
}
