package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/listenupapp/shelfwise/internal/config"
	"github.com/listenupapp/shelfwise/internal/kv"
	"github.com/listenupapp/shelfwise/internal/logger"
)

// StoreHandle wraps the key-value store with shutdown capability.
type StoreHandle struct {
	kv.Store
	Backend string
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured key-value backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	store, err := OpenStore(cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	log.Info("Store initialized", "backend", cfg.Storage.Backend, "path", cfg.Storage.DataPath)
	return &StoreHandle{Store: store, Backend: cfg.Storage.Backend}, nil
}

// OpenStore opens the backend named in cfg under its data path.
func OpenStore(cfg config.StorageConfig, log *logger.Logger) (kv.Store, error) {
	switch cfg.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "badger":
		return kv.OpenBadger(filepath.Join(cfg.DataPath, "db"), log.Logger)
	case "sqlite":
		if err := os.MkdirAll(cfg.DataPath, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return kv.OpenSQLite(filepath.Join(cfg.DataPath, "shelfwise.db"), log.Logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
