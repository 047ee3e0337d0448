package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/stargazer/internal/config"
)

// Open builds the backend selected in cfg.
func Open(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.StorageFile, "":
		return NewFSStore(cfg.Path)
	case config.StorageSQLite:
		path := cfg.Path
		if path != ":memory:" && !strings.HasSuffix(path, ".db") {
			path = filepath.Join(path, "stargazer.db")
		}
		return NewSQLiteStore(path)
	case config.StorageNATS:
		return NewNATSStore(cfg.NATSURL, cfg.Bucket)
	case config.StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
