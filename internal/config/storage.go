package config

import "git.home.luguber.info/inful/stargazer/internal/foundation/normalization"

// StorageBackend names a durable key/value implementation.
type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageSQLite StorageBackend = "sqlite"
	StorageNATS   StorageBackend = "nats"
	StorageMemory StorageBackend = "memory"
)

var storageBackendNormalizer = normalization.NewNormalizer(map[string]StorageBackend{
	"file":   StorageFile,
	"json":   StorageFile,
	"sqlite": StorageSQLite,
	"nats":   StorageNATS,
	"memory": StorageMemory,
}, "")

// NormalizeStorageBackend returns the typed backend or empty string for unknown input.
func NormalizeStorageBackend(raw string) StorageBackend {
	return storageBackendNormalizer.Normalize(raw)
}

// StorageBackendNames lists accepted spellings for error messages.
func StorageBackendNames() []string {
	return storageBackendNormalizer.ValidKeys()
}
