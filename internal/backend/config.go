package backend

import "fincore/internal/config"

// BackendType selects the ledger store implementation.
type BackendType string

const (
	SQLiteBackend BackendType = config.BackendSQLite
	MemoryBackend BackendType = config.BackendMemory
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Config holds the settings needed to open a store.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
}

// ConfigFrom picks the store settings out of the process configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Type:         BackendType(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
	}
}
