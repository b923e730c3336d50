package backend

import (
	"context"

	"montaxi/internal/storage"
)

// CleanupFunc releases whatever the backend opened.
type CleanupFunc func() error

// BackendResult is an opened store and the func that closes it.
type BackendResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// Factory opens a record store.
type Factory interface {
	// CreateBackend opens the store described by config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config selects a backend and carries its location.
type Config struct {
	Type BackendType

	// csv
	DataDir string

	// sqlite, mysql
	SQLiteDBPath string
	MySQLDSN     string
}

// BackendType names a storage backend, as in DATA_BACKEND.
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	SQLiteBackend BackendType = "sqlite"
	MySQLBackend  BackendType = "mysql"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid reports whether bt is one of the known backends.
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, SQLiteBackend, MySQLBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
