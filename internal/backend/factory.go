package backend

import (
	"context"
	"fmt"

	"montaxi/internal/log"
	"montaxi/internal/storage/csvfile"
	"montaxi/internal/storage/memory"
	"montaxi/internal/storage/sqlstore"
)

// DefaultFactory opens the backends shipped with montaxi.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(config)
	case SQLiteBackend:
		return f.createSQLBackend(ctx, sqlstore.SQLite, config.SQLiteDBPath, config.SQLiteDBPath)
	case MySQLBackend:
		return f.createSQLBackend(ctx, sqlstore.MySQL, config.MySQLDSN, "mysql")
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	store, err := csvfile.New(config.DataDir, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize csv store: %w", err)
	}
	f.logger.Info("Initialized csv backend", log.FieldBackend, "csv", "data_dir", config.DataDir)
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

// createSQLBackend opens a relational store; where is logged in place of
// the DSN so credentials stay out of the logs.
func (f *DefaultFactory) createSQLBackend(ctx context.Context, dialect sqlstore.Dialect, dsn, where string) (*BackendResult, error) {
	store, err := sqlstore.Open(ctx, dialect, dsn, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", dialect, err)
	}
	f.logger.Info("Initialized relational backend", log.FieldBackend, string(dialect), "target", where)
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Using in-memory backend, records are lost on restart", log.FieldBackend, "memory")
	store := memory.New()
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}
