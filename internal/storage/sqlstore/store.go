// Package sqlstore keeps the four collections in relational tables, on SQLite
// for a single workstation or MySQL for a shared office database.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"montaxi/internal/core"
	"montaxi/internal/log"
	"montaxi/internal/storage"
)

type Store struct {
	db      *sql.DB
	dialect Dialect

	drivers  *collection[core.Driver]
	taxis    *collection[core.Taxi]
	expenses *collection[core.Expense]
	revenues *collection[core.RevenueEntry]
}

var _ storage.Store = (*Store)(nil)

// Open connects, applies migrations and returns a ready store. For SQLite
// dsn is a file path whose directory is created when missing.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if dialect == SQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		// One writer at a time; avoids SQLITE_BUSY on concurrent requests.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(3 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.WithComponent(log.ComponentStorage).Info("Relational store ready", log.FieldBackend, string(dialect))
	return New(db, dialect), nil
}

// New wraps an existing connection without touching the schema.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:       db,
		dialect:  dialect,
		drivers:  newCollection(db, dialect, storage.DriverTable),
		taxis:    newCollection(db, dialect, storage.TaxiTable),
		expenses: newCollection(db, dialect, storage.ExpenseTable),
		revenues: newCollection(db, dialect, storage.RevenueTable),
	}
}

func (s *Store) Drivers() storage.Collection[core.Driver]        { return s.drivers }
func (s *Store) Taxis() storage.Collection[core.Taxi]            { return s.taxis }
func (s *Store) Expenses() storage.Collection[core.Expense]      { return s.expenses }
func (s *Store) Revenues() storage.Collection[core.RevenueEntry] { return s.revenues }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
