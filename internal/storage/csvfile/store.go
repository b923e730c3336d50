package csvfile

import (
	"fmt"
	"os"
	"path/filepath"

	"montaxi/internal/core"
	"montaxi/internal/log"
	"montaxi/internal/storage"
)

// Store keeps drivers.csv, taxis.csv, expenses.csv and revenues.csv in one directory.
type Store struct {
	dir      string
	drivers  *Collection[core.Driver]
	taxis    *Collection[core.Taxi]
	expenses *Collection[core.Expense]
	revenues *Collection[core.RevenueEntry]
}

var _ storage.Store = (*Store)(nil)

func New(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	file := func(name string) string { return filepath.Join(dir, name+".csv") }
	return &Store{
		dir:      dir,
		drivers:  NewCollection(file(storage.DriverTable.Name), storage.DriverTable, logger),
		taxis:    NewCollection(file(storage.TaxiTable.Name), storage.TaxiTable, logger),
		expenses: NewCollection(file(storage.ExpenseTable.Name), storage.ExpenseTable, logger),
		revenues: NewCollection(file(storage.RevenueTable.Name), storage.RevenueTable, logger),
	}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Drivers() storage.Collection[core.Driver]        { return s.drivers }
func (s *Store) Taxis() storage.Collection[core.Taxi]            { return s.taxis }
func (s *Store) Expenses() storage.Collection[core.Expense]      { return s.expenses }
func (s *Store) Revenues() storage.Collection[core.RevenueEntry] { return s.revenues }

func (s *Store) Close() error { return nil }
