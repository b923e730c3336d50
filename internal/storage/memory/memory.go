// Package memory is a process-local store used by tests and by the memory
// backend for demos. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"montaxi/internal/core"
	"montaxi/internal/storage"
)

type collection[T any] struct {
	mu    sync.Mutex
	table *storage.Table[T]
	items []T
}

func (c *collection[T]) List(_ context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...), nil
}

func (c *collection[T]) Get(_ context.Context, id string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if c.table.ID(it) == id {
			return it, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s %s: %w", c.table.Kind, id, core.ErrNotFound)
}

func (c *collection[T]) Put(_ context.Context, record T) error {
	id := c.table.ID(record)
	if id == "" {
		return core.Invalid("id", "is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.without(id), record)
	return nil
}

func (c *collection[T]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.without(id)
	if len(kept) == len(c.items) {
		return fmt.Errorf("%s %s: %w", c.table.Kind, id, core.ErrNotFound)
	}
	c.items = kept
	return nil
}

func (c *collection[T]) without(id string) []T {
	out := make([]T, 0, len(c.items))
	for _, it := range c.items {
		if c.table.ID(it) != id {
			out = append(out, it)
		}
	}
	return out
}

type Store struct {
	drivers  *collection[core.Driver]
	taxis    *collection[core.Taxi]
	expenses *collection[core.Expense]
	revenues *collection[core.RevenueEntry]
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		drivers:  &collection[core.Driver]{table: storage.DriverTable},
		taxis:    &collection[core.Taxi]{table: storage.TaxiTable},
		expenses: &collection[core.Expense]{table: storage.ExpenseTable},
		revenues: &collection[core.RevenueEntry]{table: storage.RevenueTable},
	}
}

func (s *Store) Drivers() storage.Collection[core.Driver]        { return s.drivers }
func (s *Store) Taxis() storage.Collection[core.Taxi]            { return s.taxis }
func (s *Store) Expenses() storage.Collection[core.Expense]      { return s.expenses }
func (s *Store) Revenues() storage.Collection[core.RevenueEntry] { return s.revenues }
func (s *Store) Close() error                                    { return nil }
