// Package storage defines the record store contracts shared by every backend
// and the column layout each collection is persisted with.
package storage

import (
	"context"

	"montaxi/internal/core"
)

type (
	// Collection is one ordered set of records keyed by identifier.
	//
	// Put inserts a new record or replaces the record with the same id as a
	// whole; the written record moves to the end of the collection. Get and
	// Delete return core.ErrNotFound for an unknown id. Each mutation is
	// all-or-nothing.
	Collection[T any] interface {
		List(ctx context.Context) ([]T, error)
		Get(ctx context.Context, id string) (T, error)
		Put(ctx context.Context, record T) error
		Delete(ctx context.Context, id string) error
	}

	// Store groups the four collections of one backend.
	Store interface {
		Drivers() Collection[core.Driver]
		Taxis() Collection[core.Taxi]
		Expenses() Collection[core.Expense]
		Revenues() Collection[core.RevenueEntry]
		Close() error
	}
)

// Export returns the canonical header and encoded rows of one collection.
func Export(ctx context.Context, s Store, kind core.Kind) ([]string, [][]string, error) {
	switch kind {
	case core.KindDriver:
		return exportRows(ctx, s.Drivers(), DriverTable)
	case core.KindTaxi:
		return exportRows(ctx, s.Taxis(), TaxiTable)
	case core.KindExpense:
		return exportRows(ctx, s.Expenses(), ExpenseTable)
	case core.KindRevenue:
		return exportRows(ctx, s.Revenues(), RevenueTable)
	}
	return nil, nil, core.Invalid("kind", "is not a known collection")
}

func exportRows[T any](ctx context.Context, c Collection[T], t *Table[T]) ([]string, [][]string, error) {
	records, err := c.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, t.Encode(r))
	}
	return t.Columns, rows, nil
}

// Copy writes every record of src into dst, keeping identifiers.
func Copy(ctx context.Context, src, dst Store) (int, error) {
	total := 0
	steps := []func() (int, error){
		func() (int, error) { return copyCollection(ctx, src.Drivers(), dst.Drivers()) },
		func() (int, error) { return copyCollection(ctx, src.Taxis(), dst.Taxis()) },
		func() (int, error) { return copyCollection(ctx, src.Expenses(), dst.Expenses()) },
		func() (int, error) { return copyCollection(ctx, src.Revenues(), dst.Revenues()) },
	}
	for _, step := range steps {
		n, err := step()
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func copyCollection[T any](ctx context.Context, src, dst Collection[T]) (int, error) {
	records, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, r := range records {
		if err := dst.Put(ctx, r); err != nil {
			return i, err
		}
	}
	return len(records), nil
}
