package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"montaxi/internal/core"
	"montaxi/internal/storage"
)

// collection maps one storage.Table onto one SQL table. Rows are returned in
// insertion order (seq), so a replaced record moves to the end just as it
// does in the flat-file backend.
type collection[T any] struct {
	db      *sql.DB
	dialect Dialect
	table   *storage.Table[T]

	selectSQL string
	getSQL    string
	insertSQL string
	deleteSQL string
}

func newCollection[T any](db *sql.DB, dialect Dialect, table *storage.Table[T]) *collection[T] {
	cols := dialect.quoteAll(table.Columns)
	name := dialect.quote(table.Name)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(table.Columns)), ", ")
	return &collection[T]{
		db:        db,
		dialect:   dialect,
		table:     table,
		selectSQL: fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", cols, name),
		getSQL:    fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", cols, name),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, cols, placeholders),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE id = ?", name),
	}
}

func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	rows, err := c.db.QueryContext(ctx, c.selectSQL)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.table.Name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		r, err := c.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.table.Name, err)
	}
	return out, nil
}

func (c *collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	rows, err := c.db.QueryContext(ctx, c.getSQL, id)
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", c.table.Name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, fmt.Errorf("get %s: %w", c.table.Name, err)
		}
		return zero, fmt.Errorf("%s %s: %w", c.table.Kind, id, core.ErrNotFound)
	}
	return c.scan(rows)
}

// Put deletes any row with the same id and inserts the new one inside a
// single transaction.
func (c *collection[T]) Put(ctx context.Context, record T) error {
	id := c.table.ID(record)
	if id == "" {
		return core.Invalid("id", "is required")
	}
	values := c.table.Encode(record)
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, c.deleteSQL, id); err != nil {
		return fmt.Errorf("replace %s %s: %w", c.table.Kind, id, err)
	}
	if _, err := tx.ExecContext(ctx, c.insertSQL, args...); err != nil {
		return fmt.Errorf("insert %s %s: %w", c.table.Kind, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, c.deleteSQL, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", c.table.Kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", c.table.Kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", c.table.Kind, id, core.ErrNotFound)
	}
	return nil
}

func (c *collection[T]) scan(rows *sql.Rows) (T, error) {
	var zero T
	cells := make([]sql.NullString, len(c.table.Columns))
	dest := make([]any, len(cells))
	for i := range cells {
		dest[i] = &cells[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return zero, fmt.Errorf("scan %s: %w", c.table.Name, err)
	}
	values := make([]string, len(cells))
	for i, cell := range cells {
		values[i] = cell.String
	}
	return c.table.Decode(values), nil
}
