// Package csvfile stores each collection as a comma-separated file. Every
// mutation reads the whole file, transforms it in memory and writes it back
// through a temporary file and an atomic rename.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"montaxi/internal/core"
	"montaxi/internal/log"
	"montaxi/internal/storage"
)

// Collection is a storage.Collection backed by one CSV file.
type Collection[T any] struct {
	path   string
	table  *storage.Table[T]
	logger *log.Logger

	// mu serialises read-modify-write cycles inside this process only.
	mu sync.Mutex
}

// snapshot is the decoded content of the file. Short rows cannot be mapped
// onto a record; they are kept verbatim and written back after the records.
type snapshot[T any] struct {
	records     []T
	quarantined [][]string
}

func NewCollection[T any](path string, table *storage.Table[T], logger *log.Logger) *Collection[T] {
	if logger == nil {
		logger = log.Discard()
	}
	return &Collection[T]{
		path:   path,
		table:  table,
		logger: logger.WithComponent(log.ComponentStorage).With(log.FieldKind, string(table.Kind)),
	}
}

func (c *Collection[T]) Path() string { return c.path }

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.records, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	records, err := c.List(ctx)
	if err != nil {
		return zero, err
	}
	for _, r := range records {
		if c.table.ID(r) == id {
			return r, nil
		}
	}
	return zero, fmt.Errorf("%s %s: %w", c.table.Kind, id, core.ErrNotFound)
}

func (c *Collection[T]) Put(ctx context.Context, record T) error {
	id := c.table.ID(record)
	if id == "" {
		return core.Invalid("id", "is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := snap.records[:0]
	for _, r := range snap.records {
		if c.table.ID(r) != id {
			kept = append(kept, r)
		}
	}
	snap.records = append(kept, record)
	return c.write(snap)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := snap.records[:0]
	for _, r := range snap.records {
		if c.table.ID(r) != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(snap.records) {
		return fmt.Errorf("%s %s: %w", c.table.Kind, id, core.ErrNotFound)
	}
	snap.records = kept
	return c.write(snap)
}

// Quarantined returns the rows that could not be read as records.
func (c *Collection[T]) Quarantined(ctx context.Context) ([][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.quarantined, nil
}

func (c *Collection[T]) load(ctx context.Context) (snapshot[T], error) {
	var snap snapshot[T]
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		// First use: create the file with its header.
		return snap, c.write(snap)
	}
	if err != nil {
		return snap, fmt.Errorf("open %s: %w", c.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("read %s header: %w", c.path, err)
	}

	// positions[i] is the source column of canonical column i, or -1.
	positions := make([]int, len(c.table.Columns))
	for i := range positions {
		positions[i] = -1
	}
	for src, name := range header {
		if dst := c.table.Column(name); dst >= 0 && positions[dst] < 0 {
			positions[dst] = src
		}
	}
	if !c.table.IsCanonical(header) {
		c.logger.Debug("Reading non-canonical header", "header", header, log.FieldPath, c.path)
	}

	idCol := len(c.table.Columns) - 1
	assigned := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return snap, fmt.Errorf("read %s: %w", c.path, err)
		}
		if len(row) < len(header) {
			snap.quarantined = append(snap.quarantined, row)
			continue
		}
		canon := make([]string, len(c.table.Columns))
		for i, src := range positions {
			if src >= 0 {
				canon[i] = row[src]
			}
		}
		if canon[idCol] == "" {
			canon[idCol] = uuid.New().String()
			assigned++
		}
		snap.records = append(snap.records, c.table.Decode(canon))
	}

	if len(snap.quarantined) > 0 {
		c.logger.Warn("Short rows kept aside", log.FieldCount, len(snap.quarantined), log.FieldPath, c.path)
	}
	if assigned > 0 {
		// Persist new identifiers right away so they stay stable across reads.
		c.logger.Info("Assigned identifiers to legacy rows", log.FieldCount, assigned, log.FieldPath, c.path)
		if err := c.write(snap); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

func (c *Collection[T]) write(snap snapshot[T]) error {
	err := storage.WriteFileAtomic(c.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(c.table.Columns); err != nil {
			return err
		}
		for _, r := range snap.records {
			if err := cw.Write(c.table.Encode(r)); err != nil {
				return err
			}
		}
		for _, row := range snap.quarantined {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	return nil
}
