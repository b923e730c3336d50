// Package worker keeps the spreadsheet mirror in step with the record store.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"montaxi/internal/amqp"
	"montaxi/internal/core"
	"montaxi/internal/log"
	"montaxi/internal/sheets"
	"montaxi/internal/storage"
)

// MirrorWorker rewrites one spreadsheet tab per collection. A change
// message only names the collection that moved; the whole tab is rewritten
// from the store, so messages may be duplicated or arrive out of order.
type MirrorWorker struct {
	store     storage.Store
	mirror    sheets.Mirror
	tabPrefix string
	logger    *log.Logger
}

func NewMirrorWorker(store storage.Store, mirror sheets.Mirror, tabPrefix string, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		store:     store,
		mirror:    mirror,
		tabPrefix: tabPrefix,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecordChange is the amqp.Handler for change messages. A returned
// error makes the consumer requeue the message.
func (w *MirrorWorker) HandleRecordChange(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing record change",
		log.NewFields().WithRecord(string(msg.Kind), msg.ID).WithOperation(msg.Op).ToSlice()...)
	return w.MirrorKind(ctx, msg.Kind)
}

// MirrorKind rewrites the tab of one collection.
func (w *MirrorWorker) MirrorKind(ctx context.Context, kind core.Kind) error {
	start := time.Now()
	header, rows, err := storage.Export(ctx, w.store, kind)
	if err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}

	tab := sheets.TabName(w.tabPrefix, kind)
	if err := w.mirror.ReplaceTab(ctx, tab, header, rows); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror collection",
			log.NewFields().WithRecord(string(kind), "").WithOperation(log.OpMirror).WithError(err).ToSlice()...)
		return fmt.Errorf("mirror %s: %w", kind, err)
	}

	w.logger.InfoContext(ctx, "Collection mirrored",
		log.FieldKind, string(kind),
		"tab", tab,
		log.FieldCount, len(rows),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// MirrorAll rewrites every tab concurrently. It runs once at start so the
// spreadsheet catches up on changes made while the worker was down.
func (w *MirrorWorker) MirrorAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range core.Kinds() {
		g.Go(func() error { return w.MirrorKind(gctx, kind) })
	}
	return g.Wait()
}
