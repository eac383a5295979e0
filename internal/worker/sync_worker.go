package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"prodboard/internal/amqp"
	"prodboard/internal/core"
	"prodboard/internal/sheets"
)

// Source is the local store the worker reads announced writes from.
type Source interface {
	GetRow(ctx context.Context, id int64) (core.Entry, error)
	GetBatch(ctx context.Context, id int64) (core.Batch, error)
	BatchSynced(ctx context.Context, id int64) (bool, error)
	MarkBatchSynced(ctx context.Context, id int64) error
	PendingBatchIDs(ctx context.Context) ([]int64, error)
}

// Target is the remote store rows are mirrored to.
type Target interface {
	sheets.RowWriter
	sheets.BatchWriter
}

// SyncWorker mirrors rows and edit batches from SQLite to the remote store.
// Message handling and pending replays share one lock, so a batch is never
// mirrored by both at once.
type SyncWorker struct {
	mu     sync.Mutex
	source Source
	target Target
}

func NewSyncWorker(source Source, target Target) *SyncWorker {
	return &SyncWorker{source: source, target: target}
}

// HandleSyncMessage processes a single sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"message_id", msg.ID,
		"kind", msg.Kind,
		"ref_id", msg.RefID)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch msg.Kind {
	case amqp.SyncRow:
		return w.syncRow(ctx, msg.RefID)
	case amqp.SyncBatch:
		return w.syncBatch(ctx, msg.RefID)
	}
	return fmt.Errorf("unknown sync kind %q", msg.Kind)
}

func (w *SyncWorker) syncRow(ctx context.Context, id int64) error {
	e, err := w.source.GetRow(ctx, id)
	if err != nil {
		return fmt.Errorf("get row from storage: %w", err)
	}
	ref, err := w.target.AppendRow(ctx, e)
	if err != nil {
		return fmt.Errorf("mirror row %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Mirrored row to remote store",
		"id", id,
		"mode", e.Mode,
		"item", e.Row.Item.String(),
		"remote_ref", ref)
	return nil
}

func (w *SyncWorker) syncBatch(ctx context.Context, id int64) error {
	synced, err := w.source.BatchSynced(ctx, id)
	if err != nil {
		return fmt.Errorf("get batch state from storage: %w", err)
	}
	if synced {
		slog.InfoContext(ctx, "Batch already mirrored, skipping", "id", id)
		return nil
	}
	b, err := w.source.GetBatch(ctx, id)
	if err != nil {
		return fmt.Errorf("get batch from storage: %w", err)
	}
	if err := w.target.ReplaceBatch(ctx, b); err != nil {
		return fmt.Errorf("mirror batch %d: %w", id, err)
	}
	if err := w.source.MarkBatchSynced(ctx, id); err != nil {
		// The remote already has the batch; only the bookkeeping is stale.
		slog.WarnContext(ctx, "Failed to mark batch synced", "id", id, "error", err)
	}
	slog.InfoContext(ctx, "Mirrored batch to remote store",
		"id", id,
		"mode", b.Mode,
		"group", b.Group,
		"date", b.Date,
		"rows", len(b.Rows))
	return nil
}

// SyncPending mirrors every batch the local store has not marked synced.
// It covers messages lost while the worker was down; row inserts carry no
// synced flag and are only mirrored from their message. The first failure
// stops the pass so batches stay in order.
func (w *SyncWorker) SyncPending(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids, err := w.source.PendingBatchIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := w.syncBatch(ctx, id); err != nil {
			return i, err
		}
	}
	if len(ids) > 0 {
		slog.InfoContext(ctx, "Pending batches mirrored", "count", len(ids))
	}
	return len(ids), nil
}
