package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"prodboard/internal/amqp"
	"prodboard/internal/core"
	ports "prodboard/internal/sheets"
	"prodboard/internal/storage"
)

// SyncPublisher announces locally stored writes so a worker can mirror them.
type SyncPublisher interface {
	PublishSync(ctx context.Context, kind amqp.SyncKind, refID int64) error
}

var (
	_ ports.Store         = (*SQLiteAdapter)(nil)
	_ ports.BatchAppender = (*SQLiteAdapter)(nil)
	_ SyncPublisher       = (*amqp.Client)(nil)
)

// SQLiteAdapter exposes SQLiteRepository through the sheets ports and
// publishes a sync message after every successful write. The local write is
// authoritative: a failed publish is logged and the request still succeeds.
type SQLiteAdapter struct {
	storage   *storage.SQLiteRepository
	publisher SyncPublisher
}

// NewSQLiteAdapter wires the repository to an optional publisher.
func NewSQLiteAdapter(storage *storage.SQLiteRepository, publisher SyncPublisher) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage:   storage,
		publisher: publisher,
	}
}

func (a *SQLiteAdapter) ListProduction(ctx context.Context) ([]core.ProductionRow, error) {
	return a.storage.ListRows(ctx, core.ModeRecord)
}

func (a *SQLiteAdapter) ListRequests(ctx context.Context) ([]core.ProductionRow, error) {
	return a.storage.ListRows(ctx, core.ModeRequest)
}

func (a *SQLiteAdapter) ListMeta(ctx context.Context) ([]core.MetadataOption, error) {
	return a.storage.ListMeta(ctx)
}

// AppendRow saves the row locally and returns its id as the row reference.
func (a *SQLiteAdapter) AppendRow(ctx context.Context, e core.Entry) (string, error) {
	id, err := a.storage.InsertRow(ctx, e)
	if err != nil {
		return "", fmt.Errorf("save row: %w", err)
	}
	a.publish(ctx, amqp.SyncRow, id)
	return strconv.FormatInt(id, 10), nil
}

// AppendRows saves every entry in one transaction, then announces each row.
func (a *SQLiteAdapter) AppendRows(ctx context.Context, entries []core.Entry) error {
	ids, err := a.storage.InsertRows(ctx, entries)
	if err != nil {
		return fmt.Errorf("save rows: %w", err)
	}
	for _, id := range ids {
		a.publish(ctx, amqp.SyncRow, id)
	}
	return nil
}

// ReplaceBatch rewrites the scope locally and announces the batch.
func (a *SQLiteAdapter) ReplaceBatch(ctx context.Context, b core.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	id, err := a.storage.ReplaceScope(ctx, b)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	a.publish(ctx, amqp.SyncBatch, id)
	return nil
}

func (a *SQLiteAdapter) publish(ctx context.Context, kind amqp.SyncKind, id int64) {
	if a.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message", "kind", kind, "ref_id", id)
		return
	}
	if err := a.publisher.PublishSync(ctx, kind, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"kind", kind, "ref_id", id, "error", err)
	}
}
