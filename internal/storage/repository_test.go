package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"prodboard/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "prodboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func row(item, amount string) core.ProductionRow {
	return core.ProductionRow{
		Date: "2024-01-15", Process: "Foaming", Type: "PVC", Line: "L1", Inch: "2",
		Amount: core.Amount(amount), Item: core.Text(item),
	}
}

func TestInsertAndListRows(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.InsertRow(ctx, core.Entry{Row: row("A", "3"), Mode: core.ModeRecord, Group: core.GroupLeft})
	require.NoError(t, err)
	require.NotZero(t, id)

	_, err = repo.InsertRows(ctx, []core.Entry{
		{Row: row("B", "1"), Mode: core.ModeRequest},
		{Row: row("C", "2"), Mode: core.ModeRequest},
	})
	require.NoError(t, err)

	hist, err := repo.ListRows(ctx, core.ModeRecord)
	require.NoError(t, err)
	require.Equal(t, []core.ProductionRow{row("A", "3")}, hist)

	reqs, err := repo.ListRows(ctx, core.ModeRequest)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	got, err := repo.GetRow(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.GroupLeft, got.Group)
	require.Equal(t, core.ModeRecord, got.Mode)

	_, err = repo.GetRow(ctx, 9999)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestInsertRowsRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.InsertRows(ctx, []core.Entry{
		{Row: row("A", "1"), Mode: core.ModeRecord},
		{Row: row("B", "1"), Mode: "bogus"},
	})
	require.Error(t, err)

	hist, err := repo.ListRows(ctx, core.ModeRecord)
	require.NoError(t, err)
	require.Empty(t, hist)
}

func TestReplaceScope(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, b := row("A", "3"), row("B", "4")
	_, err := repo.InsertRows(ctx, []core.Entry{
		{Row: a, Mode: core.ModeRecord},
		{Row: a, Mode: core.ModeRecord},
		{Row: b, Mode: core.ModeRecord},
	})
	require.NoError(t, err)

	edited := a
	edited.Amount = "5"
	batchID, err := repo.ReplaceScope(ctx, core.Batch{
		Date: "2024-01-15", Mode: core.ModeRecord, Group: core.GroupLeft,
		Previous: []core.ProductionRow{a},
		Rows:     []core.ProductionRow{edited},
	})
	require.NoError(t, err)

	hist, err := repo.ListRows(ctx, core.ModeRecord)
	require.NoError(t, err)
	require.Equal(t, []core.ProductionRow{a, b, edited}, hist)

	batch, err := repo.GetBatch(ctx, batchID)
	require.NoError(t, err)
	require.Equal(t, core.GroupLeft, batch.Group)
	require.Equal(t, []core.ProductionRow{a}, batch.Previous)
	require.Equal(t, []core.ProductionRow{edited}, batch.Rows)
	pending, err := repo.PendingBatchIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{batchID}, pending)
	synced, err := repo.BatchSynced(ctx, batchID)
	require.NoError(t, err)
	require.False(t, synced)
	require.NoError(t, repo.MarkBatchSynced(ctx, batchID))
	synced, err = repo.BatchSynced(ctx, batchID)
	require.NoError(t, err)
	require.True(t, synced)
	_, err = repo.BatchSynced(ctx, batchID+100)
	require.ErrorIs(t, err, ErrNotFound)
	pending, err = repo.PendingBatchIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	// Deleting everything records an empty row list.
	emptyID, err := repo.ReplaceScope(ctx, core.Batch{
		Date: "2024-01-15", Mode: core.ModeRecord, Group: core.GroupLeft,
		Previous: []core.ProductionRow{a, edited},
	})
	require.NoError(t, err)
	empty, err := repo.GetBatch(ctx, emptyID)
	require.NoError(t, err)
	require.NotNil(t, empty.Rows)
	require.Empty(t, empty.Rows)

	hist, err = repo.ListRows(ctx, core.ModeRecord)
	require.NoError(t, err)
	require.Equal(t, []core.ProductionRow{b}, hist)
}

func TestReplaceMeta(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	meta, err := repo.ListMeta(ctx)
	require.NoError(t, err)
	require.Empty(t, meta)

	opts := []core.MetadataOption{
		{Category: core.CategoryProcess, Name: "Foaming", Alias: "Foam", Group: core.GroupLeft},
		{Category: core.CategoryLine, Name: "Line 1", Alias: "L1"},
	}
	require.NoError(t, repo.ReplaceMeta(ctx, opts))
	require.NoError(t, repo.ReplaceMeta(ctx, opts))

	meta, err = repo.ListMeta(ctx)
	require.NoError(t, err)
	require.Equal(t, opts, meta)
}
