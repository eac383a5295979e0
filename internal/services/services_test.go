package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodboard/internal/core"
	"prodboard/internal/dashboard"
	"prodboard/internal/forms"
	applog "prodboard/internal/log"
	"prodboard/internal/sheets"
	"prodboard/internal/sheets/memory"
)

var testMeta = []core.MetadataOption{
	{Category: core.CategoryProcess, Name: "Foaming", Alias: "Foam", Group: core.GroupLeft},
	{Category: core.CategoryProcess, Name: "Finishing", Alias: "Fin", Group: core.GroupRight},
	{Category: core.CategoryType, Name: "PVC", Alias: "PVC"},
	{Category: core.CategoryLine, Name: "Line 1", Alias: "L1"},
}

// sequentialStore hides AppendRows so the entry service writes row by row.
type sequentialStore struct {
	sheets.Store
	failAt int
	writes []core.Entry
}

func (s *sequentialStore) AppendRow(ctx context.Context, e core.Entry) (string, error) {
	if len(s.writes)+1 == s.failAt {
		return "", errors.New("remote rejected row")
	}
	s.writes = append(s.writes, e)
	return s.Store.AppendRow(ctx, e)
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newBoard(t *testing.T, store sheets.Store) *dashboard.Board {
	t.Helper()
	b := dashboard.NewBoard(dashboard.Sources{History: store, Requests: store, Meta: store}, time.UTC, quietLogger())
	require.NoError(t, b.Load(context.Background()))
	return b
}

func draft(process, amount string) core.FormRow {
	return core.FormRow{Process: process, Type: "PVC", Line: "Line 1", Inch: "2", Amount: amount}
}

func TestEntrySubmitStopsAtFirstFailure(t *testing.T) {
	store := &sequentialStore{Store: memory.New(nil, nil, testMeta), failAt: 2}
	svc := NewEntryService(store, newBoard(t, store), quietLogger())

	n, err := svc.Submit(context.Background(), core.ModeRecord, "2024-01-15", []core.FormRow{
		draft("Foaming", "1"), draft("Foaming", "2"), draft("Finishing", "3"),
	})
	require.Error(t, err)
	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Written)
	assert.Equal(t, 3, partial.Total)
	assert.Equal(t, 1, n)

	require.Len(t, store.writes, 1)
	hist, _ := store.ListProduction(context.Background())
	require.Len(t, hist, 1)
	assert.Equal(t, core.Amount("1"), hist[0].Amount)
}

func TestEntrySubmitFirstRowFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := &sequentialStore{Store: memory.New(nil, nil, testMeta), failAt: 1}
	svc := NewEntryService(store, newBoard(t, store), quietLogger())

	f := forms.RestoreEntryForm(core.ModeRecord, "2024-01-15", []core.FormRow{
		draft("Foaming", "1"), draft("Finishing", "2"),
	})
	before := f.Rows()

	var n int
	err := f.Submit(ctx, func(ctx context.Context, rows []core.FormRow) error {
		var err error
		n, err = svc.Submit(ctx, core.ModeRecord, "2024-01-15", rows)
		return err
	})
	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Zero(t, partial.Written)
	assert.Equal(t, 2, partial.Total)
	assert.Zero(t, n)

	require.Empty(t, store.writes)
	hist, _ := store.ListProduction(ctx)
	require.Empty(t, hist)

	assert.Equal(t, forms.Open, f.State())
	assert.Equal(t, before, f.Rows())
}

func TestEntrySubmitBuildsItemKeys(t *testing.T) {
	store := &sequentialStore{Store: memory.New(nil, nil, testMeta)}
	board := newBoard(t, store)
	svc := NewEntryService(store, board, quietLogger())

	n, err := svc.Submit(context.Background(), core.ModeRequest, "2024-01-15", []core.FormRow{
		{Date: "1999-01-01", Process: "Foaming", Type: "PVC", Line: "Line 1", Inch: "2", Amount: "4"},
		{Process: "Grinding", Type: "HDPE", Line: "Line 9", Inch: "3/4", Amount: "1.5"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, []core.Entry{
		{Row: core.ProductionRow{Date: "2024-01-15", Process: "Foaming", Type: "PVC", Line: "Line 1", Inch: "2", Amount: "4", Item: "PVC_L1_2_Foam"}, Mode: core.ModeRequest, Group: core.GroupLeft},
		{Row: core.ProductionRow{Date: "2024-01-15", Process: "Grinding", Type: "HDPE", Line: "Line 9", Inch: "3/4", Amount: "1.5", Item: "HDPE_Line 9_3/4_Grinding"}, Mode: core.ModeRequest, Group: core.GroupRight},
	}, store.writes)

	// the board was refreshed after the save
	require.Len(t, board.Snapshot().Requests, 2)
}

func TestEntrySubmitUsesBatchAppender(t *testing.T) {
	store := memory.New(nil, nil, testMeta)
	svc := NewEntryService(store, newBoard(t, store), quietLogger())

	_, err := svc.Submit(context.Background(), core.ModeRecord, "2024-01-15", []core.FormRow{
		draft("Foaming", "1"), draft("Foaming", "oops"),
	})
	require.ErrorIs(t, err, core.ErrInvalidRow)
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	n, err := svc.Submit(context.Background(), core.ModeRecord, "2024-01-15", []core.FormRow{
		draft("Foaming", "1"), draft("Finishing", "2"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	hist, _ := store.ListProduction(context.Background())
	require.Len(t, hist, 2)
}

func TestEntrySubmitRejectsBadInput(t *testing.T) {
	store := memory.New(nil, nil, testMeta)
	svc := NewEntryService(store, newBoard(t, store), quietLogger())
	ctx := context.Background()

	_, err := svc.Submit(ctx, "Both", "2024-01-15", []core.FormRow{draft("Foaming", "1")})
	require.ErrorIs(t, err, core.ErrInvalidMode)
	_, err = svc.Submit(ctx, core.ModeRecord, "someday", []core.FormRow{draft("Foaming", "1")})
	require.ErrorIs(t, err, core.ErrInvalidDate)
	_, err = svc.Submit(ctx, core.ModeRecord, "2024-01-15", nil)
	require.ErrorIs(t, err, core.ErrInvalidRow)
	_, err = svc.Submit(ctx, core.ModeRecord, "2024-01-15", []core.FormRow{{Process: "Foaming"}})
	require.ErrorIs(t, err, core.ErrMissingField)
}

// recordingWriter captures batches instead of storing them.
type recordingWriter struct {
	batches []core.Batch
	err     error
}

func (w *recordingWriter) ReplaceBatch(_ context.Context, b core.Batch) error {
	w.batches = append(w.batches, b)
	return w.err
}

func seededStore() *memory.Store {
	return memory.New([]core.ProductionRow{
		{Date: "2024-01-15", Process: "Foaming", Type: "PVC", Line: "Line 1", Inch: "2", Amount: "5", Item: "PVC_L1_2_Foam"},
		{Date: "2024-01-15", Process: "Finishing", Type: "PVC", Line: "Line 1", Inch: "2", Amount: "7", Item: "PVC_L1_2_Fin"},
	}, nil, testMeta)
}

func TestEditDeleteAllSendsEmptyBatch(t *testing.T) {
	store := seededStore()
	board := newBoard(t, store)
	w := &recordingWriter{}
	svc := NewEditService(w, board, quietLogger())

	rows, version := svc.Open(core.ModeRecord, core.GroupLeft, "2024-01-15")
	require.Len(t, rows, 1)

	n, err := svc.Submit(context.Background(), EditRequest{
		Date: "2024-01-15", Mode: core.ModeRecord, Group: core.GroupLeft, BaseVersion: version,
	})
	require.NoError(t, err)
	require.Zero(t, n)

	require.Len(t, w.batches, 1)
	b := w.batches[0]
	assert.Equal(t, "2024-01-15", b.Date)
	assert.Equal(t, core.ModeRecord, b.Mode)
	assert.Equal(t, core.GroupLeft, b.Group)
	assert.NotNil(t, b.Rows)
	assert.Empty(t, b.Rows)
	assert.Equal(t, rows, b.Previous)
}

func TestEditReplacesScopeOnly(t *testing.T) {
	store := seededStore()
	board := newBoard(t, store)
	svc := NewEditService(store, board, quietLogger())
	_, version := svc.Open(core.ModeRecord, core.GroupLeft, "2024-01-15")

	n, err := svc.Submit(context.Background(), EditRequest{
		Date: "2024-01-15", Mode: core.ModeRecord, Group: core.GroupLeft, BaseVersion: version,
		Rows: []core.FormRow{
			{Date: "2024-01-15", Process: "Foaming", Type: "PVC", Line: "Line 1", Inch: "2", Amount: "6"},
			{},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	left := board.ScopeRows("2024-01-15", core.ModeRecord, core.GroupLeft)
	require.Len(t, left, 1)
	assert.Equal(t, core.Amount("6"), left[0].Amount)
	assert.Equal(t, core.Text("PVC_L1_2_Foam"), left[0].Item)
	require.Len(t, board.ScopeRows("2024-01-15", core.ModeRecord, core.GroupRight), 1)
}

func TestEditIncompleteRowWritesNothing(t *testing.T) {
	store := seededStore()
	w := &recordingWriter{}
	svc := NewEditService(w, newBoard(t, store), quietLogger())
	_, version := svc.Open(core.ModeRecord, core.GroupLeft, "2024-01-15")

	incomplete := draft("Foaming", "")
	_, err := svc.Submit(context.Background(), EditRequest{
		Date: "2024-01-15", Mode: core.ModeRecord, Group: core.GroupLeft, BaseVersion: version,
		Rows: []core.FormRow{{}, draft("Foaming", "4"), incomplete},
	})
	require.ErrorIs(t, err, core.ErrInvalidRow)
	assert.Contains(t, err.Error(), " 3:")
	require.Empty(t, w.batches)
}

func TestEditConflict(t *testing.T) {
	store := seededStore()
	board := newBoard(t, store)
	w := &recordingWriter{}
	svc := NewEditService(w, board, quietLogger())
	_, version := svc.Open(core.ModeRecord, core.GroupLeft, "2024-01-15")

	// someone else adds a Left row after the form was opened
	_, err := store.AppendRow(context.Background(), core.Entry{
		Row:  core.ProductionRow{Date: "2024-01-15", Item: "PVC_L1_4_Foam", Amount: "1"},
		Mode: core.ModeRecord,
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), EditRequest{
		Date: "2024-01-15", Mode: core.ModeRecord, Group: core.GroupLeft, BaseVersion: version,
	})
	require.ErrorIs(t, err, core.ErrConflict)
	require.Empty(t, w.batches)
}

func TestEditWriteFailure(t *testing.T) {
	store := seededStore()
	w := &recordingWriter{err: core.ErrRemote}
	svc := NewEditService(w, newBoard(t, store), quietLogger())

	_, err := svc.Submit(context.Background(), EditRequest{
		Date: "2024-01-15", Mode: core.ModeRequest, Group: core.GroupRight,
		Rows: []core.FormRow{draft("Finishing", "x")},
	})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.Submit(context.Background(), EditRequest{
		Date: "2024-01-15", Mode: core.ModeRequest, Group: core.GroupRight,
		Rows: []core.FormRow{draft("Finishing", "3")},
	})
	require.ErrorIs(t, err, core.ErrRemote)
	require.Len(t, w.batches, 1)
	assert.Equal(t, "2024-01-15", w.batches[0].Rows[0].Date)
}
