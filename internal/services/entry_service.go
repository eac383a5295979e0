// Package services implements the entry and edit submit protocols on top
// of the store ports.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"prodboard/internal/core"
	"prodboard/internal/dashboard"
	applog "prodboard/internal/log"
	"prodboard/internal/production"
	"prodboard/internal/sheets"
)

// PartialWriteError reports a sequential submit that stopped part way.
// Rows before Written are stored and stay stored.
type PartialWriteError struct {
	Written int
	Total   int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("saved %d of %d rows: %v", e.Written, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// EntryService turns entry form drafts into stored rows.
type EntryService struct {
	store  sheets.Store
	board  *dashboard.Board
	logger *applog.StructuredLogger
}

func NewEntryService(store sheets.Store, board *dashboard.Board, logger *applog.Logger) *EntryService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &EntryService{
		store:  store,
		board:  board,
		logger: applog.NewStructuredLogger(logger.WithComponent(applog.ComponentEntry)),
	}
}

// Submit validates every draft row, then writes them for mode on date.
//
// Stores that implement sheets.BatchAppender receive the rows in a single
// call. Otherwise rows are written one by one and the first failure stops
// the rest with a *PartialWriteError. The board is reloaded after a
// successful submit.
func (s *EntryService) Submit(ctx context.Context, mode core.Mode, date string, rows []core.FormRow) (int, error) {
	if !mode.Valid() {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidMode, mode)
	}
	day, err := core.NormalizeDate(date, s.board.Location())
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no rows", core.ErrInvalidRow)
	}
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return 0, fmt.Errorf("%w %d: %w", core.ErrInvalidRow, i+1, err)
		}
	}

	snap := s.board.Snapshot()
	entries := make([]core.Entry, len(rows))
	for i, r := range rows {
		r.Date = day
		row := buildRow(snap.Options, day, r)
		entries[i] = core.Entry{
			Row:   row,
			Mode:  mode,
			Group: production.Classify(row.Item.String(), snap.Index),
		}
	}

	if batch, ok := s.store.(sheets.BatchAppender); ok {
		if err := batch.AppendRows(ctx, entries); err != nil {
			s.logger.LogError(ctx, "Failed to save entry rows", err, applog.ComponentEntry, applog.OpAppend,
				applog.NewFields().WithScope(day, string(mode), ""))
			return 0, fmt.Errorf("save rows: %w", err)
		}
	} else {
		for i, e := range entries {
			ref, err := s.store.AppendRow(ctx, e)
			if err != nil {
				s.logger.LogError(ctx, "Entry submit aborted", err, applog.ComponentEntry, applog.OpAppend,
					applog.NewFields().WithScope(day, string(mode), string(e.Group)))
				return i, &PartialWriteError{Written: i, Total: len(entries), Err: err}
			}
			slog.DebugContext(ctx, "Row appended",
				applog.FieldItem, e.Row.Item.String(),
				applog.FieldRowRef, ref)
		}
	}

	s.logger.LogRowsSaved(ctx, applog.ComponentEntry, applog.OpCreate, day, string(mode), "", len(entries))
	s.refresh(ctx)
	return len(entries), nil
}

func (s *EntryService) refresh(ctx context.Context) {
	if err := s.board.Load(ctx); err != nil {
		slog.WarnContext(ctx, "Refresh after save incomplete", applog.FieldError, err)
	}
}

// buildRow resolves the draft's selectors to aliases and derives its item
// key. A draft without its own date takes the active date.
func buildRow(opts core.DropdownOptions, date string, r core.FormRow) core.ProductionRow {
	key := core.NewItemKey(opts, r.Process, r.Type, r.Line, r.Inch)
	d := strings.TrimSpace(r.Date)
	if d == "" {
		d = date
	}
	return core.ProductionRow{
		Date:    d,
		Process: core.Text(strings.TrimSpace(r.Process)),
		Type:    core.Text(strings.TrimSpace(r.Type)),
		Line:    core.Text(strings.TrimSpace(r.Line)),
		Inch:    core.Text(strings.TrimSpace(r.Inch)),
		Amount:  core.Amount(strings.TrimSpace(r.Amount)),
		Item:    core.Text(key.String()),
	}
}
