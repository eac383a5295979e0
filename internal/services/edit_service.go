package services

import (
	"context"
	"fmt"
	"log/slog"

	"prodboard/internal/core"
	"prodboard/internal/dashboard"
	applog "prodboard/internal/log"
	"prodboard/internal/sheets"
)

// EditRequest is a submitted edit form.
type EditRequest struct {
	Date        string
	Mode        core.Mode
	Group       core.Group
	BaseVersion string
	Rows        []core.FormRow
}

// EditService rewrites one (date, mode, group) scope as a single batch.
type EditService struct {
	store  sheets.BatchWriter
	board  *dashboard.Board
	logger *applog.StructuredLogger
}

func NewEditService(store sheets.BatchWriter, board *dashboard.Board, logger *applog.Logger) *EditService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &EditService{
		store:  store,
		board:  board,
		logger: applog.NewStructuredLogger(logger.WithComponent(applog.ComponentEdit)),
	}
}

// Open returns the scope's cached rows and their version for a new edit
// form.
func (s *EditService) Open(mode core.Mode, group core.Group, date string) ([]core.ProductionRow, string) {
	rows := s.board.ScopeRows(date, mode, group)
	return rows, core.ScopeVersion(rows)
}

// Submit replaces the scope with req.Rows.
//
// Rows are not passed through as drafted. Fully blank rows are dropped
// before anything else, and every remaining row must be complete: a single
// incomplete row fails the whole submit with core.ErrInvalidRow and nothing
// is written. The error names the row by its position in req.Rows, blank
// rows included. The scope is re-read first and a version other than
// req.BaseVersion fails with core.ErrConflict without writing. A row list
// that is empty after dropping blanks clears the scope.
func (s *EditService) Submit(ctx context.Context, req EditRequest) (int, error) {
	b := core.Batch{Date: req.Date, Mode: req.Mode, Group: req.Group, BaseVersion: req.BaseVersion}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	day, err := core.NormalizeDate(req.Date, s.board.Location())
	if err != nil {
		return 0, err
	}
	b.Date = day

	drafts := make([]core.FormRow, 0, len(req.Rows))
	for i, r := range req.Rows {
		if r.IsBlank() {
			continue
		}
		if err := r.Validate(); err != nil {
			return 0, fmt.Errorf("%w %d: %w", core.ErrInvalidRow, i+1, err)
		}
		drafts = append(drafts, r)
	}

	if err := s.board.Load(ctx); err != nil {
		return 0, fmt.Errorf("re-read before edit: %w", err)
	}
	current := s.board.ScopeRows(day, req.Mode, req.Group)
	if req.BaseVersion != "" && core.ScopeVersion(current) != req.BaseVersion {
		slog.WarnContext(ctx, "Edit rejected, scope changed",
			applog.FieldDate, day,
			applog.FieldMode, req.Mode,
			applog.FieldGroup, req.Group)
		return 0, core.ErrConflict
	}

	opts := s.board.Snapshot().Options
	b.Previous = current
	b.Rows = make([]core.ProductionRow, 0, len(drafts))
	for _, r := range drafts {
		b.Rows = append(b.Rows, buildRow(opts, day, r))
	}

	if err := s.store.ReplaceBatch(ctx, b); err != nil {
		s.logger.LogError(ctx, "Failed to save edit batch", err, applog.ComponentEdit, applog.OpReplace,
			applog.NewFields().WithScope(day, string(req.Mode), string(req.Group)))
		return 0, fmt.Errorf("save batch: %w", err)
	}

	s.logger.LogRowsSaved(ctx, applog.ComponentEdit, applog.OpReplace, day, string(req.Mode), string(req.Group), len(b.Rows))
	if err := s.board.Load(ctx); err != nil {
		slog.WarnContext(ctx, "Refresh after save incomplete", applog.FieldError, err)
	}
	return len(b.Rows), nil
}
