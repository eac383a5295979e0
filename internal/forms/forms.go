// Package forms models the entry and edit modals as small state machines
// over a list of draft rows.
//
// Both forms move Closed -> Open -> Submitting and back to Closed on
// success or Open on failure. While Submitting the draft is frozen.
package forms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"prodboard/internal/core"
)

type State int

const (
	Closed State = iota
	Open
	Submitting
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Submitting:
		return "submitting"
	}
	return "closed"
}

var (
	ErrBusy     = errors.New("form is already submitting")
	ErrClosed   = errors.New("form is closed")
	ErrRowIndex = errors.New("row index out of range")
	ErrLastRow  = errors.New("the entry form keeps at least one row")
)

// draft is the row list and state shared by both forms.
type draft struct {
	mu    sync.Mutex
	state State
	rows  []core.FormRow
}

func (d *draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Rows returns a copy of the current draft rows.
func (d *draft) Rows() []core.FormRow {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.FormRow(nil), d.rows...)
}

// SetRow replaces row i.
func (d *draft) SetRow(i int, r core.FormRow) error {
	return d.mutate(func() error {
		if i < 0 || i >= len(d.rows) {
			return fmt.Errorf("%w: %d", ErrRowIndex, i)
		}
		d.rows[i] = r
		return nil
	})
}

// Close discards the draft. Closing while submitting is refused.
func (d *draft) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Submitting {
		return ErrBusy
	}
	d.state = Closed
	d.rows = nil
	return nil
}

func (d *draft) mutate(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case Closed:
		return ErrClosed
	case Submitting:
		return ErrBusy
	}
	return fn()
}

// submit freezes the draft, runs fn on a snapshot of the rows and settles
// the state from its result. The draft survives a failed submit.
func (d *draft) submit(ctx context.Context, fn func(ctx context.Context, rows []core.FormRow) error) error {
	d.mu.Lock()
	switch d.state {
	case Closed:
		d.mu.Unlock()
		return ErrClosed
	case Submitting:
		d.mu.Unlock()
		return ErrBusy
	}
	d.state = Submitting
	rows := append([]core.FormRow(nil), d.rows...)
	d.mu.Unlock()

	err := fn(ctx, rows)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = Open
		return err
	}
	d.state = Closed
	d.rows = nil
	return nil
}

// EntryForm creates new rows for one mode on the active date.
type EntryForm struct {
	draft
	Mode core.Mode
	Date string
}

// NewEntryForm opens a form with a single blank row.
func NewEntryForm(mode core.Mode, date string) *EntryForm {
	return &EntryForm{
		draft: draft{state: Open, rows: []core.FormRow{{Date: date}}},
		Mode:  mode,
		Date:  date,
	}
}

// RestoreEntryForm reopens a form around rows posted back by the browser.
// An empty list is replaced by one blank row.
func RestoreEntryForm(mode core.Mode, date string, rows []core.FormRow) *EntryForm {
	f := NewEntryForm(mode, date)
	if len(rows) > 0 {
		f.rows = append([]core.FormRow(nil), rows...)
	}
	return f
}

func (f *EntryForm) AddRow() error {
	return f.mutate(func() error {
		f.rows = append(f.rows, core.FormRow{Date: f.Date})
		return nil
	})
}

// RemoveRow drops row i as long as another row remains.
func (f *EntryForm) RemoveRow(i int) error {
	return f.mutate(func() error {
		if i < 0 || i >= len(f.rows) {
			return fmt.Errorf("%w: %d", ErrRowIndex, i)
		}
		if len(f.rows) == 1 {
			return ErrLastRow
		}
		f.rows = append(f.rows[:i], f.rows[i+1:]...)
		return nil
	})
}

// Submit hands the draft to fn. A second Submit while fn runs fails with
// ErrBusy.
func (f *EntryForm) Submit(ctx context.Context, fn func(ctx context.Context, rows []core.FormRow) error) error {
	return f.submit(ctx, fn)
}

// EditForm rewrites the rows of one (date, mode, group) scope.
type EditForm struct {
	draft
	Mode        core.Mode
	Group       core.Group
	Date        string
	BaseVersion string
}

// NewEditForm opens a form pre-populated with the scope's current rows.
// version is the scope version those rows were read at.
func NewEditForm(mode core.Mode, group core.Group, date, version string, rows []core.ProductionRow) *EditForm {
	draftRows := make([]core.FormRow, 0, len(rows))
	for _, r := range rows {
		draftRows = append(draftRows, core.FormRow{
			Date:    r.Date,
			Process: r.Process.String(),
			Type:    r.Type.String(),
			Line:    r.Line.String(),
			Inch:    r.Inch.String(),
			Amount:  r.Amount.String(),
		})
	}
	return RestoreEditForm(mode, group, date, version, draftRows)
}

// RestoreEditForm reopens a form around rows posted back by the browser.
// Zero rows is a valid draft.
func RestoreEditForm(mode core.Mode, group core.Group, date, version string, rows []core.FormRow) *EditForm {
	return &EditForm{
		draft:       draft{state: Open, rows: append([]core.FormRow{}, rows...)},
		Mode:        mode,
		Group:       group,
		Date:        date,
		BaseVersion: version,
	}
}

// AddRow appends a blank row dated on the active date.
func (f *EditForm) AddRow() error {
	return f.mutate(func() error {
		f.rows = append(f.rows, core.FormRow{Date: f.Date})
		return nil
	})
}

// DeleteRow drops row i. Deleting the last row is allowed and submits an
// empty batch.
func (f *EditForm) DeleteRow(i int) error {
	return f.mutate(func() error {
		if i < 0 || i >= len(f.rows) {
			return fmt.Errorf("%w: %d", ErrRowIndex, i)
		}
		f.rows = append(f.rows[:i], f.rows[i+1:]...)
		return nil
	})
}

func (f *EditForm) Submit(ctx context.Context, fn func(ctx context.Context, rows []core.FormRow) error) error {
	return f.submit(ctx, fn)
}
