package dashboard

import (
	"time"

	"prodboard/internal/core"
)

// ModalKind identifies which form, if any, is open over the board.
type ModalKind string

const (
	ModalNone  ModalKind = ""
	ModalEntry ModalKind = "entry"
	ModalEdit  ModalKind = "edit"
)

// Modal is the open form and the scope it was opened for. Group is only
// meaningful for the edit form.
type Modal struct {
	Kind  ModalKind
	Mode  core.Mode
	Group core.Group
}

// Selection is what the viewer is looking at: one day and at most one
// open modal.
type Selection struct {
	Date  string
	Modal Modal
}

// NewSelection starts on today's date in loc.
func NewSelection(loc *time.Location) Selection {
	return Selection{Date: core.Today(loc)}
}

// SelectDate moves to a typed or stored date, normalized in loc.
func (s Selection) SelectDate(raw string, loc *time.Location) (Selection, error) {
	d, err := core.NormalizeDate(raw, loc)
	if err != nil {
		return s, err
	}
	s.Date = d
	return s, nil
}

// Navigate moves the selected date by days.
func (s Selection) Navigate(days int) (Selection, error) {
	d, err := core.AddDays(s.Date, days)
	if err != nil {
		return s, err
	}
	s.Date = d
	return s, nil
}

// OpenEntry opens the create form for mode.
func (s Selection) OpenEntry(mode core.Mode) Selection {
	s.Modal = Modal{Kind: ModalEntry, Mode: mode}
	return s
}

// OpenEdit opens the edit form for one (mode, group) scope.
func (s Selection) OpenEdit(mode core.Mode, group core.Group) Selection {
	s.Modal = Modal{Kind: ModalEdit, Mode: mode, Group: group}
	return s
}

// CloseModal closes any open form.
func (s Selection) CloseModal() Selection {
	s.Modal = Modal{}
	return s
}
