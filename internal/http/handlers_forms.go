package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"prodboard/internal/core"
	"prodboard/internal/dashboard"
	"prodboard/internal/forms"
	applog "prodboard/internal/log"
	"prodboard/internal/services"
)

// modalData is what the entry and edit modal templates render. The draft
// lives in the page: every row action posts the rows back and gets the
// modal re-rendered.
type modalData struct {
	Kind      dashboard.ModalKind
	Mode      core.Mode
	Group     core.Group
	Date      string
	Version   string
	Title     string
	Rows      []core.FormRow
	Processes []string
	Types     []string
	Lines     []string
	Error     string
	CanRemove bool
}

func optionNames(opts core.DropdownOptions, c core.Category) []string {
	names := make([]string, 0, len(opts[c]))
	for _, o := range opts[c] {
		names = append(names, o.Name.String())
	}
	return names
}

func (s *Server) newModal(kind dashboard.ModalKind, mode core.Mode, group core.Group, date string, rows []core.FormRow) *modalData {
	opts := s.board.Snapshot().Options
	m := &modalData{
		Kind:      kind,
		Mode:      mode,
		Group:     group,
		Date:      date,
		Rows:      rows,
		Processes: optionNames(opts, core.CategoryProcess),
		Types:     optionNames(opts, core.CategoryType),
		Lines:     optionNames(opts, core.CategoryLine),
	}
	if kind == dashboard.ModalEdit {
		m.Title = fmt.Sprintf("Edit %s, %s", mode, s.board.View(dashboard.Selection{Date: date}).Column(group).Title)
		m.CanRemove = true
	} else {
		m.Title = fmt.Sprintf("New %s", mode)
		m.CanRemove = len(rows) > 1
	}
	return m
}

func (s *Server) entryModal(f *forms.EntryForm, errMsg string) *modalData {
	m := s.newModal(dashboard.ModalEntry, f.Mode, "", f.Date, f.Rows())
	m.Error = errMsg
	return m
}

func (s *Server) editModal(f *forms.EditForm, errMsg string) *modalData {
	m := s.newModal(dashboard.ModalEdit, f.Mode, f.Group, f.Date, f.Rows())
	m.Version = f.BaseVersion
	m.Error = errMsg
	return m
}

// openModal builds a fresh form for the modal the selection has open.
func (s *Server) openModal(sel dashboard.Selection) *modalData {
	switch sel.Modal.Kind {
	case dashboard.ModalEntry:
		return s.entryModal(forms.NewEntryForm(sel.Modal.Mode, sel.Date), "")
	case dashboard.ModalEdit:
		rows, version := s.edits.Open(sel.Modal.Mode, sel.Modal.Group, sel.Date)
		return s.editModal(forms.NewEditForm(sel.Modal.Mode, sel.Modal.Group, sel.Date, version, rows), "")
	}
	return nil
}

func (s *Server) writeModal(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, m *modalData) {
	s.respond(w, r, b, "modal", m)
}

// handleEntryModal opens the entry form for ?mode= on ?date=.
func (s *Server) handleEntryModal(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	scope, err := ParseEntryScope(r.URL.Query(), s.board.Location())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.board.EnsureLoaded(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Entry form opened with missing metadata", applog.FieldError, err)
	}
	sel := dashboard.Selection{Date: scope.Date}.OpenEntry(scope.Mode)
	s.writeModal(w, r, NewHTMXResponse(), s.openModal(sel))
}

// handleEntryRows adds or removes a draft row of the entry form.
func (s *Server) handleEntryRows(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	scope, err := ParseEntryScope(r.PostForm, s.board.Location())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	f := forms.RestoreEntryForm(scope.Mode, scope.Date, ParseFormRows(r.PostForm, ""))

	action, err := ParseRowAction(r.PostForm)
	if err == nil {
		if action.Add {
			err = f.AddRow()
		} else {
			err = f.RemoveRow(action.Index)
		}
	}
	if err != nil {
		s.writeModal(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), s.entryModal(f, messageForError(err)))
		return
	}
	s.writeModal(w, r, NewHTMXResponse(), s.entryModal(f, ""))
}

// handleSubmitEntry writes the entry form's rows. On success the modal is
// cleared and the board asked to refresh; on failure the draft comes back
// with the reason.
func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	scope, err := ParseEntryScope(r.PostForm, s.board.Location())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	f := forms.RestoreEntryForm(scope.Mode, scope.Date, ParseFormRows(r.PostForm, ""))

	release, err := s.inflight.Acquire(forms.EntryKey(string(scope.Mode), scope.Date))
	if err != nil {
		s.submitFailed(w, r, err, s.entryModal(f, messageForError(err)))
		return
	}
	defer release()

	var saved int
	err = f.Submit(r.Context(), func(ctx context.Context, rows []core.FormRow) error {
		n, err := s.entries.Submit(ctx, scope.Mode, scope.Date, rows)
		saved = n
		return err
	})
	if err != nil {
		var partial *services.PartialWriteError
		if errors.As(err, &partial) {
			atomic.AddInt64(&s.appMetrics.rowsSaved, int64(partial.Written))
		}
		s.submitFailed(w, r, err, s.entryModal(f, messageForError(err)))
		return
	}

	atomic.AddInt64(&s.appMetrics.rowsSaved, int64(saved))
	s.submitSucceeded(w, scope.Date, fmt.Sprintf("%d %s rows saved", saved, scope.Mode))
}

// handleEditModal opens the edit form of ?mode= and ?group= on ?date=.
func (s *Server) handleEditModal(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	scope, err := ParseEditScope(r.URL.Query(), s.board.Location())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.board.EnsureLoaded(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Edit form opened with missing data", applog.FieldError, err)
	}
	sel := dashboard.Selection{Date: scope.Date}.OpenEdit(scope.Mode, scope.Group)
	s.writeModal(w, r, NewHTMXResponse(), s.openModal(sel))
}

// handleEditRows appends or deletes a draft row of the edit form.
func (s *Server) handleEditRows(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	scope, err := ParseEditScope(r.PostForm, s.board.Location())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	f := forms.RestoreEditForm(scope.Mode, scope.Group, scope.Date, scope.Version, ParseFormRows(r.PostForm, rowDateField))

	action, err := ParseRowAction(r.PostForm)
	if err == nil {
		if action.Add {
			err = f.AddRow()
		} else {
			err = f.DeleteRow(action.Index)
		}
	}
	if err != nil {
		s.writeModal(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), s.editModal(f, messageForError(err)))
		return
	}
	s.writeModal(w, r, NewHTMXResponse(), s.editModal(f, ""))
}

// handleSubmitBatch replaces the edited scope with the posted rows.
func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	scope, err := ParseEditScope(r.PostForm, s.board.Location())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	f := forms.RestoreEditForm(scope.Mode, scope.Group, scope.Date, scope.Version, ParseFormRows(r.PostForm, rowDateField))

	release, err := s.inflight.Acquire(forms.EditKey(string(scope.Mode), string(scope.Group), scope.Date))
	if err != nil {
		s.submitFailed(w, r, err, s.editModal(f, messageForError(err)))
		return
	}
	defer release()

	var saved int
	err = f.Submit(r.Context(), func(ctx context.Context, rows []core.FormRow) error {
		n, err := s.edits.Submit(ctx, services.EditRequest{
			Date:        scope.Date,
			Mode:        scope.Mode,
			Group:       scope.Group,
			BaseVersion: scope.Version,
			Rows:        rows,
		})
		saved = n
		return err
	})
	if err != nil {
		s.submitFailed(w, r, err, s.editModal(f, messageForError(err)))
		return
	}

	atomic.AddInt64(&s.appMetrics.batchesSaved, 1)
	atomic.AddInt64(&s.appMetrics.rowsSaved, int64(saved))
	s.submitSucceeded(w, scope.Date, fmt.Sprintf("%s %s saved with %d rows", scope.Group, scope.Mode, saved))
}

// submitSucceeded clears the modal and asks the board to re-render.
func (s *Server) submitSucceeded(w http.ResponseWriter, date, message string) {
	NewHTMXResponse().
		TriggerBoardRefresh(date).
		TriggerModalClosed().
		TriggerSuccessNotification(message).
		Write(w)
}

// submitFailed re-renders the draft with the error's status and notice.
func (s *Server) submitFailed(w http.ResponseWriter, r *http.Request, err error, m *modalData) {
	atomic.AddInt64(&s.appMetrics.submitErrors, 1)
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Form submit failed", err, applog.ComponentHTTP, applog.OpCreate,
			applog.NewFields().WithScope(m.Date, string(m.Mode), string(m.Group)))
	} else {
		s.logger.WarnContext(r.Context(), "Form submit rejected",
			applog.FieldError, err,
			applog.FieldStatusCode, status)
	}
	s.writeModal(w, r, NewHTMXResponse().Status(status).TriggerErrorNotification(m.Error), m)
}
