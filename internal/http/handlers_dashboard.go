package http

import (
	"bytes"
	"fmt"
	"net/http"

	"prodboard/internal/core"
	"prodboard/internal/dashboard"
	"prodboard/internal/export"
	applog "prodboard/internal/log"
)

// pageData is the full dashboard page: the board and, when the URL asks
// for one, an open modal.
type pageData struct {
	View  dashboard.View
	Modal *modalData
	Modes []core.Mode
}

// boardData is the board partial.
type boardData struct {
	View  dashboard.View
	Modes []core.Mode
}

var modes = []core.Mode{core.ModeRecord, core.ModeRequest}

// handleIndex renders the dashboard. The first request loads the board;
// later ones only recompute the view for ?date=.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	sel := s.selection(r)
	if err := s.board.EnsureLoaded(ctx); err != nil {
		s.logger.WarnContext(ctx, "Dashboard loaded with missing data", applog.FieldError, err)
	}

	sel, modal, err := s.modalFromQuery(r, sel)
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring modal parameters", applog.FieldError, err)
	}
	page := pageData{View: s.board.View(sel), Modal: modal, Modes: modes}

	s.respond(w, r, NewHTMXResponse(), "index.html", page)
}

// handleBoard renders the board partial for ?date=. Navigation never
// fetches; data comes from the last load.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sel := s.selection(r)
	if err := s.board.EnsureLoaded(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Board rendered with missing data", applog.FieldError, err)
	}
	s.respond(w, r, NewHTMXResponse(), "board", boardData{View: s.board.View(sel), Modes: modes})
}

// handleRefresh re-fetches every collection, then renders the board.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	sel := s.selection(r)

	b := NewHTMXResponse()
	if err := s.board.Load(r.Context()); err != nil {
		s.structured.LogError(r.Context(), "Refresh incomplete", err, applog.ComponentDashboard, applog.OpLoad, applog.NewFields())
		b.TriggerWarningNotification("Some data could not be refreshed. Showing the last values received.")
	}
	s.respond(w, r, b, "board", boardData{View: s.board.View(sel), Modes: modes})
}

// handleExport downloads the selected day as a workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sel := s.selection(r)
	if err := s.board.EnsureLoaded(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Export with missing data", applog.FieldError, err)
	}

	var buf bytes.Buffer
	view := dashboard.Build(s.board.Snapshot(), sel.Date, s.board.Location())
	if err := export.Write(&buf, view); err != nil {
		s.structured.LogError(r.Context(), "Export failed", err, applog.ComponentExport, applog.OpExport,
			applog.NewFields().WithScope(sel.Date, "", ""))
		InternalServerError("Export failed").Write(w)
		return
	}

	NewHTMXResponse().
		Header("Content-Type", export.ContentType).
		Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(sel.Date))).
		Body(buf.Bytes()).
		Write(w)
}

// selection reads ?date= (or the posted date). An unreadable date falls
// back to today.
func (s *Server) selection(r *http.Request) dashboard.Selection {
	values := r.URL.Query()
	if r.Method == http.MethodPost {
		values = r.Form
	}
	sel, err := ParseSelection(values, s.board.Location())
	if err != nil {
		s.logger.WarnContext(r.Context(), "Invalid date, showing today",
			applog.FieldDate, values.Get(fieldDate),
			applog.FieldError, err)
	}
	return sel
}

// modalFromQuery opens the modal named by ?modal=entry|edit so a page can
// be bookmarked or reloaded with its form open.
func (s *Server) modalFromQuery(r *http.Request, sel dashboard.Selection) (dashboard.Selection, *modalData, error) {
	q := r.URL.Query()
	switch dashboard.ModalKind(q.Get("modal")) {
	case dashboard.ModalNone:
		return sel, nil, nil
	case dashboard.ModalEntry:
		mode, err := core.ParseMode(q.Get("mode"))
		if err != nil {
			return sel, nil, err
		}
		sel = sel.OpenEntry(mode)
	case dashboard.ModalEdit:
		mode, err := core.ParseMode(q.Get("mode"))
		if err != nil {
			return sel, nil, err
		}
		group, err := core.ParseGroup(q.Get("group"))
		if err != nil {
			return sel, nil, err
		}
		sel = sel.OpenEdit(mode, group)
	default:
		return sel, nil, fmt.Errorf("unknown modal %q", q.Get("modal"))
	}
	return sel, s.openModal(sel), nil
}
