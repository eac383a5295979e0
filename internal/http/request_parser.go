// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// the selected date, the mode/group scope of a modal and the draft rows a
// modal posts back.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"prodboard/internal/core"
	"prodboard/internal/dashboard"
	"prodboard/internal/forms"
)

// Row field names. Each is repeated once per draft row, in row order.
const (
	fieldDate    = "date"
	fieldProcess = "process"
	fieldType    = "type"
	fieldLine    = "line"
	fieldInch    = "inch"
	fieldAmount  = "amount"

	// rowDateField carries each row's own date in the edit form, separate
	// from the active date.
	rowDateField = "row_date"
)

// ScopeParams identifies the form a request belongs to.
type ScopeParams struct {
	Mode    core.Mode
	Group   core.Group
	Date    string
	Version string
}

// ParseSelection reads the selected day from values. A missing date means
// today; an unreadable one is reported together with today's selection.
func ParseSelection(values url.Values, loc *time.Location) (dashboard.Selection, error) {
	sel := dashboard.NewSelection(loc)
	raw := strings.TrimSpace(values.Get(fieldDate))
	if raw == "" {
		return sel, nil
	}
	return sel.SelectDate(raw, loc)
}

// ParseEntryScope reads the mode and active date of the entry form.
func ParseEntryScope(values url.Values, loc *time.Location) (ScopeParams, error) {
	mode, err := core.ParseMode(values.Get("mode"))
	if err != nil {
		return ScopeParams{}, err
	}
	date, err := core.NormalizeDate(values.Get(fieldDate), loc)
	if err != nil {
		return ScopeParams{}, err
	}
	return ScopeParams{Mode: mode, Date: date}, nil
}

// ParseEditScope reads mode, group, active date and, when present, the
// scope version of the edit form.
func ParseEditScope(values url.Values, loc *time.Location) (ScopeParams, error) {
	p, err := ParseEntryScope(values, loc)
	if err != nil {
		return ScopeParams{}, err
	}
	if p.Group, err = core.ParseGroup(values.Get("group")); err != nil {
		return ScopeParams{}, err
	}
	p.Version = strings.TrimSpace(values.Get("version"))
	return p, nil
}

// ParseFormRows zips the repeated row fields into draft rows. Rows are as
// long as the longest field list; missing cells are empty. dateField names
// the per-row date field, or "" when rows take no date of their own.
func ParseFormRows(values url.Values, dateField string) []core.FormRow {
	fields := []string{fieldProcess, fieldType, fieldLine, fieldInch, fieldAmount}
	if dateField != "" {
		fields = append(fields, dateField)
	}
	n := 0
	for _, f := range fields {
		n = max(n, len(values[f]))
	}

	at := func(field string, i int) string {
		if i < len(values[field]) {
			return sanitizeInput(values[field][i])
		}
		return ""
	}

	rows := make([]core.FormRow, 0, n)
	for i := 0; i < n; i++ {
		row := core.FormRow{
			Process: at(fieldProcess, i),
			Type:    at(fieldType, i),
			Line:    at(fieldLine, i),
			Inch:    at(fieldInch, i),
			Amount:  at(fieldAmount, i),
		}
		if dateField != "" {
			row.Date = at(dateField, i)
		}
		rows = append(rows, row)
	}
	return rows
}

// RowAction is an add or remove request from a modal's row buttons.
type RowAction struct {
	Add   bool
	Index int
}

// ParseRowAction reads action=add or action=remove&index=N.
func ParseRowAction(values url.Values) (RowAction, error) {
	switch strings.ToLower(strings.TrimSpace(values.Get("action"))) {
	case "add":
		return RowAction{Add: true}, nil
	case "remove", "delete":
		i, err := strconv.Atoi(strings.TrimSpace(values.Get("index")))
		if err != nil {
			return RowAction{}, fmt.Errorf("%w: %q", forms.ErrRowIndex, values.Get("index"))
		}
		return RowAction{Index: i}, nil
	}
	return RowAction{}, fmt.Errorf("unknown row action %q", values.Get("action"))
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET accepts GET and HEAD.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Malformed request")
	}
	return nil
}
