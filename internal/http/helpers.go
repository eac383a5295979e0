package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"prodboard/internal/core"
	"prodboard/internal/forms"
	"prodboard/internal/production"
	"prodboard/internal/services"
)

var printer = message.NewPrinter(language.English)

// formatTotal renders a quantity with thousands separators, or NaN when
// one of its amounts did not parse.
func formatTotal(t production.Total) string {
	if !t.Valid {
		return "NaN"
	}
	return printer.Sprint(number.Decimal(t.Sum.InexactFloat64(), number.MaxFractionDigits(3)))
}

// formatSigned renders a surplus with a leading plus and a deficit with a
// leading minus.
func formatSigned(t production.Total) string {
	s := formatTotal(t)
	if t.Valid && t.Sum.IsPositive() {
		return "+" + s
	}
	return s
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"total":  formatTotal,
		"signed": formatSigned,
		"lower":  strings.ToLower,
		"add":    func(a, b int) int { return a + b },
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// statusForError maps a submission error to the status the modal is
// re-rendered with.
func statusForError(err error) int {
	var partial *services.PartialWriteError
	switch {
	case errors.Is(err, core.ErrConflict), errors.Is(err, forms.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &partial), errors.Is(err, core.ErrRemote):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrInvalidRow),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidMode),
		errors.Is(err, core.ErrInvalidGroup),
		errors.Is(err, core.ErrMissingField),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, forms.ErrRowIndex),
		errors.Is(err, forms.ErrLastRow):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// messageForError is the notice shown above the draft rows.
func messageForError(err error) string {
	var partial *services.PartialWriteError
	switch {
	case errors.Is(err, core.ErrConflict):
		return "These rows changed since the form was opened. Close the form and open it again to see the current rows."
	case errors.Is(err, forms.ErrBusy):
		return "This form is already being saved. Wait for it to finish."
	case errors.As(err, &partial):
		return fmt.Sprintf("Saved %d of %d rows, then the store failed. The remaining rows were not written.", partial.Written, partial.Total)
	case errors.Is(err, core.ErrRemote):
		return "The store could not be reached. Nothing was saved, try again."
	case errors.Is(err, forms.ErrLastRow):
		return "The form needs at least one row."
	}
	if statusForError(err) == http.StatusUnprocessableEntity {
		return "Check the rows: " + err.Error()
	}
	return "Saving failed. Try again."
}
