// Package export renders one day of the board as an XLSX workbook: a sheet
// per display group with the request lines followed by the actual totals.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"prodboard/internal/dashboard"
	"prodboard/internal/production"
)

// ContentType is the media type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const warningsSheet = "Unmapped"

var (
	requestHeader = []any{"Item", "Requested", "Actual", "Remainder", "Status"}
	actualHeader  = []any{"Item", "Actual"}
)

var printer = message.NewPrinter(language.English)

// Filename is the download name for the workbook of date.
func Filename(date string) string {
	return "production-" + date + ".xlsx"
}

// Write streams the workbook for v to w.
func Write(w io.Writer, v dashboard.View) error {
	f, err := Day(v)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Day builds the workbook for v. The caller closes it.
func Day(v dashboard.View) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	first := f.GetSheetName(0)
	for i, col := range v.Columns {
		sheet := string(col.Group)
		if i == 0 {
			err = f.SetSheetName(first, sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err == nil {
			err = writeColumn(f, sheet, bold, v.Date, col)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}

	if len(v.Unmapped) > 0 {
		if err := writeUnmapped(f, bold, v.Unmapped); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", warningsSheet, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeColumn(f *excelize.File, sheet string, bold int, date string, col dashboard.Column) error {
	w := sheetWriter{f: f, sheet: sheet, bold: bold}

	w.row(1, true, col.Title)
	w.row(2, false, "Date", date)
	w.row(3, false, printer.Sprintf("%d requested items, %d produced items", len(col.Requests), len(col.Actuals)))

	r := 5
	w.row(r, true, requestHeader...)
	for _, line := range col.Requests {
		r++
		status := "Short"
		if line.Sufficient {
			status = "OK"
		}
		w.row(r, false, line.Item, cell(line.Requested), cell(line.Actual), cell(line.Remainder), status)
	}

	r += 2
	w.row(r, true, actualHeader...)
	for _, line := range col.Actuals {
		r++
		w.row(r, false, line.Item, cell(line.Total))
	}

	if w.err == nil {
		w.err = f.SetColWidth(sheet, "A", "A", 32)
	}
	if w.err == nil {
		w.err = f.SetColWidth(sheet, "B", "E", 12)
	}
	return w.err
}

func writeUnmapped(f *excelize.File, bold int, codes []string) error {
	if _, err := f.NewSheet(warningsSheet); err != nil {
		return err
	}
	w := sheetWriter{f: f, sheet: warningsSheet, bold: bold}
	w.row(1, true, "Process code without a group")
	for i, code := range codes {
		w.row(i+2, false, code)
	}
	return w.err
}

// cell is the spreadsheet value of a total: a number, or the text NaN.
func cell(t production.Total) any {
	if !t.Valid {
		return "NaN"
	}
	return t.Sum.InexactFloat64()
}

// sheetWriter keeps the first error so rows can be written without checking
// each call.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	bold  int
	err   error
}

func (w *sheetWriter) row(r int, header bool, values ...any) {
	if w.err != nil || len(values) == 0 {
		return
	}
	start, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		w.err = err
		return
	}
	if w.err = w.f.SetSheetRow(w.sheet, start, &values); w.err != nil {
		return
	}
	if header {
		end, _ := excelize.CoordinatesToCellName(len(values), r)
		w.err = w.f.SetCellStyle(w.sheet, start, end, w.bold)
	}
}
