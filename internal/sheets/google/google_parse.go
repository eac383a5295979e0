package google

import (
	"fmt"
	"strings"

	"prodboard/internal/core"
)

var rowHeaders = []string{"Date", "Process", "Type", "Line", "Inch", "Amount", "Item"}

var metaHeaders = []string{"Category", "Name", "Alias", "Group"}

// parseRows converts a values matrix into production rows. When the first
// row is a header, columns are located by name; otherwise they are read in
// the A..G order. Fully blank rows are skipped.
func parseRows(values [][]any) []core.ProductionRow {
	cols, body := columns(values, rowHeaders)
	out := make([]core.ProductionRow, 0, len(body))
	for _, raw := range body {
		row := toStrings(raw)
		r := core.ProductionRow{
			Date:    safeGet(row, cols[0]),
			Process: core.Text(safeGet(row, cols[1])),
			Type:    core.Text(safeGet(row, cols[2])),
			Line:    core.Text(safeGet(row, cols[3])),
			Inch:    core.Text(safeGet(row, cols[4])),
			Amount:  core.Amount(safeGet(row, cols[5])),
			Item:    core.Text(safeGet(row, cols[6])),
		}
		if strings.Join(row, "") == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// parseMeta converts the metadata tab into raw options. Validation and
// deduplication are left to the caller.
func parseMeta(values [][]any) []core.MetadataOption {
	cols, body := columns(values, metaHeaders)
	out := make([]core.MetadataOption, 0, len(body))
	for _, raw := range body {
		row := toStrings(raw)
		if strings.Join(row, "") == "" {
			continue
		}
		out = append(out, core.MetadataOption{
			Category: core.Category(safeGet(row, cols[0])),
			Name:     core.Text(safeGet(row, cols[1])),
			Alias:    core.Text(safeGet(row, cols[2])),
			Group:    core.Group(safeGet(row, cols[3])),
		})
	}
	return out
}

// columns returns the index of each wanted header and the data rows below
// it. Without a recognizable header every column is positional.
func columns(values [][]any, want []string) ([]int, [][]any) {
	idx := make([]int, len(want))
	for i := range want {
		idx[i] = i
	}
	if len(values) == 0 || !isHeader(toStrings(values[0]), want) {
		return idx, values
	}
	headers := toStrings(values[0])
	for i, h := range want {
		idx[i] = indexOf(headers, h)
	}
	return idx, values[1:]
}

// isHeader reports whether row names either of the first two wanted columns.
func isHeader(row, want []string) bool {
	return indexOf(row, want[0]) != -1 || indexOf(row, want[1]) != -1
}

// encodeRow lays r out in the tab's column order, width cells wide. Fields
// whose column the tab lacks are dropped.
func encodeRow(r core.ProductionRow, cols []int, width int) []any {
	fields := rowValues(r)
	out := padRow(nil, width)
	for i, c := range cols {
		if c >= 0 && c < width {
			out[c] = fields[i]
		}
	}
	return out
}

// padRow copies row into width cells, filling the rest with blanks so an
// update overwrites every cell of the range.
func padRow(row []any, width int) []any {
	out := make([]any, max(width, len(row)))
	for i := range out {
		out[i] = ""
	}
	copy(out, row)
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
