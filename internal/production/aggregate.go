// Package production shapes fetched rows into the per-day, per-group view:
// date filtering, per-item sums, and Left/Right classification.
package production

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"prodboard/internal/core"
)

// Total is the running sum for one item. Valid turns false as soon as any
// contributing amount fails to parse, and stays false.
type Total struct {
	Sum   decimal.Decimal
	Valid bool
}

// String renders the total, or NaN once it has been poisoned.
func (t Total) String() string {
	if !t.Valid {
		return "NaN"
	}
	return t.Sum.String()
}

// Add returns the total with one more amount folded in.
func (t Total) Add(a core.Amount) Total {
	d, ok := a.Decimal()
	if !ok {
		return Total{Sum: t.Sum, Valid: false}
	}
	return Total{Sum: t.Sum.Add(d), Valid: t.Valid}
}

// FilterByDate keeps the rows whose date falls on the same calendar day as
// date, both normalized in loc. Rows with an unreadable date never match.
func FilterByDate(rows []core.ProductionRow, date string, loc *time.Location) []core.ProductionRow {
	target, err := core.NormalizeDate(date, loc)
	if err != nil {
		return nil
	}
	out := make([]core.ProductionRow, 0, len(rows))
	for _, r := range rows {
		d, err := core.NormalizeDate(r.Date, loc)
		if err != nil || d != target {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SumByItem adds up amounts per item key. Duplicate keys sum.
func SumByItem(rows []core.ProductionRow) map[string]Total {
	totals := make(map[string]Total, len(rows))
	for _, r := range rows {
		key := r.Item.String()
		t, seen := totals[key]
		if !seen {
			t = Total{Sum: decimal.Zero, Valid: true}
		}
		totals[key] = t.Add(r.Amount)
	}
	return totals
}

// Items returns the keys of a totals map in a stable order.
func Items(totals map[string]Total) []string {
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
