package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"prodboard/internal/core"
	"prodboard/internal/production"
)

// View is everything the board template needs for one day.
type View struct {
	Date     string
	Prev     string
	Next     string
	Columns  []Column
	Unmapped []string
	Options  core.DropdownOptions
	Loaded   bool
	Modal    Modal
}

// Column is one display group: request lines first, then actual totals.
type Column struct {
	Group          core.Group
	Title          string
	Requests       []RequestLine
	Actuals        []ActualLine
	RequestVersion string
	RecordVersion  string
}

// RequestLine compares a requested quantity with what was produced.
// Remainder is actual minus requested, so a deficit is negative.
type RequestLine struct {
	Item       string
	Requested  production.Total
	Actual     production.Total
	Remainder  production.Total
	Sufficient bool
}

type ActualLine struct {
	Item  string
	Total production.Total
}

// Column returns the column of group g, or a zero Column.
func (v View) Column(g core.Group) Column {
	for _, c := range v.Columns {
		if c.Group == g {
			return c
		}
	}
	return Column{Group: g}
}

// Build derives the board for date from d. It is a pure function of its
// inputs.
func Build(d Data, date string, loc *time.Location) View {
	v := View{Date: date, Options: d.Options}
	if prev, err := core.AddDays(date, -1); err == nil {
		v.Prev = prev
	}
	if next, err := core.AddDays(date, 1); err == nil {
		v.Next = next
	}

	actual := production.SumByItem(production.FilterByDate(d.Production, date, loc))
	requested := production.SumByItem(production.FilterByDate(d.Requests, date, loc))

	cols := map[core.Group]*Column{
		core.GroupLeft:  {Group: core.GroupLeft, Title: columnTitle(d.Options, core.GroupLeft)},
		core.GroupRight: {Group: core.GroupRight, Title: columnTitle(d.Options, core.GroupRight)},
	}
	unmapped := map[string]struct{}{}
	classify := func(item string) core.Group {
		g, ok := production.ClassifyReport(item, d.Index)
		if !ok {
			if code := strings.TrimSpace(core.ProcessCode(item)); code != "" {
				unmapped[code] = struct{}{}
			}
		}
		return g
	}

	for _, item := range production.Items(requested) {
		req := requested[item]
		act, ok := actual[item]
		if !ok {
			act = production.Total{Sum: decimal.Zero, Valid: true}
		}
		line := RequestLine{
			Item:      item,
			Requested: req,
			Actual:    act,
			Remainder: production.Total{
				Sum:   act.Sum.Sub(req.Sum),
				Valid: act.Valid && req.Valid,
			},
		}
		line.Sufficient = line.Remainder.Valid && !line.Remainder.Sum.IsNegative()
		c := cols[classify(item)]
		c.Requests = append(c.Requests, line)
	}
	for _, item := range production.Items(actual) {
		c := cols[classify(item)]
		c.Actuals = append(c.Actuals, ActualLine{Item: item, Total: actual[item]})
	}

	for _, g := range []core.Group{core.GroupLeft, core.GroupRight} {
		c := cols[g]
		c.RequestVersion = core.ScopeVersion(ScopeRows(d, date, core.ModeRequest, g, loc))
		c.RecordVersion = core.ScopeVersion(ScopeRows(d, date, core.ModeRecord, g, loc))
		v.Columns = append(v.Columns, *c)
	}

	for code := range unmapped {
		v.Unmapped = append(v.Unmapped, code)
	}
	sort.Strings(v.Unmapped)
	return v
}

// Version returns the scope version of mode in this column.
func (c Column) Version(mode core.Mode) string {
	if mode == core.ModeRequest {
		return c.RequestVersion
	}
	return c.RecordVersion
}

func columnTitle(opts core.DropdownOptions, g core.Group) string {
	names := production.ProcessNames(opts, g)
	if len(names) == 0 {
		return string(g)
	}
	return strings.Join(names, " / ")
}
