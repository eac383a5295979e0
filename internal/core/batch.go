package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Batch replaces every row of one (date, mode, group) scope.
//
// BaseVersion is the ScopeVersion observed when the rows were loaded; an
// empty BaseVersion skips the staleness check. Previous holds the rows the
// scope contained at submit time. Stores that do not keep a group per row
// remove exactly those rows before writing Rows.
type Batch struct {
	Date        string
	Mode        Mode
	Group       Group
	Rows        []ProductionRow
	BaseVersion string
	Previous    []ProductionRow
}

func (b Batch) Validate() error {
	if !b.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, b.Mode)
	}
	if !b.Group.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, b.Group)
	}
	if strings.TrimSpace(b.Date) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	return nil
}

// SameRow reports whether two rows carry identical stored values.
func SameRow(a, b ProductionRow) bool {
	return rowLine(a) == rowLine(b)
}

// ScopeVersion fingerprints a set of rows independent of their order.
// Two reads of an untouched scope always yield the same version.
func ScopeVersion(rows []ProductionRow) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = rowLine(r)
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\x1e")))
	return hex.EncodeToString(sum[:8])
}

func rowLine(r ProductionRow) string {
	return strings.Join([]string{
		strings.TrimSpace(r.Date),
		r.Process.String(),
		r.Type.String(),
		r.Line.String(),
		r.Inch.String(),
		r.Amount.String(),
		r.Item.String(),
	}, "\x1f")
}

// WithoutRows removes one occurrence of each row in drop from rows,
// preserving the order of what remains.
func WithoutRows(rows, drop []ProductionRow) []ProductionRow {
	pending := make(map[string]int, len(drop))
	for _, d := range drop {
		pending[rowLine(d)]++
	}
	out := make([]ProductionRow, 0, len(rows))
	for _, r := range rows {
		k := rowLine(r)
		if pending[k] > 0 {
			pending[k]--
			continue
		}
		out = append(out, r)
	}
	return out
}
