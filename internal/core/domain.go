package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ModeRecord  Mode = "Record"
	ModeRequest Mode = "Request"
)

const (
	GroupLeft  Group = "Left"
	GroupRight Group = "Right"
)

// DefaultGroup is where any process without a group mapping is displayed.
const DefaultGroup = GroupRight

const (
	CategoryProcess Category = "Process"
	CategoryType    Category = "Type"
	CategoryLine    Category = "Line"
)

// Categories lists the metadata categories in display order.
var Categories = []Category{CategoryProcess, CategoryType, CategoryLine}

type (
	// Mode distinguishes actual production counts from requested quotas.
	Mode string

	// Group is one of the two display columns a process maps into.
	Group string

	// Category names a controlled vocabulary in the metadata collection.
	Category string

	// ProductionRow is one stored row, either an actual count or a request
	// depending on the collection it was read from.
	ProductionRow struct {
		Date    string `json:"Date"`
		Process Text   `json:"Process"`
		Type    Text   `json:"Type"`
		Line    Text   `json:"Line"`
		Inch    Text   `json:"Inch"`
		Amount  Amount `json:"Amount"`
		Item    Text   `json:"Item"`
	}

	// MetadataOption is one entry of the dropdown vocabulary.
	MetadataOption struct {
		Category Category `json:"category"`
		Name     Text     `json:"name"`
		Alias    Text     `json:"alias"`
		Group    Group    `json:"group"`
	}

	// DropdownOptions maps each category to its ordered, deduplicated options.
	DropdownOptions map[Category][]MetadataOption

	// Entry is a row to be written along with the collection it belongs to.
	// Group is informational for stores that keep it next to the row.
	Entry struct {
		Row   ProductionRow
		Mode  Mode
		Group Group
	}

	// FormRow is a draft row as typed into a modal form.
	FormRow struct {
		Date    string
		Process string
		Type    string
		Line    string
		Inch    string
		Amount  string
	}
)

var (
	ErrInvalidMode   = errors.New("invalid mode")
	ErrInvalidGroup  = errors.New("invalid group")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidItem   = errors.New("invalid item key")
	ErrInvalidRow    = errors.New("invalid row")
	ErrConflict      = errors.New("rows changed since the form was opened")
	ErrRemote        = errors.New("remote store error")
)

// ParseMode accepts "Record" or "Request", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "record":
		return ModeRecord, nil
	case "request":
		return ModeRequest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ParseGroup accepts "Left" or "Right", case-insensitively.
func ParseGroup(s string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return GroupLeft, nil
	case "right":
		return GroupRight, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGroup, s)
}

func (m Mode) Valid() bool {
	return m == ModeRecord || m == ModeRequest
}

func (g Group) Valid() bool {
	return g == GroupLeft || g == GroupRight
}

func (c Category) Valid() bool {
	switch c {
	case CategoryProcess, CategoryType, CategoryLine:
		return true
	}
	return false
}

// Alias returns the stored alias for a display name in the given category,
// or the value itself when no option matches or the option has no alias.
func (d DropdownOptions) Alias(c Category, value string) string {
	for _, opt := range d[c] {
		if opt.Name.String() == value {
			if a := opt.Alias.String(); a != "" {
				return a
			}
			return value
		}
	}
	return value
}

// IsBlank reports whether every field of the row is empty.
func (r FormRow) IsBlank() bool {
	return strings.TrimSpace(r.Process+r.Type+r.Line+r.Inch+r.Amount) == ""
}

// Validate checks a draft row from the entry form: every selector and the
// inch are required and the amount must look numeric. Amounts are not
// range-checked.
func (r FormRow) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"process", r.Process},
		{"type", r.Type},
		{"line", r.Line},
		{"inch", r.Inch},
		{"amount", r.Amount},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	if _, ok := Amount(r.Amount).Decimal(); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, r.Amount)
	}
	return nil
}
