package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the normalized calendar date format used everywhere a day
// is compared, displayed or written.
const DateLayout = "2006-01-02"

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02 15:04:05Z07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006/01/02",
	"02/01/2006",
}

// NormalizeDate renders a stored or typed date as YYYY-MM-DD in loc.
//
// Plain calendar dates are returned as-is. Timestamps carrying a zone are
// converted into loc before the day is taken, so a row written at
// 2024-01-15T23:30:00Z lands on the 16th in a UTC+1 location. Timestamps
// without a zone are read as wall-clock time in loc.
func NormalizeDate(raw string, loc *time.Location) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if loc == nil {
		loc = time.Local
	}
	if len(s) == len(DateLayout) {
		if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc).Format(DateLayout), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc).Format(DateLayout)
}

// AddDays shifts a normalized date by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}
