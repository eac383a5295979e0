// Package core provides the production domain types.
//
// This file contains the loosely typed cell values read back from the
// spreadsheet store: amounts and free text that may arrive as JSON strings
// or numbers.
package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal count kept as the text it was entered or stored as.
// Parsing is deferred so that a non-numeric value can still be carried
// through and poison the totals it contributes to.
type Amount string

// Text is a cell value that may be stored as a string or a number.
type Text string

// Decimal parses the amount. Both "12.5" and "12,5" are accepted.
// ok is false for anything that is not a plain decimal number.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (a Amount) String() string { return strings.TrimSpace(string(a)) }

func (a *Amount) UnmarshalJSON(b []byte) error {
	s, err := cellString(b)
	if err != nil {
		return err
	}
	*a = Amount(s)
	return nil
}

func (t Text) String() string { return strings.TrimSpace(string(t)) }

func (t *Text) UnmarshalJSON(b []byte) error {
	s, err := cellString(b)
	if err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// cellString renders a JSON scalar as text. Numbers keep their literal form
// so that 2 stays "2" rather than "2.000000".
func cellString(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return "", err
		}
		return strconv.FormatBool(v), nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
