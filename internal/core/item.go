package core

import (
	"fmt"
	"strings"
)

// ItemKeyVersion selects the wire encoding of an ItemKey.
type ItemKeyVersion int

const (
	// ItemKeyV1 is "{TypeAlias}_{LineAlias}_{Inch}_{ProcessAlias}".
	ItemKeyV1 ItemKeyVersion = 1
)

const itemSep = "_"

// ItemKey identifies a product and the process that produced it.
type ItemKey struct {
	TypeAlias    string
	LineAlias    string
	Inch         string
	ProcessAlias string
}

// NewItemKey builds a key from display values, resolving each selector to
// its stored alias.
func NewItemKey(opts DropdownOptions, process, typ, line, inch string) ItemKey {
	return ItemKey{
		TypeAlias:    opts.Alias(CategoryType, strings.TrimSpace(typ)),
		LineAlias:    opts.Alias(CategoryLine, strings.TrimSpace(line)),
		Inch:         strings.TrimSpace(inch),
		ProcessAlias: opts.Alias(CategoryProcess, strings.TrimSpace(process)),
	}
}

// Encode serializes the key with the given version.
func (k ItemKey) Encode(v ItemKeyVersion) (string, error) {
	switch v {
	case ItemKeyV1:
		return strings.Join([]string{k.TypeAlias, k.LineAlias, k.Inch, k.ProcessAlias}, itemSep), nil
	}
	return "", fmt.Errorf("%w: unknown version %d", ErrInvalidItem, v)
}

// String returns the current wire encoding.
func (k ItemKey) String() string {
	s, _ := k.Encode(ItemKeyV1)
	return s
}

// ParseItemKey decodes a v1 key. The first two segments are type and line,
// the last is the process and anything between is the inch, so inches that
// contain the separator survive a round trip.
func ParseItemKey(s string) (ItemKey, error) {
	parts := strings.Split(strings.TrimSpace(s), itemSep)
	if len(parts) < 4 {
		return ItemKey{}, fmt.Errorf("%w: %q", ErrInvalidItem, s)
	}
	k := ItemKey{
		TypeAlias:    parts[0],
		LineAlias:    parts[1],
		Inch:         strings.Join(parts[2:len(parts)-1], itemSep),
		ProcessAlias: parts[len(parts)-1],
	}
	if k.ProcessAlias == "" {
		return ItemKey{}, fmt.Errorf("%w: empty process in %q", ErrInvalidItem, s)
	}
	return k, nil
}

// ProcessCode returns the process segment of an item key. Keys that do not
// parse as v1 fall back to their trailing segment.
func ProcessCode(item string) string {
	if k, err := ParseItemKey(item); err == nil {
		return k.ProcessAlias
	}
	s := strings.TrimSpace(item)
	if i := strings.LastIndex(s, itemSep); i >= 0 {
		return s[i+1:]
	}
	return s
}
