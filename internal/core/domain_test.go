package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseModeAndGroup(t *testing.T) {
	m, err := ParseMode(" request ")
	require.NoError(t, err)
	require.Equal(t, ModeRequest, m)

	_, err = ParseMode("other")
	require.ErrorIs(t, err, ErrInvalidMode)

	g, err := ParseGroup("LEFT")
	require.NoError(t, err)
	require.Equal(t, GroupLeft, g)

	_, err = ParseGroup("")
	require.ErrorIs(t, err, ErrInvalidGroup)
}

func TestFormRowValidate(t *testing.T) {
	good := FormRow{Process: "Foaming", Type: "PVC", Line: "Line 1", Inch: "2", Amount: "12,5"}
	require.NoError(t, good.Validate())

	cases := []struct {
		name string
		row  FormRow
		want error
	}{
		{"missing process", FormRow{Type: "PVC", Line: "L", Inch: "2", Amount: "1"}, ErrMissingField},
		{"missing inch", FormRow{Process: "P", Type: "PVC", Line: "L", Amount: "1"}, ErrMissingField},
		{"missing amount", FormRow{Process: "P", Type: "PVC", Line: "L", Inch: "2"}, ErrMissingField},
		{"non numeric", FormRow{Process: "P", Type: "PVC", Line: "L", Inch: "2", Amount: "ten"}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.row.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	// No range check on amounts.
	neg := good
	neg.Amount = "-3"
	require.NoError(t, neg.Validate())
}

func TestProductionRowDecodesNumbers(t *testing.T) {
	var rows []ProductionRow
	data := `[{"Date":"2024-01-15","Process":"Foaming","Type":"PVC","Line":"L1","Inch":2,"Amount":3.5,"Item":"PVC_L1_2_Foam"},
	          {"Date":"2024-01-15","Process":"Foaming","Type":"PVC","Line":"L1","Inch":"2","Amount":"x","Item":null}]`
	require.NoError(t, json.Unmarshal([]byte(data), &rows))
	require.Len(t, rows, 2)
	require.Equal(t, Text("2"), rows[0].Inch)
	require.Equal(t, Amount("3.5"), rows[0].Amount)
	require.Equal(t, Text(""), rows[1].Item)

	_, ok := rows[1].Amount.Decimal()
	require.False(t, ok)
}

func TestAmountDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"3", "3", true},
		{" 2.50 ", "2.5", true},
		{"1,25", "1.25", true},
		{"-4", "-4", true},
		{"", "0", false},
		{"abc", "0", false},
		{"1.2.3", "0", false},
	}
	for _, tc := range cases {
		d, ok := Amount(tc.in).Decimal()
		if ok != tc.ok || d.String() != tc.want {
			t.Fatalf("%q: got (%s, %v), want (%s, %v)", tc.in, d, ok, tc.want, tc.ok)
		}
	}
}

func TestDropdownAlias(t *testing.T) {
	opts := DropdownOptions{
		CategoryProcess: {
			{Category: CategoryProcess, Name: "Foaming", Alias: "Foam", Group: GroupLeft},
			{Category: CategoryProcess, Name: "Elbow", Group: GroupRight},
		},
	}
	require.Equal(t, "Foam", opts.Alias(CategoryProcess, "Foaming"))
	require.Equal(t, "Elbow", opts.Alias(CategoryProcess, "Elbow"))
	require.Equal(t, "Unknown", opts.Alias(CategoryProcess, "Unknown"))
	require.Equal(t, "PVC", opts.Alias(CategoryType, "PVC"))
}

func TestItemKeyRoundTrip(t *testing.T) {
	opts := DropdownOptions{
		CategoryProcess: {{Category: CategoryProcess, Name: "Foaming", Alias: "Foam"}},
		CategoryType:    {{Category: CategoryType, Name: "Polyvinyl", Alias: "PVC"}},
		CategoryLine:    {{Category: CategoryLine, Name: "Line 1", Alias: "L1"}},
	}
	k := NewItemKey(opts, "Foaming", "Polyvinyl", "Line 1", "2")
	require.Equal(t, "PVC_L1_2_Foam", k.String())

	back, err := ParseItemKey(k.String())
	require.NoError(t, err)
	require.Equal(t, k, back)

	odd, err := ParseItemKey("PVC_L1_1_1_2_Foam")
	require.NoError(t, err)
	require.Equal(t, "1_1_2", odd.Inch)

	_, err = k.Encode(ItemKeyVersion(9))
	require.ErrorIs(t, err, ErrInvalidItem)

	_, err = ParseItemKey("PVC_Foam")
	require.ErrorIs(t, err, ErrInvalidItem)
}

func TestProcessCode(t *testing.T) {
	require.Equal(t, "Foam", ProcessCode("PVC_L1_2_Foam"))
	require.Equal(t, "Foam", ProcessCode("L1_Foam"))
	require.Equal(t, "Foam", ProcessCode("Foam"))
}

func TestNormalizeDate(t *testing.T) {
	rome := time.FixedZone("CET", 3600)

	cases := []struct {
		in   string
		loc  *time.Location
		want string
	}{
		{"2024-01-15", rome, "2024-01-15"},
		{"2024-01-15", time.UTC, "2024-01-15"},
		{"2024-01-15T23:30:00Z", rome, "2024-01-16"},
		{"2024-01-15T23:30:00Z", time.UTC, "2024-01-15"},
		{"2024-01-15T23:30:00.000Z", rome, "2024-01-16"},
		{"2024-01-15 08:00:00", rome, "2024-01-15"},
		{" 2024/01/15 ", time.UTC, "2024-01-15"},
	}
	for _, tc := range cases {
		got, err := NormalizeDate(tc.in, tc.loc)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}

	_, err := NormalizeDate("yesterday", time.UTC)
	require.ErrorIs(t, err, ErrInvalidDate)
	_, err = NormalizeDate("", time.UTC)
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestAddDays(t *testing.T) {
	next, err := AddDays("2024-01-15", 1)
	require.NoError(t, err)
	require.Equal(t, "2024-01-16", next)

	prev, err := AddDays("2024-03-01", -1)
	require.NoError(t, err)
	require.Equal(t, "2024-02-29", prev)

	_, err = AddDays("15/01/2024", 1)
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestScopeVersion(t *testing.T) {
	a := ProductionRow{Date: "2024-01-15", Item: "A", Amount: "3"}
	b := ProductionRow{Date: "2024-01-15", Item: "B", Amount: "5"}

	require.Equal(t, ScopeVersion([]ProductionRow{a, b}), ScopeVersion([]ProductionRow{b, a}))
	require.Equal(t, ScopeVersion(nil), ScopeVersion([]ProductionRow{}))

	b2 := b
	b2.Amount = "6"
	require.NotEqual(t, ScopeVersion([]ProductionRow{a, b}), ScopeVersion([]ProductionRow{a, b2}))
}

func TestBatchValidate(t *testing.T) {
	require.NoError(t, Batch{Date: "2024-01-15", Mode: ModeRecord, Group: GroupLeft}.Validate())
	require.ErrorIs(t, Batch{Date: "2024-01-15", Mode: "x", Group: GroupLeft}.Validate(), ErrInvalidMode)
	require.ErrorIs(t, Batch{Date: "2024-01-15", Mode: ModeRecord}.Validate(), ErrInvalidGroup)
	require.ErrorIs(t, Batch{Mode: ModeRecord, Group: GroupRight}.Validate(), ErrInvalidDate)
}

func TestWithoutRows(t *testing.T) {
	a := ProductionRow{Date: "2024-01-15", Item: "A", Amount: "3"}
	b := ProductionRow{Date: "2024-01-15", Item: "B", Amount: "5"}
	c := ProductionRow{Date: "2024-01-16", Item: "A", Amount: "3"}

	got := WithoutRows([]ProductionRow{a, b, a, c}, []ProductionRow{a})
	require.Equal(t, []ProductionRow{b, a, c}, got)

	require.Equal(t, []ProductionRow{a, b}, WithoutRows([]ProductionRow{a, b}, nil))
	require.True(t, SameRow(a, ProductionRow{Date: " 2024-01-15", Item: "A ", Amount: "3"}))
}
