package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{`="12345"`, "12345"},
		{"=SUM(A1)", "SUM(A1)"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"", ""},
		{"  ", ""},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanCell(tt.in), "CleanCell(%q)", tt.in)
	}
}

func TestParseInteger(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"30", 30, true},
		{"-17", -17, true},
		{"+5", 5, true},
		{"1,234,567", 1234567, true},
		{"$99", 99, true},
		{"€42", 42, true},
		{"(123)", -123, true},
		{"30.0", 30, true},
		{"30.5", 0, false},
		{"thirty", 0, false},
		{"", 0, false},
		{"1 2", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseInteger(tt.in)
		assert.Equal(t, tt.ok, ok, "parseInteger(%q) ok", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "parseInteger(%q)", tt.in)
		}
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"3.14", 3.14, true},
		{"-0.5", -0.5, true},
		{"$1,234.56", 1234.56, true},
		{"(2.5)", -2.5, true},
		{"1e3", 1000, true},
		{"1.5e-2", 0.015, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseFloat(tt.in)
		assert.Equal(t, tt.ok, ok, "parseFloat(%q) ok", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "parseFloat(%q)", tt.in)
		}
	}
}

func TestParseBool(t *testing.T) {
	trues := []string{"true", "True", "TRUE", "t", "yes", "Yes", "y", "1"}
	falses := []string{"false", "False", "f", "no", "No", "n", "0"}

	for _, v := range trues {
		got, ok := parseBool(v)
		assert.True(t, ok, "parseBool(%q) ok", v)
		assert.True(t, got, "parseBool(%q)", v)
	}
	for _, v := range falses {
		got, ok := parseBool(v)
		assert.True(t, ok, "parseBool(%q) ok", v)
		assert.False(t, got, "parseBool(%q)", v)
	}

	_, ok := parseBool("maybe")
	assert.False(t, ok)
	_, ok = parseBool("2")
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-15", "2024-01-15", true},
		{"2024/01/15", "2024-01-15", true},
		{"1/15/2024", "2024-01-15", true},
		{"01/15/2024", "2024-01-15", true},
		{"Jan 15, 2024", "2024-01-15", true},
		{"15 Jan 2024", "2024-01-15", true},
		{"20240115", "2024-01-15", true},
		{"not a date", "", false},
		{"2024-13-45", "", false},
	}

	for _, tt := range tests {
		got, ok := parseDate(tt.in, nil)
		assert.Equal(t, tt.ok, ok, "parseDate(%q) ok", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got.Format("2006-01-02"), "parseDate(%q)", tt.in)
		}
	}
}

func TestParseDate_TwoDigitYearPivot(t *testing.T) {
	// 1/15/99 is decades away if read as 2099, so it pivots to 1999.
	got, ok := parseDate("1/15/99", nil)
	require.True(t, ok)
	assert.Equal(t, 1999, got.Year())

	// 1/15/24 stays in the current century.
	got, ok = parseDate("1/15/24", nil)
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())
}

func TestParseDate_CustomLayouts(t *testing.T) {
	// EU day-first layout takes priority when configured.
	got, ok := parseDate("15/01/2024", []string{"02/01/2006"})
	require.True(t, ok)
	assert.Equal(t, "2024-01-15", got.Format("2006-01-02"))

	// The custom list replaces the defaults entirely.
	_, ok = parseDate("2024-01-15", []string{"02/01/2006"})
	assert.False(t, ok)
}

func TestParseDateTime(t *testing.T) {
	got, ok := parseDateTime("2024-01-15 10:30:00", nil)
	require.True(t, ok)
	assert.Equal(t, "2024-01-15 10:30:00", got.Format("2006-01-02 15:04:05"))

	got, ok = parseDateTime("2024-01-15T10:30:00", nil)
	require.True(t, ok)
	assert.Equal(t, 10, got.Hour())

	// Plain dates land at midnight.
	got, ok = parseDateTime("2024-01-15", nil)
	require.True(t, ok)
	assert.Equal(t, "2024-01-15 00:00:00", got.Format("2006-01-02 15:04:05"))

	_, ok = parseDateTime("yesterday", nil)
	assert.False(t, ok)
}

func TestCastCell(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		col  Column
		want Cell
	}{
		{"integer", "42", Column{Name: "n", Type: TypeInteger, Nullable: true}, Cell{Kind: KindInt, Int: 42}},
		{"float", "3.5", Column{Name: "f", Type: TypeFloat, Nullable: true}, Cell{Kind: KindFloat, Float: 3.5}},
		{"bool", "yes", Column{Name: "b", Type: TypeBool, Nullable: true}, Cell{Kind: KindBool, Bool: true}},
		{"text", "  hello ", Column{Name: "s", Type: TypeText, Nullable: true}, Cell{Kind: KindText, Text: "hello"}},
		{"blank nullable", "", Column{Name: "s", Type: TypeText, Nullable: true}, NullCell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CastCell(tt.raw, tt.col, nil))
		})
	}
}

func TestCastCell_Date(t *testing.T) {
	cell := CastCell("2024-01-15", Column{Name: "d", Type: TypeDate, Nullable: true}, nil)
	require.Equal(t, KindTime, cell.Kind)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), cell.Time)
}

func TestCastCell_InvalidValues(t *testing.T) {
	tests := []struct {
		raw    string
		col    Column
		reason string
	}{
		{"thirty", Column{Name: "age", Type: TypeInteger, Nullable: true}, "invalid integer"},
		{"much", Column{Name: "price", Type: TypeFloat, Nullable: true}, "invalid number"},
		{"maybe", Column{Name: "ok", Type: TypeBool, Nullable: true}, "invalid boolean"},
		{"someday", Column{Name: "when", Type: TypeDate, Nullable: true}, "invalid date"},
		{"", Column{Name: "id", Type: TypeInteger, Nullable: false}, "not nullable"},
	}

	for _, tt := range tests {
		cell := CastCell(tt.raw, tt.col, nil)
		assert.Equal(t, KindInvalid, cell.Kind, "CastCell(%q)", tt.raw)
		assert.Contains(t, cell.Reason, tt.reason, "CastCell(%q)", tt.raw)
	}
}

func TestCellValue(t *testing.T) {
	d := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, int64(7), Cell{Kind: KindInt, Int: 7}.Value(TypeInteger))
	assert.Equal(t, 2.5, Cell{Kind: KindFloat, Float: 2.5}.Value(TypeFloat))
	assert.Equal(t, true, Cell{Kind: KindBool, Bool: true}.Value(TypeBool))
	assert.Equal(t, "hi", Cell{Kind: KindText, Text: "hi"}.Value(TypeText))
	assert.Equal(t, "2024-01-15", Cell{Kind: KindTime, Time: d}.Value(TypeDate))
	assert.Equal(t, "2024-01-15 10:30:00", Cell{Kind: KindTime, Time: d}.Value(TypeDateTime))
	assert.Nil(t, NullCell.Value(TypeText))
	assert.Nil(t, InvalidCell("x").Value(TypeText))
}
