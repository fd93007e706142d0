package core

// convert.go casts raw file cells to typed values.
//
// These functions handle the messy reality of user-provided spreadsheet data:
//   - Multiple date formats (US, EU, ISO, etc.) with 2-digit year pivoting
//   - Currency symbols and thousand separators in numbers
//   - Accounting-style negatives "(123.45)"
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value") and stray quotes
//
// A failed cast never panics and never silently coerces: it produces a Cell
// with Kind KindInvalid and a reason, and the configured policy decides what
// happens to the row.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates a numeric string after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Parsed years
// more than this many years in the future pivot to the previous century.
var TwoDigitYearPivot = 20

// DefaultDateLayouts is the ordered list of accepted date formats.
// First match wins; 4-digit layouts come first because they are unambiguous.
var DefaultDateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
	"Jan 2, 2006", "2 Jan 2006",
	"20060102",
	"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
}

// DefaultDateTimeLayouts extends the date layouts with time components.
var DefaultDateTimeLayouts = []string{
	"2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339,
	"1/2/2006 15:04:05", "01/02/2006 15:04:05",
	"2006-01-02 15:04",
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, Excel formula prefixes (="..."), stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// CastCell converts a raw cell value to the column's type. Blank input
// becomes NullCell for nullable columns and an invalid cell otherwise.
func CastCell(raw string, col Column, dateLayouts []string) Cell {
	s := CleanCell(raw)
	if s == "" {
		if col.Nullable {
			return NullCell
		}
		return InvalidCell(fmt.Sprintf("column %q is not nullable", col.Name))
	}

	switch col.Type {
	case TypeInteger:
		n, ok := parseInteger(s)
		if !ok {
			return InvalidCell(fmt.Sprintf("invalid integer %q", s))
		}
		return Cell{Kind: KindInt, Int: n}

	case TypeFloat:
		f, ok := parseFloat(s)
		if !ok {
			return InvalidCell(fmt.Sprintf("invalid number %q", s))
		}
		return Cell{Kind: KindFloat, Float: f}

	case TypeBool:
		b, ok := parseBool(s)
		if !ok {
			return InvalidCell(fmt.Sprintf("invalid boolean %q (use yes/no, true/false, or 1/0)", s))
		}
		return Cell{Kind: KindBool, Bool: b}

	case TypeDate:
		t, ok := parseDate(s, dateLayouts)
		if !ok {
			return InvalidCell(fmt.Sprintf("invalid date %q", s))
		}
		return Cell{Kind: KindTime, Time: t}

	case TypeDateTime:
		t, ok := parseDateTime(s, dateLayouts)
		if !ok {
			return InvalidCell(fmt.Sprintf("invalid datetime %q", s))
		}
		return Cell{Kind: KindTime, Time: t}

	default:
		return Cell{Kind: KindText, Text: s}
	}
}

// normalizeNumber strips currency symbols and thousands separators and
// converts accounting-style parentheses to a leading minus sign.
// Returns false when the remainder is not a valid number.
func normalizeNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // euro
	s = strings.ReplaceAll(s, "£", "") // pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return "", false
	}
	return s, true
}

// parseInteger parses a whole number, accepting currency/separator noise and
// float forms with a zero fractional part ("30.0" casts to 30).
func parseInteger(s string) (int64, bool) {
	clean, ok := normalizeNumber(s)
	if !ok {
		return 0, false
	}

	if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return n, true
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func parseFloat(s string) (float64, bool) {
	clean, ok := normalizeNumber(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// parseDate parses against the configured ordered layout list, first match
// wins. Layouts with 2-digit years apply the pivot adjustment.
func parseDate(s string, layouts []string) (time.Time, bool) {
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot

	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if twoDigitYearLayout(layout) && t.Year() > pivotYear {
			t = t.AddDate(-100, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// parseDateTime tries datetime layouts first, then falls back to plain dates
// (midnight) so a DATE-ish column value still lands in a DATETIME target.
func parseDateTime(s string, layouts []string) (time.Time, bool) {
	for _, layout := range DefaultDateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return parseDate(s, layouts)
}

// twoDigitYearLayout reports whether the layout uses a 2-digit year.
func twoDigitYearLayout(layout string) bool {
	return strings.Contains(layout, "06") && !strings.Contains(layout, "2006")
}
