package core

// infer.go guesses a target schema from sampled file values. Inference is a
// pure function over the sample so it can be unit-tested without a database.
//
// The ladder runs narrowest-first: integer, float, bool, date, datetime,
// text. A single parse failure in the sample demotes the column to the next
// broader type; a column whose sample is entirely blank stays text.

import (
	"regexp"
	"strings"

	"github.com/tabledock/tabledock/internal/tabular"
)

// DefaultInferenceSampleSize is how many rows InferSchema examines per column.
var DefaultInferenceSampleSize = 1000

var columnNameSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

// SanitizeColumnName lowercases a file header and folds every run of
// non-word characters to an underscore, producing a safe MySQL identifier.
func SanitizeColumnName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = columnNameSanitizer.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "col"
	}
	return s
}

// InferColumn derives the narrowest compatible type for one column from a
// sample of its raw values. The returned Column carries observed range and
// length stats so the store layer can size the concrete MySQL type.
func InferColumn(name string, samples []string, dateLayouts []string) Column {
	col := Column{Name: SanitizeColumnName(name), Nullable: true}

	nonBlank := make([]string, 0, len(samples))
	maxLen := 0
	for _, raw := range samples {
		s := CleanCell(raw)
		if s == "" {
			continue
		}
		nonBlank = append(nonBlank, s)
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	col.MaxLength = maxLen

	if len(nonBlank) == 0 {
		col.Type = TypeText
		return col
	}

	if minV, maxV, ok := allIntegers(nonBlank); ok {
		col.Type = TypeInteger
		col.MinInt = minV
		col.MaxInt = maxV
		col.Unsigned = minV >= 0
		return col
	}

	if allFloats(nonBlank) {
		col.Type = TypeFloat
		return col
	}

	if allBools(nonBlank) {
		col.Type = TypeBool
		return col
	}

	if allDates(nonBlank, dateLayouts) {
		col.Type = TypeDate
		return col
	}

	if allDateTimes(nonBlank, dateLayouts) {
		col.Type = TypeDateTime
		return col
	}

	col.Type = TypeText
	return col
}

// InferSchema builds a TargetSchema for a new table from the uploaded file,
// sampling up to DefaultInferenceSampleSize rows per column. All inferred
// columns are nullable; the source file carries no constraint information.
func InferSchema(table string, t *tabular.UploadedTable, dateLayouts []string) TargetSchema {
	sample := t.Sample(DefaultInferenceSampleSize)

	schema := TargetSchema{Table: table, Columns: make([]Column, len(t.Columns))}
	for i, name := range t.Columns {
		values := make([]string, len(sample))
		for j, row := range sample {
			values[j] = row[i]
		}
		schema.Columns[i] = InferColumn(name, values, dateLayouts)
	}
	return schema
}

func allIntegers(values []string) (minV, maxV int64, ok bool) {
	for i, v := range values {
		n, valid := parseInteger(v)
		if !valid {
			return 0, 0, false
		}
		// "30.0" parses as integer but the source clearly holds floats;
		// a decimal point anywhere in the sample demotes the column.
		if strings.ContainsAny(v, ".eE") {
			return 0, 0, false
		}
		if i == 0 || n < minV {
			minV = n
		}
		if i == 0 || n > maxV {
			maxV = n
		}
	}
	return minV, maxV, true
}

func allFloats(values []string) bool {
	for _, v := range values {
		if _, ok := parseFloat(v); !ok {
			return false
		}
	}
	return true
}

func allBools(values []string) bool {
	for _, v := range values {
		if _, ok := parseBool(v); !ok {
			return false
		}
	}
	return true
}

func allDates(values []string, layouts []string) bool {
	for _, v := range values {
		if _, ok := parseDate(v, layouts); !ok {
			return false
		}
	}
	return true
}

func allDateTimes(values []string, layouts []string) bool {
	for _, v := range values {
		if _, ok := parseDateTime(v, layouts); !ok {
			return false
		}
	}
	return true
}
