// Package tabular loads uploaded CSV and Excel files into an in-memory
// table of raw string cells. It has no database or UI dependencies.
package tabular

import (
	"fmt"
	"strings"
)

// Format identifies the input file format.
type Format int

const (
	FormatCSV Format = iota
	FormatExcel
)

// ParseError indicates a malformed input file. It is fatal for the upload
// session: no partial table is ever produced.
type ParseError struct {
	File   string
	Line   int // 1-indexed line/row number, 0 if not applicable
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}

// UploadedTable is the parsed representation of an uploaded file: an ordered
// header plus raw string rows. It is immutable once loaded and discarded when
// the upload session completes.
type UploadedTable struct {
	Name    string     // source file name
	Columns []string   // header row, cleaned
	Rows    [][]string // data rows, each len(Columns) wide
}

// RowCount returns the number of data rows (header excluded).
func (t *UploadedTable) RowCount() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, matching
// case-insensitively. Returns -1 if the column does not exist.
func (t *UploadedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// ColumnValues returns all raw values of the column at position idx.
func (t *UploadedTable) ColumnValues(idx int) []string {
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values
}

// Sample returns up to n rows from the top of the table.
func (t *UploadedTable) Sample(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// DetectFormat guesses the file format from the file name extension.
// Unknown extensions default to CSV, which is the cheapest to attempt.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xlsm") || strings.HasSuffix(lower, ".xls") {
		return FormatExcel
	}
	return FormatCSV
}

// isEmptyRow reports whether every cell in the row is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// finishTable validates the header and assembles the final table from raw
// records. Rows narrower or wider than the header are rejected rather than
// padded; fully empty rows are skipped.
func finishTable(name string, header []string, records [][]string, firstDataLine int) (*UploadedTable, error) {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		c := strings.TrimSpace(h)
		if c == "" {
			return nil, &ParseError{File: name, Line: firstDataLine - 1, Reason: fmt.Sprintf("empty header in column %d", i+1)}
		}
		key := strings.ToLower(c)
		if prev, dup := seen[key]; dup {
			return nil, &ParseError{File: name, Line: firstDataLine - 1,
				Reason: fmt.Sprintf("duplicate header %q (columns %d and %d)", c, prev+1, i+1)}
		}
		seen[key] = i
		columns[i] = c
	}

	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		if isEmptyRow(rec) {
			continue
		}
		if len(rec) != len(columns) {
			return nil, &ParseError{File: name, Line: firstDataLine + i,
				Reason: fmt.Sprintf("expected %d columns, got %d", len(columns), len(rec))}
		}
		row := make([]string, len(rec))
		for j, v := range rec {
			row[j] = strings.TrimSpace(v)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, &ParseError{File: name, Reason: "no data rows after header"}
	}

	return &UploadedTable{Name: name, Columns: columns, Rows: rows}, nil
}
