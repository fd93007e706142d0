// Package core implements the upload pipeline: column type inference,
// mapping resolution, value casting, and upload session orchestration.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"fmt"
	"strings"
	"time"
)

// ColumnType is the logical type of a target table column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeFloat
	TypeBool
	TypeDate
	TypeDateTime
)

// String returns the lowercase name used in API payloads and error messages.
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	default:
		return "text"
	}
}

// ParseColumnType converts an API type name to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string":
		return TypeText, nil
	case "integer", "int":
		return TypeInteger, nil
	case "float", "double", "numeric":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "date":
		return TypeDate, nil
	case "datetime", "timestamp":
		return TypeDateTime, nil
	default:
		return TypeText, fmt.Errorf("unknown column type %q", s)
	}
}

// Column describes one column of the destination table.
//
// MaxLength, MinInt, MaxInt and Unsigned are sizing hints: for existing
// tables they come from information_schema, for inferred schemas from the
// sampled values. The store layer uses them to choose concrete MySQL types.
type Column struct {
	Name      string
	Type      ColumnType
	Nullable  bool
	MaxLength int   // longest observed/declared text value, 0 when unknown
	Unsigned  bool  // integer columns only
	MinInt    int64 // observed integer range, inference only
	MaxInt    int64
}

// TargetSchema is the name and column definition of the destination table.
type TargetSchema struct {
	Table   string
	Columns []Column
}

// Column returns the schema column matching name case-insensitively.
func (s TargetSchema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the ordered column names.
func (s TargetSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// CellKind tags the typed value carried by a Cell.
type CellKind int

const (
	KindNull CellKind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindText
	KindInvalid
)

// Cell is a single transformed value. Raw file cells are untyped strings;
// after casting every cell is one of these tagged variants so the transform
// logic stays exhaustive and the executor never guesses at representations.
type Cell struct {
	Kind   CellKind
	Int    int64
	Float  float64
	Bool   bool
	Time   time.Time
	Text   string
	Reason string // set when Kind == KindInvalid
}

// NullCell is the cast result for blank input into a nullable column.
var NullCell = Cell{Kind: KindNull}

// InvalidCell builds a Cell marking a failed cast with its reason.
func InvalidCell(reason string) Cell {
	return Cell{Kind: KindInvalid, Reason: reason}
}

// Value returns the driver-level value for SQL parameter binding.
// Null and invalid cells both bind as nil; invalid cells only reach the
// executor after the policy has turned them into nulls or dropped the row.
func (c Cell) Value(colType ColumnType) any {
	switch c.Kind {
	case KindInt:
		return c.Int
	case KindFloat:
		return c.Float
	case KindBool:
		return c.Bool
	case KindTime:
		if colType == TypeDate {
			return c.Time.Format("2006-01-02")
		}
		return c.Time.Format("2006-01-02 15:04:05")
	case KindText:
		return c.Text
	default:
		return nil
	}
}

// MappedColumn pairs one source file column with one target table column.
// SourceIndex is the column's position in the uploaded table.
type MappedColumn struct {
	Source      string `json:"source"`
	SourceIndex int    `json:"sourceIndex"`
	Target      string `json:"target"`
}

// ColumnMapping is a validated source-to-target column correspondence,
// ordered by target schema column order. Unmapped source columns are
// dropped; unmapped nullable target columns receive NULL.
type ColumnMapping struct {
	Pairs []MappedColumn `json:"pairs"`
}

// Target returns the mapped target column for a source column, if any.
func (m ColumnMapping) Target(source string) (string, bool) {
	for _, p := range m.Pairs {
		if strings.EqualFold(p.Source, source) {
			return p.Target, true
		}
	}
	return "", false
}

// TargetNames returns the mapped target column names in order.
func (m ColumnMapping) TargetNames() []string {
	names := make([]string, len(m.Pairs))
	for i, p := range m.Pairs {
		names[i] = p.Target
	}
	return names
}

// InvalidCellPolicy controls what happens to a row when a cell fails its
// cast. The choice is always explicit: there is no silent default drop.
type InvalidCellPolicy int

const (
	// PolicyNullCell stores NULL in place of the offending cell and keeps
	// the row, recording a warning. Falls back to dropping the row when the
	// target column is not nullable.
	PolicyNullCell InvalidCellPolicy = iota

	// PolicyDropRow discards the whole row on the first invalid cell.
	PolicyDropRow
)

// ParseInvalidCellPolicy converts the API/config value ("null" or "drop").
func ParseInvalidCellPolicy(s string) (InvalidCellPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "null-cell", "null_cell":
		return PolicyNullCell, nil
	case "drop", "drop-row", "drop_row":
		return PolicyDropRow, nil
	default:
		return PolicyNullCell, fmt.Errorf("unknown invalid-cell policy %q", s)
	}
}

// TransformedRow is one row after casting, aligned with the mapping's pair
// order. Invalid rows carry the reason they were rejected.
type TransformedRow struct {
	Index  int // 0-based data row index in the uploaded file
	Cells  []Cell
	Valid  bool
	Reason string
}

// CellWarning records a cell that was nulled out during transform, so the
// final report can surface every touched value with its row index.
type CellWarning struct {
	Row    int    `json:"row"`    // 0-based data row index
	Column string `json:"column"` // target column name
	Value  string `json:"value"`  // original raw value
	Reason string `json:"reason"`
}

// RowError records a row that failed validation or insertion.
type RowError struct {
	Row    int    `json:"row"` // 0-based data row index
	Reason string `json:"reason"`
}

// MaxReportedErrors caps the error and warning lists carried in results so
// a pathological file cannot balloon the response.
var MaxReportedErrors = 100

// UploadResult is the final report of an upload session: how many rows were
// attempted, how many landed, and exactly which rows were dropped or nulled
// and why. Nothing is silently swallowed.
type UploadResult struct {
	UploadID   string        `json:"uploadId"`
	Table      string        `json:"table"`
	FileName   string        `json:"fileName"`
	Attempted  int           `json:"attempted"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Warnings   []CellWarning `json:"warnings,omitempty"`
	Errors     []RowError    `json:"errors,omitempty"`
	Created    bool          `json:"createdTable"` // true when the target table was created
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"durationMs"`
	Error      string        `json:"error,omitempty"` // non-empty when the session failed outright
}

// UploadPhase indicates the current stage of upload processing.
type UploadPhase string

const (
	PhaseStarting     UploadPhase = "starting"
	PhaseReading      UploadPhase = "reading"
	PhaseResolving    UploadPhase = "resolving"
	PhaseTransforming UploadPhase = "transforming"
	PhaseInserting    UploadPhase = "inserting"
	PhaseComplete     UploadPhase = "complete"
	PhaseFailed       UploadPhase = "failed"
	PhaseCancelled    UploadPhase = "cancelled"
)

// UploadProgress is a snapshot of an in-flight upload.
type UploadProgress struct {
	UploadID   string      `json:"uploadId"`
	Table      string      `json:"table"`
	FileName   string      `json:"fileName"`
	Phase      UploadPhase `json:"phase"`
	TotalRows  int         `json:"totalRows"`
	CurrentRow int         `json:"currentRow"`
	Inserted   int         `json:"inserted"`
	Failed     int         `json:"failed"`
	Error      string      `json:"error,omitempty"` // non-empty when Phase is PhaseFailed
}

// Percent returns row progress as 0-100.
func (p UploadProgress) Percent() int {
	if p.TotalRows <= 0 {
		return 0
	}
	return (p.CurrentRow * 100) / p.TotalRows
}
