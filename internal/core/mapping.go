package core

// mapping.go resolves the correspondence between uploaded file columns and
// target table columns. Resolution is a pure function over its inputs, so
// re-resolving an already-validated mapping yields the same mapping.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tabledock/tabledock/internal/tabular"
)

// MappingError reports why a column mapping could not be validated.
// It is fatal for the session until the mapping is corrected.
type MappingError struct {
	Table   string
	Reasons []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping for table %q: %s", e.Table, strings.Join(e.Reasons, "; "))
}

// ResolveMapping produces a validated ColumnMapping from the uploaded table's
// columns and the target schema.
//
// Default policy: case-insensitive exact-name match (after sanitizing the
// file header the way inferred column names are sanitized). The optional
// overrides map (source column -> target column) replaces or adds pairs for
// anything the default policy missed or got wrong.
//
// Validation failures collected into a single MappingError:
//   - an override names a source column the file does not have
//   - an override names a target column the table does not have
//   - two source columns map to the same target column
//   - a non-nullable target column ends up with no mapped source
func ResolveMapping(t *tabular.UploadedTable, schema TargetSchema, overrides map[string]string) (ColumnMapping, error) {
	merr := &MappingError{Table: schema.Table}

	// source -> target, overrides win over name matches
	chosen := make(map[string]string, len(t.Columns))

	for _, src := range t.Columns {
		if target, ok := schema.Column(src); ok {
			chosen[strings.ToLower(src)] = target.Name
			continue
		}
		// Headers like "Unit Price" should still match a unit_price column.
		if target, ok := schema.Column(SanitizeColumnName(src)); ok {
			chosen[strings.ToLower(src)] = target.Name
		}
	}

	for src, dst := range overrides {
		if t.ColumnIndex(src) < 0 {
			merr.Reasons = append(merr.Reasons, fmt.Sprintf("file has no column %q", src))
			continue
		}
		if dst == "" {
			// Explicitly unmapped: drop this source column.
			delete(chosen, strings.ToLower(src))
			continue
		}
		target, ok := schema.Column(dst)
		if !ok {
			merr.Reasons = append(merr.Reasons, fmt.Sprintf("table has no column %q", dst))
			continue
		}
		chosen[strings.ToLower(src)] = target.Name
	}

	// Detect two sources feeding one target.
	byTarget := make(map[string][]string)
	for src, dst := range chosen {
		key := strings.ToLower(dst)
		byTarget[key] = append(byTarget[key], src)
	}
	for _, sources := range byTarget {
		if len(sources) > 1 {
			sort.Strings(sources)
			merr.Reasons = append(merr.Reasons,
				fmt.Sprintf("columns %s map to the same target column", strings.Join(sources, ", ")))
		}
	}

	// Non-nullable target columns must be fed by something.
	for _, col := range schema.Columns {
		if col.Nullable {
			continue
		}
		if _, ok := byTarget[strings.ToLower(col.Name)]; !ok {
			merr.Reasons = append(merr.Reasons,
				fmt.Sprintf("required column %q has no mapped source", col.Name))
		}
	}

	if len(merr.Reasons) > 0 {
		sort.Strings(merr.Reasons)
		return ColumnMapping{}, merr
	}

	// Order pairs by target schema column order for stable output.
	var mapping ColumnMapping
	for _, col := range schema.Columns {
		for src, dst := range chosen {
			if !strings.EqualFold(dst, col.Name) {
				continue
			}
			// chosen keys are lowercased; recover the original header.
			idx := t.ColumnIndex(src)
			mapping.Pairs = append(mapping.Pairs, MappedColumn{
				Source:      t.Columns[idx],
				SourceIndex: idx,
				Target:      col.Name,
			})
		}
	}

	return mapping, nil
}
