package core

// transform.go applies the column mapping and casts to every uploaded row.
// The transform is pure: it reads the uploaded table and produces tagged
// rows plus a complete account of every dropped row and nulled cell.

import (
	"fmt"

	"github.com/tabledock/tabledock/internal/tabular"
)

// Transformer applies casts per the mapping and target schema.
type Transformer struct {
	Schema      TargetSchema
	Mapping     ColumnMapping
	Policy      InvalidCellPolicy
	DateLayouts []string // ordered accepted date formats, nil for defaults
}

// TransformResult is the outcome of transforming a whole table.
type TransformResult struct {
	Rows     []TransformedRow // valid rows only, ready for insertion
	Dropped  []RowError       // rows discarded with reasons
	Warnings []CellWarning    // cells nulled under PolicyNullCell
}

// Transform casts every row of the uploaded table. Rows never fail silently:
// each one either appears in Rows or in Dropped, and every nulled cell is
// recorded in Warnings.
func (tr *Transformer) Transform(t *tabular.UploadedTable) TransformResult {
	result := TransformResult{Rows: make([]TransformedRow, 0, len(t.Rows))}

	cols := make([]Column, len(tr.Mapping.Pairs))
	for i, pair := range tr.Mapping.Pairs {
		col, ok := tr.Schema.Column(pair.Target)
		if !ok {
			// ResolveMapping guarantees the pair targets exist; an unknown
			// target here means the mapping and schema are out of sync.
			panic(fmt.Sprintf("transform: mapping targets unknown column %q", pair.Target))
		}
		cols[i] = col
	}

	for rowIdx, raw := range t.Rows {
		row := tr.transformRow(rowIdx, raw, cols)
		if row.Valid {
			result.Rows = append(result.Rows, row)
			continue
		}
		result.Dropped = append(result.Dropped, RowError{Row: rowIdx, Reason: row.Reason})
	}

	// Collect warnings from the kept rows in one pass so their order follows
	// row order regardless of policy branches taken above.
	for i := range result.Rows {
		row := &result.Rows[i]
		for j, cell := range row.Cells {
			if cell.Kind == KindNull && cell.Reason != "" {
				result.Warnings = append(result.Warnings, CellWarning{
					Row:    row.Index,
					Column: cols[j].Name,
					Value:  CleanCell(t.Rows[row.Index][tr.Mapping.Pairs[j].SourceIndex]),
					Reason: cell.Reason,
				})
				row.Cells[j].Reason = ""
			}
		}
	}

	return result
}

func (tr *Transformer) transformRow(rowIdx int, raw []string, cols []Column) TransformedRow {
	row := TransformedRow{
		Index: rowIdx,
		Cells: make([]Cell, len(tr.Mapping.Pairs)),
		Valid: true,
	}

	for i, pair := range tr.Mapping.Pairs {
		cell := CastCell(raw[pair.SourceIndex], cols[i], tr.DateLayouts)
		if cell.Kind != KindInvalid {
			row.Cells[i] = cell
			continue
		}

		if tr.Policy == PolicyDropRow || !cols[i].Nullable {
			row.Valid = false
			row.Reason = fmt.Sprintf("column %q: %s", cols[i].Name, cell.Reason)
			return row
		}

		// PolicyNullCell: keep the row, null the cell, carry the reason so
		// Transform can record a warning against the original value.
		row.Cells[i] = Cell{Kind: KindNull, Reason: cell.Reason}
	}

	return row
}
