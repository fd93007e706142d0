package mysql

// executor.go writes transformed rows with multi-row INSERT statements, one
// transaction per batch. A failed batch is split in halves and retried down
// to single rows, so one bad row costs O(log batch) round trips instead of
// failing its whole batch. Rows that fail at size 1 are reported with their
// original row index; committed batches stay committed.

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabledock/tabledock/internal/core"
)

// DefaultBatchSize is used when the caller does not set one.
const DefaultBatchSize = 1000

// InsertRows implements core.Store.
func (s *Store) InsertRows(ctx context.Context, schema core.TargetSchema, mapping core.ColumnMapping, rows []core.TransformedRow, opts core.InsertOptions) (core.InsertReport, error) {
	report := core.InsertReport{}
	if len(rows) == 0 {
		return report, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	ins, err := newInserter(schema, mapping)
	if err != nil {
		return report, err
	}

	exec := func(ctx context.Context, batch []core.TransformedRow) error {
		return s.execBatch(ctx, ins, batch)
	}

	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		insertBatch(ctx, rows[start:end], exec, &report)

		if opts.Progress != nil {
			opts.Progress(report.Inserted, len(report.Failed))
		}
	}

	return report, nil
}

// insertBatch tries the batch whole, then recursively halves it on failure.
// Recursion depth is bounded by log2 of the batch size.
func insertBatch(ctx context.Context, batch []core.TransformedRow, exec func(context.Context, []core.TransformedRow) error, report *core.InsertReport) {
	if len(batch) == 0 {
		return
	}

	err := exec(ctx, batch)
	if err == nil {
		report.Inserted += len(batch)
		return
	}

	if len(batch) == 1 {
		report.Failed = append(report.Failed, core.RowError{
			Row:    batch[0].Index,
			Reason: err.Error(),
		})
		return
	}

	// Cancellation should stop the halving, not masquerade as row failures.
	if ctx.Err() != nil {
		for _, row := range batch {
			report.Failed = append(report.Failed, core.RowError{Row: row.Index, Reason: ctx.Err().Error()})
		}
		return
	}

	mid := len(batch) / 2
	insertBatch(ctx, batch[:mid], exec, report)
	insertBatch(ctx, batch[mid:], exec, report)
}

// inserter caches the per-upload constants of statement building: the
// column list, its SQL fragment, and the column types for value binding.
type inserter struct {
	prefix   string // INSERT INTO `t` (`a`,`b`) VALUES
	rowGroup string // (?,?,...)
	types    []core.ColumnType
}

func newInserter(schema core.TargetSchema, mapping core.ColumnMapping) (*inserter, error) {
	if !ValidTableName(schema.Table) {
		return nil, fmt.Errorf("invalid table name %q", schema.Table)
	}
	if len(mapping.Pairs) == 0 {
		return nil, fmt.Errorf("insert into %s: empty column mapping", schema.Table)
	}

	cols := make([]string, len(mapping.Pairs))
	types := make([]core.ColumnType, len(mapping.Pairs))
	marks := make([]string, len(mapping.Pairs))
	for i, pair := range mapping.Pairs {
		col, ok := schema.Column(pair.Target)
		if !ok {
			return nil, fmt.Errorf("insert into %s: unknown column %q", schema.Table, pair.Target)
		}
		cols[i] = quoteIdent(col.Name)
		types[i] = col.Type
		marks[i] = "?"
	}

	return &inserter{
		prefix:   fmt.Sprintf("INSERT INTO %s (%s) VALUES ", quoteIdent(schema.Table), strings.Join(cols, ", ")),
		rowGroup: "(" + strings.Join(marks, ", ") + ")",
		types:    types,
	}, nil
}

// sql renders the statement and flattened args for a batch.
func (ins *inserter) sql(batch []core.TransformedRow) (string, []any) {
	groups := make([]string, len(batch))
	args := make([]any, 0, len(batch)*len(ins.types))
	for i, row := range batch {
		groups[i] = ins.rowGroup
		for j, cell := range row.Cells {
			args = append(args, cell.Value(ins.types[j]))
		}
	}
	return ins.prefix + strings.Join(groups, ", "), args
}

// execBatch runs one batch inside its own transaction.
func (s *Store) execBatch(ctx context.Context, ins *inserter, batch []core.TransformedRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	query, args := ins.sql(batch)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
