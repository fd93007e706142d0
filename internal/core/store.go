package core

import "context"

// Store is the database surface the pipeline needs. It is satisfied by the
// MySQL store and by fakes in tests; the pipeline never touches a
// connection directly, so acquisition and release stay scoped to the store.
type Store interface {
	// ListTables returns the table names visible in the target database.
	ListTables(ctx context.Context) ([]string, error)

	// TableSchema returns the schema of an existing table, or
	// ErrTableNotFound when the table does not exist.
	TableSchema(ctx context.Context, table string) (TargetSchema, error)

	// CreateTable creates the table described by schema. Called at most
	// once per upload session.
	CreateTable(ctx context.Context, schema TargetSchema) error

	// InsertRows writes transformed rows in multi-row INSERT batches,
	// committing per batch. Failed batches are split and retried down to
	// single rows; rows that still fail are reported, not rolled back.
	InsertRows(ctx context.Context, schema TargetSchema, mapping ColumnMapping, rows []TransformedRow, opts InsertOptions) (InsertReport, error)
}

// InsertOptions tunes batch execution.
type InsertOptions struct {
	// BatchSize is the number of rows per INSERT statement.
	BatchSize int

	// Progress, when non-nil, is called after every committed batch with
	// running totals.
	Progress func(inserted, failed int)
}

// InsertReport is the executor's account of a completed insert run.
type InsertReport struct {
	Inserted int
	Failed   []RowError
}
