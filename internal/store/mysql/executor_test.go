package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabledock/tabledock/internal/core"
)

func testSchema() core.TargetSchema {
	return core.TargetSchema{
		Table: "people",
		Columns: []core.Column{
			{Name: "name", Type: core.TypeText, Nullable: true},
			{Name: "age", Type: core.TypeInteger, Nullable: true},
		},
	}
}

func testMapping() core.ColumnMapping {
	return core.ColumnMapping{Pairs: []core.MappedColumn{
		{Source: "Name", SourceIndex: 0, Target: "name"},
		{Source: "Age", SourceIndex: 1, Target: "age"},
	}}
}

func intRow(idx int, name string, age int64) core.TransformedRow {
	return core.TransformedRow{
		Index: idx,
		Valid: true,
		Cells: []core.Cell{
			{Kind: core.KindText, Text: name},
			{Kind: core.KindInt, Int: age},
		},
	}
}

func TestInserterSQL(t *testing.T) {
	ins, err := newInserter(testSchema(), testMapping())
	require.NoError(t, err)

	batch := []core.TransformedRow{
		intRow(0, "Alice", 30),
		intRow(1, "Bob", 25),
	}
	query, args := ins.sql(batch)

	assert.Equal(t, "INSERT INTO `people` (`name`, `age`) VALUES (?, ?), (?, ?)", query)
	assert.Equal(t, []any{"Alice", int64(30), "Bob", int64(25)}, args)
}

func TestInserterSQL_NullAndDateBinding(t *testing.T) {
	schema := core.TargetSchema{
		Table: "events",
		Columns: []core.Column{
			{Name: "day", Type: core.TypeDate, Nullable: true},
			{Name: "note", Type: core.TypeText, Nullable: true},
		},
	}
	mapping := core.ColumnMapping{Pairs: []core.MappedColumn{
		{Source: "Day", SourceIndex: 0, Target: "day"},
		{Source: "Note", SourceIndex: 1, Target: "note"},
	}}

	ins, err := newInserter(schema, mapping)
	require.NoError(t, err)

	day := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	batch := []core.TransformedRow{{
		Index: 0,
		Valid: true,
		Cells: []core.Cell{
			{Kind: core.KindTime, Time: day},
			{Kind: core.KindNull},
		},
	}}

	_, args := ins.sql(batch)
	assert.Equal(t, []any{"2024-01-15", nil}, args)
}

func TestNewInserter_Errors(t *testing.T) {
	_, err := newInserter(core.TargetSchema{Table: "bad name"}, testMapping())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")

	_, err = newInserter(testSchema(), core.ColumnMapping{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty column mapping")

	badMapping := core.ColumnMapping{Pairs: []core.MappedColumn{
		{Source: "X", SourceIndex: 0, Target: "missing"},
	}}
	_, err = newInserter(testSchema(), badMapping)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "missing"`)
}

// failingExec fails any batch containing one of the given row indexes, which
// drives the halving retry down to single rows.
func failingExec(badRows map[int]error) (func(context.Context, []core.TransformedRow) error, *int) {
	calls := 0
	exec := func(ctx context.Context, batch []core.TransformedRow) error {
		calls++
		for _, row := range batch {
			if err, ok := badRows[row.Index]; ok {
				return err
			}
		}
		return nil
	}
	return exec, &calls
}

func TestInsertBatch_AllSucceed(t *testing.T) {
	rows := make([]core.TransformedRow, 10)
	for i := range rows {
		rows[i] = intRow(i, "n", int64(i))
	}

	exec, calls := failingExec(nil)
	var report core.InsertReport
	insertBatch(context.Background(), rows, exec, &report)

	assert.Equal(t, 10, report.Inserted)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, *calls)
}

func TestInsertBatch_IsolatesSingleBadRow(t *testing.T) {
	rows := make([]core.TransformedRow, 100)
	for i := range rows {
		rows[i] = intRow(i, "n", int64(i))
	}

	dupErr := errors.New("Error 1062: Duplicate entry '57' for key 'PRIMARY'")
	exec, calls := failingExec(map[int]error{57: dupErr})

	var report core.InsertReport
	insertBatch(context.Background(), rows, exec, &report)

	assert.Equal(t, 99, report.Inserted)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 57, report.Failed[0].Row)
	assert.Contains(t, report.Failed[0].Reason, "Duplicate entry")

	// Halving keeps the retry cost logarithmic, not linear.
	assert.Less(t, *calls, 20)
}

func TestInsertBatch_MultipleBadRows(t *testing.T) {
	rows := make([]core.TransformedRow, 16)
	for i := range rows {
		rows[i] = intRow(i, "n", int64(i))
	}

	exec, _ := failingExec(map[int]error{
		3:  fmt.Errorf("bad row 3"),
		11: fmt.Errorf("bad row 11"),
	})

	var report core.InsertReport
	insertBatch(context.Background(), rows, exec, &report)

	assert.Equal(t, 14, report.Inserted)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, 3, report.Failed[0].Row)
	assert.Equal(t, 11, report.Failed[1].Row)
}

func TestInsertBatch_SingleRowFailure(t *testing.T) {
	exec, _ := failingExec(map[int]error{5: errors.New("boom")})

	var report core.InsertReport
	insertBatch(context.Background(), []core.TransformedRow{intRow(5, "n", 1)}, exec, &report)

	assert.Equal(t, 0, report.Inserted)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 5, report.Failed[0].Row)
}

func TestInsertBatch_CancelledContextStopsHalving(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	rows := make([]core.TransformedRow, 8)
	for i := range rows {
		rows[i] = intRow(i, "n", int64(i))
	}

	calls := 0
	exec := func(ctx context.Context, batch []core.TransformedRow) error {
		calls++
		cancel()
		return ctx.Err()
	}

	var report core.InsertReport
	insertBatch(ctx, rows, exec, &report)

	// One attempt, then every row reported as failed without retries.
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, report.Inserted)
	assert.Len(t, report.Failed, 8)
}

func TestInsertBatch_EmptyBatch(t *testing.T) {
	exec, calls := failingExec(nil)
	var report core.InsertReport
	insertBatch(context.Background(), nil, exec, &report)

	assert.Equal(t, 0, *calls)
	assert.Equal(t, 0, report.Inserted)
}
