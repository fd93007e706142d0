package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabledock/tabledock/internal/tabular"
)

func TestSanitizeColumnName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Name", "name"},
		{"Unit Price", "unit_price"},
		{"Order #", "order"},
		{"  spaced  ", "spaced"},
		{"already_ok", "already_ok"},
		{"Total ($)", "total"},
		{"2024 Sales", "2024_sales"},
		{"---", "col"},
		{"", "col"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeColumnName(tt.in), "SanitizeColumnName(%q)", tt.in)
	}
}

func TestInferColumn_Integer(t *testing.T) {
	col := InferColumn("Age", []string{"30", "25", "41"}, nil)

	assert.Equal(t, "age", col.Name)
	assert.Equal(t, TypeInteger, col.Type)
	assert.True(t, col.Nullable)
	assert.True(t, col.Unsigned)
	assert.Equal(t, int64(25), col.MinInt)
	assert.Equal(t, int64(41), col.MaxInt)
}

func TestInferColumn_SignedInteger(t *testing.T) {
	col := InferColumn("delta", []string{"-5", "12", "0"}, nil)

	assert.Equal(t, TypeInteger, col.Type)
	assert.False(t, col.Unsigned)
	assert.Equal(t, int64(-5), col.MinInt)
	assert.Equal(t, int64(12), col.MaxInt)
}

func TestInferColumn_DecimalDemotesToFloat(t *testing.T) {
	// "30.0" casts to an integer but the decimal point means the source
	// column holds floats.
	col := InferColumn("score", []string{"30.0", "25", "41"}, nil)
	assert.Equal(t, TypeFloat, col.Type)
}

func TestInferColumn_MixedDemotesToText(t *testing.T) {
	col := InferColumn("Age", []string{"30", "twenty-five", "41"}, nil)
	assert.Equal(t, TypeText, col.Type)
}

func TestInferColumn_Ladder(t *testing.T) {
	tests := []struct {
		name    string
		samples []string
		want    ColumnType
	}{
		{"floats", []string{"1.5", "2.25", "-0.5"}, TypeFloat},
		{"bools", []string{"yes", "no", "yes"}, TypeBool},
		{"dates", []string{"2024-01-15", "2024-02-20"}, TypeDate},
		{"datetimes", []string{"2024-01-15 10:30:00", "2024-02-20 08:00:00"}, TypeDateTime},
		{"text", []string{"alpha", "beta"}, TypeText},
		{"all blank", []string{"", "  ", ""}, TypeText},
		{"currency is float", []string{"$1,234.56", "$99.00"}, TypeFloat},
		// 1/0 columns read as integers, the narrower type, not bools.
		{"one zero", []string{"1", "0", "1"}, TypeInteger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := InferColumn("c", tt.samples, nil)
			assert.Equal(t, tt.want, col.Type)
		})
	}
}

func TestInferColumn_BlanksIgnored(t *testing.T) {
	col := InferColumn("n", []string{"10", "", "20", "  "}, nil)
	assert.Equal(t, TypeInteger, col.Type)
	assert.Equal(t, int64(10), col.MinInt)
	assert.Equal(t, int64(20), col.MaxInt)
}

func TestInferColumn_MaxLength(t *testing.T) {
	col := InferColumn("note", []string{"short", "a much longer value here"}, nil)
	assert.Equal(t, TypeText, col.Type)
	assert.Equal(t, len("a much longer value here"), col.MaxLength)
}

func TestInferSchema(t *testing.T) {
	tbl := &tabular.UploadedTable{
		Name:    "people.csv",
		Columns: []string{"Name", "Age", "Joined"},
		Rows: [][]string{
			{"Alice", "30", "2024-01-15"},
			{"Bob", "25", "2024-02-20"},
		},
	}

	schema := InferSchema("people", tbl, nil)

	require.Len(t, schema.Columns, 3)
	assert.Equal(t, "people", schema.Table)
	assert.Equal(t, Column{Name: "name", Type: TypeText, Nullable: true, MaxLength: 5}, schema.Columns[0])
	assert.Equal(t, "age", schema.Columns[1].Name)
	assert.Equal(t, TypeInteger, schema.Columns[1].Type)
	assert.Equal(t, "joined", schema.Columns[2].Name)
	assert.Equal(t, TypeDate, schema.Columns[2].Type)
}
