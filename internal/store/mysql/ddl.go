package mysql

// ddl.go builds CREATE TABLE statements from an inferred schema. Concrete
// MySQL types are sized from the sample statistics the inference step
// recorded: integer width from the observed value range, string width from
// the longest observed value.

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabledock/tabledock/internal/core"
)

// CreateTable creates the table described by schema. The statement uses
// IF NOT EXISTS; the pipeline issues it at most once per session.
func (s *Store) CreateTable(ctx context.Context, schema core.TargetSchema) error {
	ddl, err := buildCreateSQL(schema)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Table, err)
	}
	return nil
}

func buildCreateSQL(schema core.TargetSchema) (string, error) {
	if !ValidTableName(schema.Table) {
		return "", fmt.Errorf("invalid table name %q", schema.Table)
	}
	if len(schema.Columns) == 0 {
		return "", fmt.Errorf("create table %s: no columns", schema.Table)
	}

	defs := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		name := core.SanitizeColumnName(col.Name)
		def := quoteIdent(name) + " " + mysqlTypeFor(col)
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs[i] = def
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci",
		quoteIdent(schema.Table),
		strings.Join(defs, ",\n  "),
	), nil
}

// mysqlTypeFor picks the narrowest MySQL type that holds the column's
// observed values.
func mysqlTypeFor(col core.Column) string {
	switch col.Type {
	case core.TypeInteger:
		return integerTypeFor(col.MinInt, col.MaxInt)
	case core.TypeFloat:
		return "DOUBLE"
	case core.TypeBool:
		return "BOOLEAN"
	case core.TypeDate:
		return "DATE"
	case core.TypeDateTime:
		return "DATETIME"
	default:
		return textTypeFor(col.MaxLength)
	}
}

func integerTypeFor(minV, maxV int64) string {
	if minV >= 0 {
		switch {
		case maxV <= 255:
			return "TINYINT UNSIGNED"
		case maxV <= 65535:
			return "SMALLINT UNSIGNED"
		case maxV <= 4294967295:
			return "INT UNSIGNED"
		default:
			return "BIGINT UNSIGNED"
		}
	}
	switch {
	case minV >= -128 && maxV <= 127:
		return "TINYINT"
	case minV >= -32768 && maxV <= 32767:
		return "SMALLINT"
	case minV >= -2147483648 && maxV <= 2147483647:
		return "INT"
	default:
		return "BIGINT"
	}
}

func textTypeFor(maxLen int) string {
	switch {
	case maxLen <= 0:
		return "TEXT"
	case maxLen <= 255:
		return fmt.Sprintf("VARCHAR(%d)", maxLen)
	case maxLen <= 65535:
		return "TEXT"
	case maxLen <= 16777215:
		return "MEDIUMTEXT"
	default:
		return "LONGTEXT"
	}
}
