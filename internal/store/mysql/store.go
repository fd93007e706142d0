// Package mysql implements the database side of the upload pipeline against
// MySQL: schema introspection, table creation, and batched inserts.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/tabledock/tabledock/internal/core"
)

// Config holds connection settings for the target database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders the driver connection string. ParseTime stays off: the
// executor binds dates as pre-formatted strings.
func (c Config) DSN() string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.MultiStatements = false
	return mc.FormatDSN()
}

// Store implements core.Store against a MySQL database.
type Store struct {
	db *sqlx.DB
}

var _ core.Store = (*Store)(nil)

// Open connects to MySQL, applies pool settings, and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sqlx.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// tableNameRe is the shape of identifiers accepted from callers. Everything
// else is rejected before any SQL is built.
var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidTableName reports whether name is a safe MySQL identifier.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}

// ListTables returns the base tables of the connected database.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var tables []string
	if err := s.db.SelectContext(ctx, &tables, q); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// columnRow mirrors one information_schema.columns record.
type columnRow struct {
	Name     string        `db:"column_name"`
	DataType string        `db:"data_type"`
	IsNull   string        `db:"is_nullable"`
	CharLen  sql.NullInt64 `db:"character_maximum_length"`
	FullType string        `db:"column_type"`
}

// TableSchema introspects an existing table, or returns
// core.ErrTableNotFound when the database has no such table. Read-only.
func (s *Store) TableSchema(ctx context.Context, table string) (core.TargetSchema, error) {
	if !ValidTableName(table) {
		return core.TargetSchema{}, fmt.Errorf("invalid table name %q", table)
	}

	const q = `
		SELECT column_name, data_type, is_nullable, character_maximum_length, column_type
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`

	var rows []columnRow
	if err := s.db.SelectContext(ctx, &rows, q, table); err != nil {
		return core.TargetSchema{}, fmt.Errorf("inspect table %s: %w", table, err)
	}
	if len(rows) == 0 {
		return core.TargetSchema{}, fmt.Errorf("table %q: %w", table, core.ErrTableNotFound)
	}

	schema := core.TargetSchema{Table: table, Columns: make([]core.Column, len(rows))}
	for i, r := range rows {
		schema.Columns[i] = core.Column{
			Name:      r.Name,
			Type:      mapMySQLType(r.DataType, r.FullType),
			Nullable:  strings.EqualFold(r.IsNull, "YES"),
			MaxLength: int(r.CharLen.Int64),
			Unsigned:  strings.Contains(strings.ToLower(r.FullType), "unsigned"),
		}
	}
	return schema, nil
}

// mapMySQLType folds a MySQL data type into the pipeline's logical types.
func mapMySQLType(dataType, fullType string) core.ColumnType {
	switch strings.ToLower(dataType) {
	case "tinyint":
		// tinyint(1) is MySQL's boolean convention.
		if strings.HasPrefix(strings.ToLower(fullType), "tinyint(1)") {
			return core.TypeBool
		}
		return core.TypeInteger
	case "smallint", "mediumint", "int", "integer", "bigint":
		return core.TypeInteger
	case "float", "double", "decimal", "numeric":
		return core.TypeFloat
	case "date":
		return core.TypeDate
	case "datetime", "timestamp":
		return core.TypeDateTime
	default:
		return core.TypeText
	}
}
