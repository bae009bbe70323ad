package sqldb

import (
	"context"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jmoiron/sqlx"
)

// Source is where a SQLTable reads its rows from, and how the database describes it
type Source interface {
	// FromClause is the table expression used in the FROM clause of queries
	FromClause() string
	Columns(ctx context.Context, db *sqlx.DB) ([]SourceColumn, errorsx.Error)
	SizeOnDisk(ctx context.Context, db *sqlx.DB) (int64, errorsx.Error)
}

type SourceColumn struct {
	Name         string `db:"column_name"`
	DatabaseType string `db:"data_type"`
}

// columnTypeFromDatabaseType maps the type names used by DuckDB and PostgreSQL to column types
func columnTypeFromDatabaseType(databaseType string) (tablescan.ColumnType, bool) {
	switch strings.ToUpper(strings.TrimSpace(databaseType)) {
	case "INTEGER", "INT", "INT4", "INT32", "SIGNED":
		return tablescan.ColumnTypeInt32, true
	case "BIGINT", "INT8", "INT64", "LONG":
		return tablescan.ColumnTypeInt64, true
	case "REAL", "FLOAT4", "FLOAT":
		return tablescan.ColumnTypeFloat32, true
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8", "NUMERIC":
		return tablescan.ColumnTypeFloat64, true
	default:
		return 0, false
	}
}

func quoteStringLiteral(str string) string {
	return "'" + strings.ReplaceAll(str, "'", "''") + "'"
}
