package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jmoiron/sqlx"
)

var _ tablescandal.TableHandle = &SQLTable{}

// SQLTable is a table in a SQL database. Filters are rendered to SQL and evaluated by the database.
// Queries carry no ORDER BY, so rows come back in whatever order the database returns them:
// file order for DuckDB's read_parquet (which preserves insertion order), unspecified for PostgreSQL.
type SQLTable struct {
	logger *logpkg.Logger
	db     *sqlx.DB
	name   string
	source Source
	schema *tablescan.Schema
}

// NewSQLTable reads the source's columns; columns of types other than 32/64 bit integers and floats are left out of the schema.
// The table takes ownership of db and closes it in Close.
func NewSQLTable(ctx context.Context, logger *logpkg.Logger, db *sqlx.DB, name string, source Source) (*SQLTable, errorsx.Error) {
	sourceColumns, err := source.Columns(ctx, db)
	if err != nil {
		return nil, err
	}

	var columns []tablescan.Column
	var skipped []string
	for _, sourceColumn := range sourceColumns {
		columnType, ok := columnTypeFromDatabaseType(sourceColumn.DatabaseType)
		if !ok {
			skipped = append(skipped, fmt.Sprintf("%s (%s)", sourceColumn.Name, sourceColumn.DatabaseType))
			continue
		}
		columns = append(columns, tablescan.Column{Name: sourceColumn.Name, Type: columnType})
	}

	if len(skipped) != 0 {
		logger.Warn("sql table %q: columns of unsupported types are not readable: %v", name, skipped)
	}

	tableSchema, err := tablescan.NewSchema(columns)
	if err != nil {
		return nil, errorsx.Wrap(err, "table", name)
	}

	return &SQLTable{
		logger: logger,
		db:     db,
		name:   name,
		source: source,
		schema: tableSchema,
	}, nil
}

func (t *SQLTable) Name() string {
	return t.name
}

func (t *SQLTable) Schema() *tablescan.Schema {
	return t.schema
}

func (t *SQLTable) Info() (*tablescan.TableInfo, errorsx.Error) {
	ctx := context.Background()

	var numRows int64
	err := t.db.GetContext(ctx, &numRows, "SELECT COUNT(*) FROM "+t.source.FromClause())
	if err != nil {
		return nil, tablescan.NewStorageUnavailableError(err, "table", t.name)
	}

	sizeOnDisk, sizeErr := t.source.SizeOnDisk(ctx, t.db)
	if sizeErr != nil {
		return nil, sizeErr
	}

	return tablescan.NewTableInfo(t.name, t.schema, numRows, sizeOnDisk), nil
}

func (t *SQLTable) Iterate(ctx context.Context) (tablescan.RowIterator, errorsx.Error) {
	return t.Evaluate(ctx, nil, tablescandal.EvaluateOptions{})
}

func (t *SQLTable) Evaluate(ctx context.Context, where predicate.Filter, opts tablescandal.EvaluateOptions) (tablescan.RowIterator, errorsx.Error) {
	projected, _, err := tablescandal.ResolveSelect(t.schema, opts.Select)
	if err != nil {
		return nil, err
	}

	if where != nil {
		err = where.Validate(t.schema)
		if err != nil {
			return nil, err
		}
	}

	query, args := t.buildSelectQuery(projected, where)
	t.logger.Debug("%s: running query %q with args %v", t.name, query, args)

	rows, queryErr := t.db.QueryxContext(ctx, query, args...)
	if queryErr != nil {
		return nil, tablescan.NewStorageUnavailableError(queryErr, "table", t.name, "query", query)
	}

	it := newRowIterator(rows, projected)
	if !opts.Materialize {
		return it, nil
	}

	collected, err := tablescan.CollectRows(it)
	if err != nil {
		return nil, err
	}

	return tablescan.NewSliceIterator(collected), nil
}

func (t *SQLTable) buildSelectQuery(projected *tablescan.Schema, where predicate.Filter) (string, []interface{}) {
	var quotedColumnNames []string
	for _, columnName := range projected.ColumnNames() {
		quotedColumnNames = append(quotedColumnNames, predicate.QuoteIdentifier(columnName))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quotedColumnNames, ", "), t.source.FromClause())
	if where == nil {
		return query, nil
	}

	whereSQL, args := predicate.ToSQL(where, 0)
	return query + " WHERE " + whereSQL, args
}

func (t *SQLTable) Close() errorsx.Error {
	err := t.db.Close()
	if err != nil {
		return errorsx.Wrap(err)
	}
	return nil
}

// rowIterator scans each database row into typed nullable destinations, one per projected column
type rowIterator struct {
	rows      *sqlx.Rows
	projected *tablescan.Schema
	dests     []interface{}
	row       tablescan.Row
	err       errorsx.Error
	closed    bool
}

func newRowIterator(rows *sqlx.Rows, projected *tablescan.Schema) *rowIterator {
	dests := make([]interface{}, projected.NumColumns())
	for i, column := range projected.Columns() {
		if column.Type.IsInteger() {
			dests[i] = new(sql.NullInt64)
		} else {
			dests[i] = new(sql.NullFloat64)
		}
	}

	return &rowIterator{rows: rows, projected: projected, dests: dests}
}

func (it *rowIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}

	if !it.rows.Next() {
		rowsErr := it.rows.Err()
		if rowsErr != nil {
			it.err = errorsx.Wrap(rowsErr)
		}
		it.Close()
		return false
	}

	err := it.rows.Scan(it.dests...)
	if err != nil {
		it.err = errorsx.Wrap(err)
		return false
	}

	values := make([]interface{}, len(it.dests))
	for i, dest := range it.dests {
		values[i] = destValue(it.projected.Column(i).Type, dest)
	}
	it.row = tablescan.RowFromValues(it.projected, values)

	return true
}

func destValue(columnType tablescan.ColumnType, dest interface{}) interface{} {
	switch dest := dest.(type) {
	case *sql.NullInt64:
		if !dest.Valid {
			return nil
		}
		if columnType == tablescan.ColumnTypeInt32 {
			return int32(dest.Int64)
		}
		return dest.Int64
	case *sql.NullFloat64:
		if !dest.Valid {
			return nil
		}
		if columnType == tablescan.ColumnTypeFloat32 {
			return float32(dest.Float64)
		}
		return dest.Float64
	default:
		return nil
	}
}

func (it *rowIterator) Row() tablescan.Row {
	return it.row
}

func (it *rowIterator) Err() errorsx.Error {
	return it.err
}

func (it *rowIterator) Close() errorsx.Error {
	if it.closed {
		return nil
	}
	it.closed = true

	err := it.rows.Close()
	if err != nil {
		return errorsx.Wrap(err)
	}
	return nil
}
