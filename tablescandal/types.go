package tablescandal

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
)

// TableHandle is an open, read-only connection to one table in a store.
// A handle is not safe for concurrent scans; open one handle per scan.
type TableHandle interface {
	// Info methods
	Name() string
	Schema() *tablescan.Schema
	Info() (*tablescan.TableInfo, errorsx.Error)

	// Iterate yields every row of the table, in storage order
	Iterate(ctx context.Context) (tablescan.RowIterator, errorsx.Error)
	// Evaluate has the store evaluate the filter itself and yields the matching rows, projected to opts.Select.
	// A nil filter matches every row.
	Evaluate(ctx context.Context, where predicate.Filter, opts EvaluateOptions) (tablescan.RowIterator, errorsx.Error)

	Close() errorsx.Error
}

type EvaluateOptions struct {
	Select []string // empty = all columns
	// Materialize reads every matching row into memory before the iterator is returned
	Materialize bool
}

type StoreType string

const (
	StoreTypeParquet    StoreType = "parquet"
	StoreTypeDuckDB     StoreType = "duckdb"
	StoreTypePostgresql StoreType = "postgresql"
)

type ConnURL struct {
	Type           StoreType
	ConnectionPath string
}

func (c ConnURL) String() string {
	return string(c.Type) + ConnectionPathSeparator + c.ConnectionPath
}

const ConnectionPathSeparator = "://"

// ParseConnString parses a connection string of the form <store type>://<path or URL>.
// A bare path to a .parquet file is read as parquet://<path>.
func ParseConnString(str string) (ConnURL, errorsx.Error) {
	idx := strings.Index(str, ConnectionPathSeparator)
	if idx < 0 {
		if strings.EqualFold(filepath.Ext(str), ".parquet") {
			return ConnURL{StoreTypeParquet, str}, nil
		}
		return ConnURL{}, errorsx.Errorf("couldn't find connection path separator %q in connection string %q", ConnectionPathSeparator, str)
	}

	connURL := ConnURL{
		Type:           StoreType(str[:idx]),
		ConnectionPath: str[idx+len(ConnectionPathSeparator):],
	}

	if connURL.ConnectionPath == "" {
		return ConnURL{}, errorsx.Errorf("empty connection path in connection string %q", str)
	}

	return connURL, nil
}

// ResolveSelect returns the schema that results from projecting schema to selectCols,
// and the index in schema of each selected column.
// An empty selectCols selects every column. Unknown columns fail with UnknownColumn.
func ResolveSelect(schema *tablescan.Schema, selectCols []string) (*tablescan.Schema, []int, errorsx.Error) {
	projected, err := schema.Project(selectCols)
	if err != nil {
		return nil, nil, err
	}

	indexes := make([]int, projected.NumColumns())
	for i, col := range projected.Columns() {
		indexes[i], err = schema.ColumnIndex(col.Name)
		if err != nil {
			return nil, nil, err
		}
	}

	return projected, indexes, nil
}
