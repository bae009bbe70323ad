package tablemocks

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
)

var _ tablescandal.TableHandle = &MemTable{}

// MemTable is an in-memory table handle. Rows are produced by RowFunc on demand,
// so a MemTable can stand in for tables far bigger than memory.
type MemTable struct {
	TableName   string
	TableSchema *tablescan.Schema
	NumRows     int64
	RowFunc     func(rowIdx int64) tablescan.Row

	// OnIterate and OnEvaluate are called when a scan starts, if set
	OnIterate  func()
	OnEvaluate func(where predicate.Filter, opts tablescandal.EvaluateOptions)

	closed bool
}

// NewMemTableFromRows builds a table holding the given rows
func NewMemTableFromRows(name string, schema *tablescan.Schema, rows ...tablescan.Row) *MemTable {
	return &MemTable{
		TableName:   name,
		TableSchema: schema,
		NumRows:     int64(len(rows)),
		RowFunc: func(rowIdx int64) tablescan.Row {
			return rows[rowIdx]
		},
	}
}

func (t *MemTable) Name() string {
	return t.TableName
}

func (t *MemTable) Schema() *tablescan.Schema {
	return t.TableSchema
}

func (t *MemTable) Info() (*tablescan.TableInfo, errorsx.Error) {
	return tablescan.NewTableInfo(t.TableName, t.TableSchema, t.NumRows, 0), nil
}

func (t *MemTable) Iterate(ctx context.Context) (tablescan.RowIterator, errorsx.Error) {
	if t.closed {
		return nil, tablescan.NewStorageUnavailableError(nil, "table", t.TableName, "reason", "closed")
	}
	if t.OnIterate != nil {
		t.OnIterate()
	}

	return &memTableIterator{ctx: ctx, table: t, idx: -1}, nil
}

func (t *MemTable) Evaluate(ctx context.Context, where predicate.Filter, opts tablescandal.EvaluateOptions) (tablescan.RowIterator, errorsx.Error) {
	if t.closed {
		return nil, tablescan.NewStorageUnavailableError(nil, "table", t.TableName, "reason", "closed")
	}

	projected, indexes, err := tablescandal.ResolveSelect(t.TableSchema, opts.Select)
	if err != nil {
		return nil, err
	}

	match, err := predicate.Compile(where, t.TableSchema)
	if err != nil {
		return nil, err
	}

	if t.OnEvaluate != nil {
		t.OnEvaluate(where, opts)
	}

	it := &memTableIterator{
		ctx:       ctx,
		table:     t,
		idx:       -1,
		match:     match,
		projected: projected,
		indexes:   indexes,
	}

	if !opts.Materialize {
		return it, nil
	}

	rows, err := tablescan.CollectRows(it)
	if err != nil {
		return nil, err
	}

	return tablescan.NewSliceIterator(rows), nil
}

func (t *MemTable) Close() errorsx.Error {
	t.closed = true
	return nil
}

type memTableIterator struct {
	ctx   context.Context
	table *MemTable
	idx   int64
	row   tablescan.Row
	err   errorsx.Error

	match     predicate.MatchFunc
	projected *tablescan.Schema
	indexes   []int
}

func (it *memTableIterator) Next() bool {
	for {
		if it.err != nil || it.idx+1 >= it.table.NumRows {
			return false
		}

		ctxErr := it.ctx.Err()
		if ctxErr != nil {
			it.err = errorsx.Wrap(ctxErr)
			return false
		}

		it.idx++
		row := it.table.RowFunc(it.idx)
		if it.match != nil && !it.match(row) {
			continue
		}
		if it.projected != nil {
			row = row.Project(it.projected, it.indexes)
		}

		it.row = row
		return true
	}
}

func (it *memTableIterator) Row() tablescan.Row {
	return it.row
}

func (it *memTableIterator) Err() errorsx.Error {
	return it.err
}

func (it *memTableIterator) Close() errorsx.Error {
	it.idx = it.table.NumRows
	return nil
}
