package queryengine

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
)

// ScanClientSide streams every row of the table through match, and yields the matching rows projected to selectCols.
// Only the current row is held in memory. A nil match yields every row.
// Unknown select columns fail with UnknownColumn before the table is read.
func ScanClientSide(ctx context.Context, handle tablescandal.TableHandle, match predicate.MatchFunc, selectCols []string) (*ResultIterator, errorsx.Error) {
	projected, indexes, err := tablescandal.ResolveSelect(handle.Schema(), selectCols)
	if err != nil {
		return nil, err
	}

	rows, err := handle.Iterate(ctx)
	if err != nil {
		return nil, err
	}

	return newResultIterator(&filteringIterator{
		rows:      rows,
		match:     match,
		projected: projected,
		indexes:   indexes,
	}, projected), nil
}

// ScanStoreSide passes the filter to the store unchanged, to be evaluated there.
// With materialize, the whole result is read before ScanStoreSide returns.
func ScanStoreSide(ctx context.Context, handle tablescandal.TableHandle, where predicate.Filter, selectCols []string, materialize bool) (*ResultIterator, errorsx.Error) {
	projected, _, err := tablescandal.ResolveSelect(handle.Schema(), selectCols)
	if err != nil {
		return nil, err
	}

	if where != nil {
		err = where.Validate(handle.Schema())
		if err != nil {
			return nil, err
		}
	}

	rows, err := handle.Evaluate(ctx, where, tablescandal.EvaluateOptions{
		Select:      selectCols,
		Materialize: materialize,
	})
	if err != nil {
		return nil, err
	}

	return newResultIterator(rows, projected), nil
}

// ScanInMemory reads every row of the table into memory before filtering them with match.
// It is the baseline the streaming strategies are measured against, and needs the whole table to fit in memory.
func ScanInMemory(ctx context.Context, handle tablescandal.TableHandle, match predicate.MatchFunc, selectCols []string) (*ResultIterator, errorsx.Error) {
	projected, indexes, err := tablescandal.ResolveSelect(handle.Schema(), selectCols)
	if err != nil {
		return nil, err
	}

	it, err := handle.Iterate(ctx)
	if err != nil {
		return nil, err
	}

	allRows, err := tablescan.CollectRows(it)
	if err != nil {
		return nil, err
	}

	var matched []tablescan.Row
	for _, row := range allRows {
		if match == nil || match(row) {
			matched = append(matched, row.Project(projected, indexes))
		}
	}

	return newResultIterator(tablescan.NewSliceIterator(matched), projected), nil
}

type filteringIterator struct {
	rows      tablescan.RowIterator
	match     predicate.MatchFunc
	projected *tablescan.Schema
	indexes   []int
	row       tablescan.Row
}

func (it *filteringIterator) Next() bool {
	for it.rows.Next() {
		row := it.rows.Row()
		if it.match != nil && !it.match(row) {
			continue
		}

		it.row = row.Project(it.projected, it.indexes)
		return true
	}

	return false
}

func (it *filteringIterator) Row() tablescan.Row {
	return it.row
}

func (it *filteringIterator) Err() errorsx.Error {
	return it.rows.Err()
}

func (it *filteringIterator) Close() errorsx.Error {
	return it.rows.Close()
}
