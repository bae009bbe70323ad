package tablescan

import (
	"github.com/jamesrr39/goutil/errorsx"
)

// RowIterator is a pull-based, single-pass sequence of rows.
//
//	for it.Next() {
//		row := it.Row()
//	}
//	if it.Err() != nil { ... }
//
// Close must be called when the caller stops iterating, even after an error.
type RowIterator interface {
	Next() bool
	Row() Row
	Err() errorsx.Error
	Close() errorsx.Error
}

// SliceIterator iterates over rows that are already held in memory
type SliceIterator struct {
	rows []Row
	idx  int
}

var _ RowIterator = &SliceIterator{}

func NewSliceIterator(rows []Row) *SliceIterator {
	return &SliceIterator{rows, -1}
}

func (it *SliceIterator) Next() bool {
	if it.idx+1 >= len(it.rows) {
		it.idx = len(it.rows)
		return false
	}
	it.idx++
	return true
}

func (it *SliceIterator) Row() Row {
	return it.rows[it.idx]
}

func (it *SliceIterator) Err() errorsx.Error {
	return nil
}

func (it *SliceIterator) Close() errorsx.Error {
	it.rows = nil
	return nil
}

// Len is the number of rows held by the iterator
func (it *SliceIterator) Len() int {
	return len(it.rows)
}

// CollectRows drains the iterator into memory and closes it.
// Only use this when the result is known to fit in memory.
func CollectRows(it RowIterator) ([]Row, errorsx.Error) {
	defer it.Close()

	var rows []Row
	for it.Next() {
		rows = append(rows, it.Row())
	}

	err := it.Err()
	if err != nil {
		return nil, err
	}

	err = it.Close()
	if err != nil {
		return nil, err
	}

	return rows, nil
}
