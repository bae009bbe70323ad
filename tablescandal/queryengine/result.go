package queryengine

import (
	"fmt"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
)

type ResultRow []interface{}

func (r ResultRow) GoString() string {
	var fragments []string
	for _, item := range r {
		fragments = append(fragments, fmt.Sprintf("%#v", item))
	}

	return fmt.Sprintf("{%s}", strings.Join(fragments, ", "))
}

// ResultIterator yields the rows of a query, in the order the store produced them.
// It is single-pass; Close releases the underlying reader and is safe to call more than once.
type ResultIterator struct {
	rows   tablescan.RowIterator
	schema *tablescan.Schema
	closed bool
	// onClose is called once, after the rows have been closed
	onClose func()
}

func newResultIterator(rows tablescan.RowIterator, schema *tablescan.Schema) *ResultIterator {
	return &ResultIterator{rows: rows, schema: schema}
}

// Schema is the schema of the result rows
func (it *ResultIterator) Schema() *tablescan.Schema {
	return it.schema
}

func (it *ResultIterator) Next() bool {
	if it.closed {
		return false
	}

	if it.rows.Next() {
		return true
	}

	// exhausted (or failed): release the reader now, Err stays available
	it.close()
	return false
}

func (it *ResultIterator) Row() ResultRow {
	return ResultRow(it.rows.Row().Values())
}

// TableRow is the current row with its schema
func (it *ResultIterator) TableRow() tablescan.Row {
	return it.rows.Row()
}

func (it *ResultIterator) Err() errorsx.Error {
	return it.rows.Err()
}

func (it *ResultIterator) Close() errorsx.Error {
	return it.close()
}

func (it *ResultIterator) close() errorsx.Error {
	if it.closed {
		return nil
	}
	it.closed = true
	err := it.rows.Close()
	if it.onClose != nil {
		it.onClose()
	}
	return err
}

// Collect reads all remaining rows into memory and closes the iterator
func (it *ResultIterator) Collect() ([]ResultRow, errorsx.Error) {
	defer it.Close()

	results := []ResultRow{}
	for it.Next() {
		results = append(results, it.Row())
	}

	err := it.Err()
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Count reads all remaining rows, keeping none of them, and closes the iterator
func (it *ResultIterator) Count() (int64, errorsx.Error) {
	defer it.Close()

	var count int64
	for it.Next() {
		count++
	}

	err := it.Err()
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Values reads all remaining rows and returns the values of one result column, then closes the iterator
func (it *ResultIterator) Values(column string) ([]interface{}, errorsx.Error) {
	defer it.Close()

	idx, err := it.schema.ColumnIndex(column)
	if err != nil {
		return nil, err
	}

	values := []interface{}{}
	for it.Next() {
		values = append(values, it.rows.Row().Value(idx))
	}

	err = it.Err()
	if err != nil {
		return nil, err
	}

	return values, nil
}
