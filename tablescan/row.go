package tablescan

import (
	"fmt"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

// Row is one record of a table. Values are int32, int64, float32, float64 or nil (null),
// matching the types of the schema.
type Row struct {
	schema *Schema
	values []interface{}
}

func NewRow(schema *Schema, values []interface{}) (Row, errorsx.Error) {
	if len(values) != schema.NumColumns() {
		return Row{}, errorsx.Errorf("expected %d values but got %d", schema.NumColumns(), len(values))
	}

	for i, value := range values {
		if value == nil {
			continue
		}
		err := checkValueType(schema.Column(i), value)
		if err != nil {
			return Row{}, err
		}
	}

	return Row{schema, values}, nil
}

// RowFromValues builds a row without checking the values against the schema.
// Stores use it for values they have already decoded by column type.
func RowFromValues(schema *Schema, values []interface{}) Row {
	return Row{schema, values}
}

// MustNewRow is NewRow for tests and fixtures
func MustNewRow(schema *Schema, values ...interface{}) Row {
	row, err := NewRow(schema, values)
	if err != nil {
		panic(err.Error())
	}
	return row
}

func checkValueType(column Column, value interface{}) errorsx.Error {
	var ok bool
	switch column.Type {
	case ColumnTypeInt32:
		_, ok = value.(int32)
	case ColumnTypeInt64:
		_, ok = value.(int64)
	case ColumnTypeFloat32:
		_, ok = value.(float32)
	case ColumnTypeFloat64:
		_, ok = value.(float64)
	}

	if !ok {
		return errorsx.Errorf("column %q is %s, but got value of type %T", column.Name, column.Type, value)
	}
	return nil
}

func (r Row) Schema() *Schema {
	return r.schema
}

func (r Row) Values() []interface{} {
	return r.values
}

func (r Row) Value(idx int) interface{} {
	return r.values[idx]
}

func (r Row) IsNull(idx int) bool {
	return r.values[idx] == nil
}

// Float64 returns the value at idx widened to a float64. Null values are returned as 0.
func (r Row) Float64(idx int) float64 {
	switch val := r.values[idx].(type) {
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	default:
		return 0
	}
}

// Int64 returns the value at idx as an int64 (floats are truncated). Null values are returned as 0.
func (r Row) Int64(idx int) int64 {
	switch val := r.values[idx].(type) {
	case int32:
		return int64(val)
	case int64:
		return val
	case float32:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}

// Project builds a row of the projected schema, taking the values at indexes (as resolved against r's schema)
func (r Row) Project(projected *Schema, indexes []int) Row {
	if projected == r.schema {
		return r
	}

	values := make([]interface{}, len(indexes))
	for i, idx := range indexes {
		values[i] = r.values[idx]
	}
	return Row{projected, values}
}

// Get looks a value up by column name. Prefer resolving the index once with Schema.ColumnIndex in loops.
func (r Row) Get(name string) (interface{}, errorsx.Error) {
	idx, err := r.schema.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	return r.values[idx], nil
}

func (r Row) GoString() string {
	var fragments []string
	for i, value := range r.values {
		fragments = append(fragments, fmt.Sprintf("%s: %#v", r.schema.Column(i).Name, value))
	}

	return fmt.Sprintf("{%s}", strings.Join(fragments, ", "))
}
