package tablescan

import (
	"fmt"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

type ColumnType int

const (
	ColumnTypeInt32 ColumnType = iota + 1
	ColumnTypeInt64
	ColumnTypeFloat32
	ColumnTypeFloat64
)

var columnTypeStrings = []string{
	"Unknown",
	"int32",
	"int64",
	"float32",
	"float64",
}

func (ct ColumnType) String() string {
	if ct < 0 || int(ct) >= len(columnTypeStrings) {
		return columnTypeStrings[0]
	}
	return columnTypeStrings[ct]
}

func (ct ColumnType) MarshalText() ([]byte, error) {
	return []byte(ct.String()), nil
}

// ByteSize is the width of one value of this type in a row
func (ct ColumnType) ByteSize() int64 {
	switch ct {
	case ColumnTypeInt32, ColumnTypeFloat32:
		return 4
	case ColumnTypeInt64, ColumnTypeFloat64:
		return 8
	default:
		return 0
	}
}

func (ct ColumnType) IsInteger() bool {
	return ct == ColumnTypeInt32 || ct == ColumnTypeInt64
}

type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the fixed, ordered set of numeric columns of a table.
// Column names are resolved to indexes once, when a scan is set up, and rows are then read by index.
type Schema struct {
	columns     []Column
	indexByName map[string]int
}

func NewSchema(columns []Column) (*Schema, errorsx.Error) {
	indexByName := make(map[string]int, len(columns))
	for i, column := range columns {
		if column.Name == "" {
			return nil, errorsx.Errorf("column %d has no name", i)
		}
		if column.Type.ByteSize() == 0 {
			return nil, errorsx.Errorf("column %q has unsupported type %v", column.Name, column.Type)
		}
		_, exists := indexByName[column.Name]
		if exists {
			return nil, errorsx.Errorf("duplicate column name %q", column.Name)
		}
		indexByName[column.Name] = i
	}

	return &Schema{columns, indexByName}, nil
}

// MustNewSchema is NewSchema for statically known schemas. It panics on an invalid schema.
func MustNewSchema(columns ...Column) *Schema {
	schema, err := NewSchema(columns)
	if err != nil {
		panic(err.Error())
	}
	return schema
}

func (s *Schema) Columns() []Column {
	return s.columns
}

func (s *Schema) NumColumns() int {
	return len(s.columns)
}

func (s *Schema) Column(idx int) Column {
	return s.columns[idx]
}

func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, column := range s.columns {
		names[i] = column.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or an UnknownColumn error
func (s *Schema) ColumnIndex(name string) (int, errorsx.Error) {
	idx, ok := s.indexByName[name]
	if !ok {
		return 0, NewUnknownColumnError(name)
	}
	return idx, nil
}

func (s *Schema) HasColumn(name string) bool {
	_, ok := s.indexByName[name]
	return ok
}

// RowSize is the in-memory byte size of one row
func (s *Schema) RowSize() int64 {
	var size int64
	for _, column := range s.columns {
		size += column.Type.ByteSize()
	}
	return size
}

// Project builds the schema made of the given columns, in the given order.
// An empty list of names means all columns. A name given more than once is kept at its first position.
func (s *Schema) Project(names []string) (*Schema, errorsx.Error) {
	if len(names) == 0 {
		return s, nil
	}

	var columns []Column
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		idx, err := s.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		columns = append(columns, s.columns[idx])
	}

	return NewSchema(columns)
}

func (s *Schema) String() string {
	var fragments []string
	for _, column := range s.columns {
		fragments = append(fragments, fmt.Sprintf("%q: %s", column.Name, column.Type))
	}
	return fmt.Sprintf("{%s}", strings.Join(fragments, ", "))
}
