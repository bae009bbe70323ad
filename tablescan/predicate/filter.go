package predicate

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
)

type ShouldScanResult int

const (
	ShouldScanResultYes     ShouldScanResult = iota + 1
	ShouldScanResultNotSure                  // no statistics available, or the filter doesn't concern the column
	ShouldScanResultNo
)

var columnScanResultStrings = []string{
	"Unknown",
	"Yes",
	"Not Sure",
	"No",
}

func (csr ShouldScanResult) String() string {
	if csr < 0 || int(csr) >= len(columnScanResultStrings) {
		return columnScanResultStrings[0]
	}
	return columnScanResultStrings[csr]
}

// ShouldScan is true unless the statistics prove that no row can match
func (csr ShouldScanResult) ShouldScan() bool {
	return csr != ShouldScanResultNo
}

// RowGroupStatistics gives the min and max value of a column within one chunk of rows (for example a parquet row group).
// ok is false when the store has no statistics for the column.
type RowGroupStatistics interface {
	ColumnMinMax(columnName string) (min, max Operand, ok bool, err errorsx.Error)
}

// MatchFunc is a pure function of a row's fields
type MatchFunc func(row tablescan.Row) bool

// Filter is a node of a predicate tree: a ComparativeFilter or a LogicalFilter.
type Filter interface {
	Validate(schema *tablescan.Schema) errorsx.Error
	ShouldRowGroupBeScanned(stats RowGroupStatistics) (ShouldScanResult, errorsx.Error)
	GetComparativeFilters() []*ComparativeFilter
	BuildColumnNamesWanted() map[string]struct{} // map[columnName]void
	String() string

	compile(schema *tablescan.Schema) (MatchFunc, errorsx.Error)
	writeSQL(w *sqlWriter)
}

// Compile validates the filter against the schema and resolves its column names to row indexes,
// so the returned function does no name lookups per row.
// A nil filter matches every row.
func Compile(filter Filter, schema *tablescan.Schema) (MatchFunc, errorsx.Error) {
	if filter == nil {
		return matchAll, nil
	}

	err := filter.Validate(schema)
	if err != nil {
		return nil, err
	}

	return filter.compile(schema)
}

func matchAll(row tablescan.Row) bool {
	return true
}

// ColumnNames lists the columns a filter reads, in the order they first appear
func ColumnNames(filter Filter) []string {
	if filter == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var names []string
	for _, cf := range filter.GetComparativeFilters() {
		_, ok := seen[cf.FieldName]
		if ok {
			continue
		}
		seen[cf.FieldName] = struct{}{}
		names = append(names, cf.FieldName)
	}
	return names
}

func And(filters ...Filter) *LogicalFilter {
	return &LogicalFilter{
		Operator:     LogicalFilterOperatorAnd,
		ChildFilters: filters,
	}
}

func Or(filters ...Filter) *LogicalFilter {
	return &LogicalFilter{
		Operator:     LogicalFilterOperatorOr,
		ChildFilters: filters,
	}
}

func Compare(fieldName string, operator ComparativeOperator, operand Operand) *ComparativeFilter {
	return &ComparativeFilter{
		FieldName: fieldName,
		Operator:  operator,
		Operand:   operand,
	}
}

// Between is the open range lower < fieldName < upper, written as the conjunction
// (fieldName > lower) & (fieldName < upper)
func Between(fieldName string, lower, upper Operand) *LogicalFilter {
	return And(
		Compare(fieldName, ComparativeOperatorGreaterThan, lower),
		Compare(fieldName, ComparativeOperatorLessThan, upper),
	)
}
