package predicate

import (
	"fmt"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
)

type ComparativeOperator string

const (
	ComparativeOperatorGreaterThan          ComparativeOperator = ">"
	ComparativeOperatorLessThan             ComparativeOperator = "<"
	ComparativeOperatorLessThanOrEqualTo    ComparativeOperator = "<="
	ComparativeOperatorGreaterThanOrEqualTo ComparativeOperator = ">="
	ComparativeOperatorEqualTo              ComparativeOperator = "=="
	ComparativeOperatorNotEqualTo           ComparativeOperator = "!="
)

// Flip gives the operator that keeps the comparison true when the two sides are swapped (a < b == b > a)
func (op ComparativeOperator) Flip() ComparativeOperator {
	switch op {
	case ComparativeOperatorGreaterThan:
		return ComparativeOperatorLessThan
	case ComparativeOperatorLessThan:
		return ComparativeOperatorGreaterThan
	case ComparativeOperatorGreaterThanOrEqualTo:
		return ComparativeOperatorLessThanOrEqualTo
	case ComparativeOperatorLessThanOrEqualTo:
		return ComparativeOperatorGreaterThanOrEqualTo
	default:
		return op
	}
}

func (op ComparativeOperator) isValid() bool {
	switch op {
	case ComparativeOperatorGreaterThan,
		ComparativeOperatorLessThan,
		ComparativeOperatorGreaterThanOrEqualTo,
		ComparativeOperatorLessThanOrEqualTo,
		ComparativeOperatorEqualTo,
		ComparativeOperatorNotEqualTo:
		return true
	default:
		return false
	}
}

// ComparativeFilter compares one column with a literal: <FieldName> <Operator> <Operand>
type ComparativeFilter struct {
	FieldName string
	Operator  ComparativeOperator
	Operand   Operand
}

var _ Filter = &ComparativeFilter{}

func (cf *ComparativeFilter) Validate(schema *tablescan.Schema) errorsx.Error {
	if cf.Operand == nil {
		return tablescan.NewInvalidPredicateError("operand is nil", "column", cf.FieldName)
	}

	if !cf.Operator.isValid() {
		return tablescan.NewInvalidPredicateError("unrecognised operator", "operator", string(cf.Operator))
	}

	if schema != nil && !schema.HasColumn(cf.FieldName) {
		return tablescan.NewUnknownColumnError(cf.FieldName)
	}

	return nil
}

// Matches reports whether a column value satisfies the comparison
func (cf *ComparativeFilter) Matches(value Operand) bool {
	switch cf.Operator {
	case ComparativeOperatorLessThan:
		return value.IsLessThan(cf.Operand)
	case ComparativeOperatorLessThanOrEqualTo:
		return value.IsLessThanOrEqualTo(cf.Operand)
	case ComparativeOperatorGreaterThan:
		return value.IsGreaterThan(cf.Operand)
	case ComparativeOperatorGreaterThanOrEqualTo:
		return value.IsGreaterThanOrEqualTo(cf.Operand)
	case ComparativeOperatorEqualTo:
		return value.EqualTo(cf.Operand)
	case ComparativeOperatorNotEqualTo:
		return !value.EqualTo(cf.Operand)
	default:
		return false
	}
}

func (cf *ComparativeFilter) compile(schema *tablescan.Schema) (MatchFunc, errorsx.Error) {
	idx, err := schema.ColumnIndex(cf.FieldName)
	if err != nil {
		return nil, err
	}

	return func(row tablescan.Row) bool {
		value, ok := OperandFromValue(row.Value(idx))
		if !ok {
			// nulls never match
			return false
		}
		return cf.Matches(value)
	}, nil
}

func (cf *ComparativeFilter) ShouldRowGroupBeScanned(stats RowGroupStatistics) (ShouldScanResult, errorsx.Error) {
	colMinVal, colMaxVal, ok, err := stats.ColumnMinMax(cf.FieldName)
	if err != nil {
		return ShouldScanResultNo, errorsx.Wrap(err)
	}

	if !ok {
		return ShouldScanResultNotSure, nil
	}

	var mightMatch bool
	switch cf.Operator {
	case ComparativeOperatorLessThan:
		mightMatch = colMinVal.IsLessThan(cf.Operand)
	case ComparativeOperatorLessThanOrEqualTo:
		mightMatch = colMinVal.IsLessThanOrEqualTo(cf.Operand)
	case ComparativeOperatorGreaterThan:
		mightMatch = colMaxVal.IsGreaterThan(cf.Operand)
	case ComparativeOperatorGreaterThanOrEqualTo:
		mightMatch = colMaxVal.IsGreaterThanOrEqualTo(cf.Operand)
	case ComparativeOperatorEqualTo:
		mightMatch = colMinVal.IsLessThanOrEqualTo(cf.Operand) && colMaxVal.IsGreaterThanOrEqualTo(cf.Operand)
	case ComparativeOperatorNotEqualTo:
		// only a row group holding nothing but the operand can be skipped
		mightMatch = !(colMinVal.EqualTo(cf.Operand) && colMaxVal.EqualTo(cf.Operand))
	default:
		return ShouldScanResultNo, errorsx.Errorf("unrecognised operator: %q", cf.Operator)
	}

	if mightMatch {
		return ShouldScanResultYes, nil
	}
	return ShouldScanResultNo, nil
}

func (cf *ComparativeFilter) BuildColumnNamesWanted() map[string]struct{} {
	return map[string]struct{}{
		cf.FieldName: {},
	}
}

func (cf *ComparativeFilter) GetComparativeFilters() []*ComparativeFilter {
	return []*ComparativeFilter{cf}
}

func (cf *ComparativeFilter) writeSQL(w *sqlWriter) {
	w.writeComparison(cf)
}

func (cf *ComparativeFilter) String() string {
	return fmt.Sprintf("(%s %s %v)", cf.FieldName, cf.Operator, cf.Operand)
}
