package predicate

import (
	"fmt"
	"strings"
)

var sqlComparativeOperators = map[ComparativeOperator]string{
	ComparativeOperatorGreaterThan:          ">",
	ComparativeOperatorLessThan:             "<",
	ComparativeOperatorGreaterThanOrEqualTo: ">=",
	ComparativeOperatorLessThanOrEqualTo:    "<=",
	ComparativeOperatorEqualTo:              "=",
	ComparativeOperatorNotEqualTo:           "<>",
}

// ToSQL renders the filter as a parameterised SQL boolean expression, with $n placeholders numbered from argOffset+1.
// Operands are always passed as arguments, never interpolated.
// Validate the filter before rendering it.
func ToSQL(filter Filter, argOffset int) (string, []interface{}) {
	w := &sqlWriter{argOffset: argOffset}
	filter.writeSQL(w)
	return w.sb.String(), w.args
}

// QuoteIdentifier quotes a column or table name for PostgreSQL and DuckDB
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type sqlWriter struct {
	sb        strings.Builder
	args      []interface{}
	argOffset int
}

func (w *sqlWriter) writeComparison(cf *ComparativeFilter) {
	w.args = append(w.args, cf.Operand.SQLValue())
	fmt.Fprintf(
		&w.sb,
		"%s %s $%d",
		QuoteIdentifier(cf.FieldName),
		sqlComparativeOperators[cf.Operator],
		w.argOffset+len(w.args),
	)
}

func (w *sqlWriter) writeLogical(lf *LogicalFilter) {
	joiner := " AND "
	if lf.Operator == LogicalFilterOperatorOr {
		joiner = " OR "
	}

	w.sb.WriteString("(")
	for i, childFilter := range lf.ChildFilters {
		if i != 0 {
			w.sb.WriteString(joiner)
		}
		childFilter.writeSQL(w)
	}
	w.sb.WriteString(")")
}
