package predicate

import (
	"fmt"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
)

type LogicalFilterOperator string

const (
	LogicalFilterOperatorAnd LogicalFilterOperator = "&"
	LogicalFilterOperatorOr  LogicalFilterOperator = "|"
)

type LogicalFilter struct {
	Operator     LogicalFilterOperator
	ChildFilters []Filter
}

var _ Filter = &LogicalFilter{}

func (lf *LogicalFilter) Validate(schema *tablescan.Schema) errorsx.Error {
	if len(lf.ChildFilters) == 0 {
		return tablescan.NewInvalidPredicateError("no child filters supplied", "operator", string(lf.Operator))
	}

	switch lf.Operator {
	case LogicalFilterOperatorAnd, LogicalFilterOperatorOr:
	default:
		return tablescan.NewInvalidPredicateError("unrecognised operator", "operator", string(lf.Operator))
	}

	for _, childFilter := range lf.ChildFilters {
		if childFilter == nil {
			return tablescan.NewInvalidPredicateError("nil child filter", "operator", string(lf.Operator))
		}

		err := childFilter.Validate(schema)
		if err != nil {
			return err
		}
	}

	return nil
}

func (lf *LogicalFilter) compile(schema *tablescan.Schema) (MatchFunc, errorsx.Error) {
	var childMatchers []MatchFunc
	for _, childFilter := range lf.ChildFilters {
		matcher, err := childFilter.compile(schema)
		if err != nil {
			return nil, err
		}
		childMatchers = append(childMatchers, matcher)
	}

	switch lf.Operator {
	case LogicalFilterOperatorAnd:
		return func(row tablescan.Row) bool {
			for _, matcher := range childMatchers {
				if !matcher(row) {
					return false
				}
			}
			return true
		}, nil
	case LogicalFilterOperatorOr:
		return func(row tablescan.Row) bool {
			for _, matcher := range childMatchers {
				if matcher(row) {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, errorsx.Errorf("operator %q not supported", lf.Operator)
	}
}

func (lf *LogicalFilter) ShouldRowGroupBeScanned(stats RowGroupStatistics) (ShouldScanResult, errorsx.Error) {
	switch lf.Operator {
	case LogicalFilterOperatorAnd:
		var shouldScan ShouldScanResult = ShouldScanResultNotSure
		for _, childFilter := range lf.ChildFilters {
			childFilterScanResult, err := childFilter.ShouldRowGroupBeScanned(stats)
			if err != nil {
				return 0, errorsx.Wrap(err)
			}

			switch childFilterScanResult {
			case ShouldScanResultNo:
				return ShouldScanResultNo, nil
			case ShouldScanResultYes:
				// mark row group as wanted, but don't exit yet (wait to see the result of the other child filters)
				shouldScan = ShouldScanResultYes
			case ShouldScanResultNotSure:
				// no effect on this
			default:
				return 0, errorsx.Errorf("unknown filter scan result: %v", childFilterScanResult)
			}
		}
		return shouldScan, nil
	case LogicalFilterOperatorOr:
		allNo := true
		var shouldScan ShouldScanResult = ShouldScanResultNotSure
		for _, childFilter := range lf.ChildFilters {
			childFilterScanResult, err := childFilter.ShouldRowGroupBeScanned(stats)
			if err != nil {
				return 0, errorsx.Wrap(err)
			}

			switch childFilterScanResult {
			case ShouldScanResultNo:
			case ShouldScanResultYes:
				allNo = false
				shouldScan = ShouldScanResultYes
			case ShouldScanResultNotSure:
				allNo = false
			default:
				return 0, errorsx.Errorf("unknown filter scan result: %v", childFilterScanResult)
			}
		}
		if allNo {
			return ShouldScanResultNo, nil
		}
		return shouldScan, nil
	default:
		return 0, errorsx.Errorf("unrecognised operator: %q", lf.Operator)
	}
}

func (lf *LogicalFilter) BuildColumnNamesWanted() map[string]struct{} {
	wantedMap := make(map[string]struct{})
	for _, subFilter := range lf.ChildFilters {
		wantedSubMap := subFilter.BuildColumnNamesWanted()
		for wantedSubCol := range wantedSubMap {
			wantedMap[wantedSubCol] = struct{}{}
		}
	}
	return wantedMap
}

func (lf *LogicalFilter) GetComparativeFilters() []*ComparativeFilter {
	var filters []*ComparativeFilter
	for _, childFilter := range lf.ChildFilters {
		filters = append(filters, childFilter.GetComparativeFilters()...)
	}
	return filters
}

func (lf *LogicalFilter) writeSQL(w *sqlWriter) {
	w.writeLogical(lf)
}

func (lf *LogicalFilter) String() string {
	var s []string
	for _, childFilter := range lf.ChildFilters {
		s = append(s, childFilter.String())
	}

	return fmt.Sprintf("(%s)", strings.Join(s, fmt.Sprintf(" %s ", lf.Operator)))
}
