package queryengine

import (
	"context"
	"fmt"
	"strings"

	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
)

type Strategy string

const (
	// StrategyIterate reads every row and filters client-side
	StrategyIterate Strategy = "iterate"
	// StrategyWhere has the store filter, and streams the result
	StrategyWhere Strategy = "where"
	// StrategyReadWhere has the store filter, and reads the whole result into memory before returning
	StrategyReadWhere Strategy = "read_where"
)

var AllStrategies = []Strategy{StrategyIterate, StrategyWhere, StrategyReadWhere}

func ParseStrategy(s string) (Strategy, errorsx.Error) {
	for _, strategy := range AllStrategies {
		if string(strategy) == s {
			return strategy, nil
		}
	}

	return "", errorsx.Errorf("unknown strategy %q. Available strategies: %v", s, AllStrategies)
}

type Query struct {
	Select []string // empty = all columns
	Where  predicate.Filter
}

// Validate checks the query against the table schema: every column must exist and the filter must be well formed
func (q *Query) Validate(schema *tablescan.Schema) errorsx.Error {
	_, _, err := tablescandal.ResolveSelect(schema, q.Select)
	if err != nil {
		return err
	}

	if q.Where == nil {
		return nil
	}

	return q.Where.Validate(schema)
}

func (q *Query) String() string {
	selectStr := "*"
	if len(q.Select) != 0 {
		selectStr = strings.Join(q.Select, ", ")
	}

	whereStr := ""
	if q.Where != nil {
		whereStr = " WHERE " + q.Where.String()
	}

	return fmt.Sprintf("SELECT %s%s", selectStr, whereStr)
}

// Run starts the query against the table. The rows are read as the returned iterator is advanced
// (apart from StrategyReadWhere), so the handle must stay open until the iterator is closed.
// If ctx carries a trace, the query's span lasts until the iterator is closed.
func (q *Query) Run(ctx context.Context, handle tablescandal.TableHandle, strategy Strategy) (*ResultIterator, errorsx.Error) {
	endSpan := startSpan(ctx, fmt.Sprintf("query run (%s): %s", strategy, q))

	result, err := q.run(ctx, handle, strategy)
	if err != nil {
		endSpan()
		return nil, err
	}

	result.onClose = endSpan
	return result, nil
}

func (q *Query) run(ctx context.Context, handle tablescandal.TableHandle, strategy Strategy) (*ResultIterator, errorsx.Error) {
	err := q.Validate(handle.Schema())
	if err != nil {
		return nil, err
	}

	switch strategy {
	case StrategyIterate:
		match, err := predicate.Compile(q.Where, handle.Schema())
		if err != nil {
			return nil, err
		}
		return ScanClientSide(ctx, handle, match, q.Select)
	case StrategyWhere:
		return ScanStoreSide(ctx, handle, q.Where, q.Select, false)
	case StrategyReadWhere:
		return ScanStoreSide(ctx, handle, q.Where, q.Select, true)
	default:
		return nil, errorsx.Errorf("unknown strategy: %q", strategy)
	}
}

// startSpan records a tracing span if the context carries a tracer (as set by the tracing HTTP middleware).
// Call the returned func to end the span.
func startSpan(ctx context.Context, name string) func() {
	if ctx.Value(tracing.TracerCtxKey) == nil || ctx.Value(tracing.TraceCtxKey) == nil {
		return func() {}
	}

	span := tracing.StartSpan(ctx, name)
	return func() {
		span.End(ctx)
	}
}
