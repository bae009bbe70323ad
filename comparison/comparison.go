// Package comparison times the query strategies against each other on one table, and checks that they agree.
package comparison

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jamesrr39/tablescan/tablescandal/queryengine"
	"github.com/olekukonko/tablewriter"
)

const (
	RunNameNaive    = "read all, then filter"
	RunNameComposed = "read_where (cond0 & cond1)"
)

type Config struct {
	Where predicate.Filter
	// Cond0 and Cond1, if both are set, are run again as "cond0 & cond1" with the read_where strategy
	Cond0, Cond1 predicate.Filter
	Select       []string
	// IncludeNaive adds a run that reads the whole table into memory before filtering.
	// Only use it on tables that fit in memory.
	IncludeNaive bool
	// Tracer, if set, records a trace of the comparison with a span per run
	Tracer *tracing.Tracer
}

type RunResult struct {
	Name     string
	Query    string
	Duration time.Duration
	RowCount int64
	// MatchesFirst is whether the run returned the same multiset of rows as the first run
	MatchesFirst bool

	rowCounts map[string]int
}

type Report struct {
	TableInfo *tablescan.TableInfo
	Runs      []*RunResult
}

// Consistent is true when every run returned the same multiset of rows
func (r *Report) Consistent() bool {
	for _, run := range r.Runs {
		if !run.MatchesFirst {
			return false
		}
	}
	return true
}

type plannedRun struct {
	name string
	run  func(ctx context.Context) (*queryengine.ResultIterator, errorsx.Error)
	desc string
}

// Run runs each strategy in turn on the table
func Run(ctx context.Context, logger *logpkg.Logger, handle tablescandal.TableHandle, config Config) (*Report, errorsx.Error) {
	tableInfo, err := handle.Info()
	if err != nil {
		return nil, err
	}

	query := &queryengine.Query{Select: config.Select, Where: config.Where}
	err = query.Validate(handle.Schema())
	if err != nil {
		return nil, err
	}

	var plannedRuns []plannedRun
	for _, strategy := range queryengine.AllStrategies {
		strategy := strategy
		plannedRuns = append(plannedRuns, plannedRun{
			name: string(strategy),
			desc: query.String(),
			run: func(ctx context.Context) (*queryengine.ResultIterator, errorsx.Error) {
				return query.Run(ctx, handle, strategy)
			},
		})
	}

	if config.Cond0 != nil && config.Cond1 != nil {
		composedQuery := &queryengine.Query{Select: config.Select, Where: predicate.And(config.Cond0, config.Cond1)}
		err = composedQuery.Validate(handle.Schema())
		if err != nil {
			return nil, err
		}

		plannedRuns = append(plannedRuns, plannedRun{
			name: RunNameComposed,
			desc: composedQuery.String(),
			run: func(ctx context.Context) (*queryengine.ResultIterator, errorsx.Error) {
				return composedQuery.Run(ctx, handle, queryengine.StrategyReadWhere)
			},
		})
	}

	if config.IncludeNaive {
		plannedRuns = append(plannedRuns, plannedRun{
			name: RunNameNaive,
			desc: query.String(),
			run: func(ctx context.Context) (*queryengine.ResultIterator, errorsx.Error) {
				match, err := predicate.Compile(query.Where, handle.Schema())
				if err != nil {
					return nil, err
				}
				return queryengine.ScanInMemory(ctx, handle, match, query.Select)
			},
		})
	}

	if config.Tracer != nil {
		trace := tracing.StartTrace(config.Tracer, fmt.Sprintf("compare on %s: %s", handle.Name(), query))
		ctx = context.WithValue(ctx, tracing.TraceCtxKey, trace)
		ctx = context.WithValue(ctx, tracing.TracerCtxKey, config.Tracer)
		defer func() {
			traceErr := config.Tracer.EndTrace(trace, tableInfo.String())
			if traceErr != nil {
				logger.Error("couldn't write trace: %s", traceErr)
			}
		}()
	}

	report := &Report{TableInfo: tableInfo}
	for _, planned := range plannedRuns {
		logger.Info("running %q: %s", planned.name, planned.desc)

		result, err := timeRun(ctx, config.Tracer != nil, planned)
		if err != nil {
			return nil, errorsx.Wrap(err, "run", planned.name)
		}

		result.MatchesFirst = len(report.Runs) == 0 || sameRowCounts(report.Runs[0].rowCounts, result.rowCounts)
		if !result.MatchesFirst {
			logger.Warn("%q returned different rows to %q", planned.name, report.Runs[0].Name)
		}

		logger.Debug("%q: %d rows in %s", planned.name, result.RowCount, result.Duration)
		report.Runs = append(report.Runs, result)
	}

	return report, nil
}

func timeRun(ctx context.Context, traced bool, planned plannedRun) (*RunResult, errorsx.Error) {
	var span *tracing.Span
	if traced {
		span = tracing.StartSpan(ctx, planned.name)
	}

	startTime := time.Now()

	results, err := planned.run(ctx)
	if err != nil {
		return nil, err
	}
	defer results.Close()

	rowCounts := make(map[string]int)
	var rowCount int64
	for results.Next() {
		rowCounts[results.Row().GoString()]++
		rowCount++
	}
	err = results.Err()
	if err != nil {
		return nil, err
	}

	duration := time.Since(startTime)
	if span != nil {
		span.End(ctx)
	}

	return &RunResult{
		Name:      planned.name,
		Query:     planned.desc,
		Duration:  duration,
		RowCount:  rowCount,
		rowCounts: rowCounts,
	}, nil
}

func sameRowCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for key, count := range a {
		if b[key] != count {
			return false
		}
	}
	return true
}

// Render writes the table info and a table of the run timings
func (r *Report) Render(w io.Writer) errorsx.Error {
	_, err := fmt.Fprintf(w, "Table: %s\nColumns: %s\n\n", r.TableInfo, columnsString(r.TableInfo.Columns))
	if err != nil {
		return errorsx.Wrap(err)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Strategy", "Rows", "Duration", "Rows/s", "Same rows"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, run := range r.Runs {
		table.Append([]string{
			run.Name,
			fmt.Sprintf("%d", run.RowCount),
			run.Duration.Round(time.Microsecond).String(),
			rowsPerSecond(r.TableInfo.NumRows, run.Duration),
			yesNo(run.MatchesFirst),
		})
	}
	table.Render()

	if !r.Consistent() {
		_, err = fmt.Fprintln(w, "WARNING: the strategies did not all return the same rows")
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	return nil
}

func columnsString(columns []tablescan.Column) string {
	var fragments []string
	for _, column := range columns {
		fragments = append(fragments, fmt.Sprintf("%s (%s)", column.Name, column.Type))
	}
	return strings.Join(fragments, ", ")
}

// rowsPerSecond is the scan rate over the whole table
func rowsPerSecond(numRows int64, duration time.Duration) string {
	if duration <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f", float64(numRows)/duration.Seconds())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "NO"
}
