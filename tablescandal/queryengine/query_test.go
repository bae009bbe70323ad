package queryengine

import (
	"bytes"
	"context"
	"math/rand"
	"runtime"
	"testing"

	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jamesrr39/tablescan/tablescandal/tablemocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vitalsExpression = "(60<heart_rate)&(heart_rate<70)&(40<hematocrit)&(hematocrit<60)"

var vitalsSchema = tablescan.MustNewSchema(
	tablescan.Column{Name: "patient_id", Type: tablescan.ColumnTypeInt64},
	tablescan.Column{Name: "heart_rate", Type: tablescan.ColumnTypeFloat64},
	tablescan.Column{Name: "hematocrit", Type: tablescan.ColumnTypeFloat64},
)

func vitalsRow(patientID int64, heartRate, hematocrit float64) tablescan.Row {
	return tablescan.MustNewRow(vitalsSchema, patientID, heartRate, hematocrit)
}

// randomVitalsTable is a deterministic table of n rows with values spread around the vitals ranges
func randomVitalsTable(n int64) *tablemocks.MemTable {
	rnd := rand.New(rand.NewSource(42))
	var rows []tablescan.Row
	for i := int64(0); i < n; i++ {
		rows = append(rows, vitalsRow(i, 40+rnd.Float64()*60, 30+rnd.Float64()*40))
	}
	return tablemocks.NewMemTableFromRows("random_vitals", vitalsSchema, rows...)
}

func TestQuery_Run(t *testing.T) {
	table := tablemocks.NewMemTableFromRows(
		"control",
		vitalsSchema,
		vitalsRow(1, 65, 50),
		vitalsRow(2, 75, 50),
		vitalsRow(3, 62, 45),
	)

	query := &Query{
		Select: []string{"heart_rate"},
		Where:  predicate.MustParse(vitalsExpression),
	}

	for _, strategy := range AllStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			results, err := query.Run(context.Background(), table, strategy)
			require.NoError(t, err, errorsx.ErrWithStack(err))

			values, err := results.Values("heart_rate")
			require.NoError(t, err, errorsx.ErrWithStack(err))

			assert.Equal(t, []interface{}{float64(65), float64(62)}, values)
		})
	}
}

func TestQuery_Run_emptyTable(t *testing.T) {
	table := tablemocks.NewMemTableFromRows("empty", vitalsSchema)

	for _, strategy := range AllStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			query := &Query{Where: predicate.MustParse(vitalsExpression)}
			results, err := query.Run(context.Background(), table, strategy)
			require.NoError(t, err)

			rows, err := results.Collect()
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestQuery_Run_unknownColumn(t *testing.T) {
	scanStarted := false
	table := randomVitalsTable(10)
	table.OnIterate = func() { scanStarted = true }
	table.OnEvaluate = func(where predicate.Filter, opts tablescandal.EvaluateOptions) { scanStarted = true }

	queries := map[string]*Query{
		"in where clause":  {Where: predicate.MustParse("(60 < foo) & (heart_rate < 70)")},
		"in select clause": {Select: []string{"foo"}},
	}

	for name, query := range queries {
		for _, strategy := range AllStrategies {
			t.Run(name+" "+string(strategy), func(t *testing.T) {
				_, err := query.Run(context.Background(), table, strategy)
				assert.True(t, tablescan.IsErr(err, tablescan.ErrUnknownColumn))
				assert.False(t, scanStarted)
			})
		}
	}
}

func TestQuery_chainedComparisonRejected(t *testing.T) {
	_, err := predicate.Parse("60 < heart_rate < 70")
	assert.True(t, tablescan.IsErr(err, tablescan.ErrInvalidPredicate))

	filter, err := predicate.Parse("(60 < heart_rate) & (heart_rate < 70)")
	require.NoError(t, err)

	query := &Query{Where: filter}
	count, err := mustRun(t, query, randomVitalsTable(100), StrategyWhere).Count()
	require.NoError(t, err)
	assert.NotZero(t, count)
}

func mustRun(t *testing.T, query *Query, handle tablescandal.TableHandle, strategy Strategy) *ResultIterator {
	results, err := query.Run(context.Background(), handle, strategy)
	require.NoError(t, err, errorsx.ErrWithStack(err))
	return results
}

func TestQuery_Run_matchesNaiveFilter(t *testing.T) {
	table := randomVitalsTable(5000)

	// read everything, then filter with plain Go
	allRows, err := mustRun(t, &Query{}, table, StrategyIterate).Collect()
	require.NoError(t, err)
	require.Len(t, allRows, 5000)

	var expected []ResultRow
	for _, row := range allRows {
		heartRate, hematocrit := row[1].(float64), row[2].(float64)
		if 60 < heartRate && heartRate < 70 && 40 < hematocrit && hematocrit < 60 {
			expected = append(expected, row)
		}
	}
	require.NotEmpty(t, expected)

	query := &Query{Where: predicate.MustParse(vitalsExpression)}
	for _, strategy := range AllStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			results, err := mustRun(t, query, table, strategy).Collect()
			require.NoError(t, err)
			assert.ElementsMatch(t, expected, results)
		})
	}

	t.Run("client-side with a hand-written match func", func(t *testing.T) {
		match := func(row tablescan.Row) bool {
			heartRate, hematocrit := row.Float64(1), row.Float64(2)
			return 60 < heartRate && heartRate < 70 && 40 < hematocrit && hematocrit < 60
		}

		results, err := ScanClientSide(context.Background(), table, match, nil)
		require.NoError(t, err)

		rows, err := results.Collect()
		require.NoError(t, err)
		assert.Equal(t, expected, rows)
	})

	t.Run("in memory", func(t *testing.T) {
		match, err := predicate.Compile(query.Where, table.Schema())
		require.NoError(t, err)

		results, err := ScanInMemory(context.Background(), table, match, nil)
		require.NoError(t, err)

		rows, err := results.Collect()
		require.NoError(t, err)
		assert.Equal(t, expected, rows)
	})
}

func TestQuery_Run_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	results, err := (&Query{}).Run(ctx, randomVitalsTable(10), StrategyWhere)
	require.NoError(t, err)

	require.True(t, results.Next())
	cancel()
	assert.False(t, results.Next())
	assert.Equal(t, context.Canceled, errorsx.Cause(results.Err()))
	assert.NoError(t, results.Close())
}

func TestQuery_Run_spanLastsUntilClose(t *testing.T) {
	tracer := tracing.NewTracer(bytes.NewBuffer(nil))
	trace := tracing.StartTrace(tracer, "test")
	ctx := context.WithValue(context.Background(), tracing.TraceCtxKey, trace)
	ctx = context.WithValue(ctx, tracing.TracerCtxKey, tracer)

	for _, strategy := range AllStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			trace.Spans = nil

			results, err := (&Query{Where: predicate.MustParse("heart_rate > 50")}).Run(ctx, randomVitalsTable(100), strategy)
			require.NoError(t, err, errorsx.ErrWithStack(err))
			assert.Empty(t, trace.Spans)

			count, err := results.Count()
			require.NoError(t, err)
			assert.NotZero(t, count)

			require.Len(t, trace.Spans, 1)
			assert.Contains(t, trace.Spans[0].Name, string(strategy))

			// closing again doesn't end the span twice
			assert.NoError(t, results.Close())
			assert.Len(t, trace.Spans, 1)
		})
	}

	t.Run("invalid query", func(t *testing.T) {
		trace.Spans = nil

		_, err := (&Query{Select: []string{"foo"}}).Run(ctx, randomVitalsTable(10), StrategyWhere)
		require.Error(t, err)
		assert.Len(t, trace.Spans, 1)
	})
}

func TestScanClientSide_boundedMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("scans a large table")
	}

	const (
		numRows         = 2 * 1000 * 1000
		checkpointEvery = 250 * 1000
		maxHeapGrowth   = 16 * 1024 * 1024
	)

	// rows are generated on demand, the table itself takes no memory
	table := &tablemocks.MemTable{
		TableName:   "generated",
		TableSchema: vitalsSchema,
		NumRows:     numRows,
		RowFunc: func(rowIdx int64) tablescan.Row {
			return vitalsRow(rowIdx, float64(rowIdx%100), float64(rowIdx%50))
		},
	}

	var memStats runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&memStats)
	baseline := memStats.HeapAlloc

	var peak uint64
	var rowsSeen int64
	match := func(row tablescan.Row) bool {
		rowsSeen++
		if rowsSeen%checkpointEvery == 0 {
			runtime.GC()
			runtime.ReadMemStats(&memStats)
			if memStats.HeapAlloc > peak {
				peak = memStats.HeapAlloc
			}
		}
		return row.Float64(1) > 98
	}

	results, err := ScanClientSide(context.Background(), table, match, []string{"patient_id"})
	require.NoError(t, err)

	count, err := results.Count()
	require.NoError(t, err)

	assert.Equal(t, int64(numRows), rowsSeen)
	assert.Equal(t, int64(numRows/100), count)

	var growth uint64
	if peak > baseline {
		growth = peak - baseline
	}
	assert.Less(t, growth, uint64(maxHeapGrowth), "heap grew by %d bytes while scanning %d rows", growth, numRows)
}

func TestParseStrategy(t *testing.T) {
	strategy, err := ParseStrategy("read_where")
	require.NoError(t, err)
	assert.Equal(t, StrategyReadWhere, strategy)

	_, err = ParseStrategy("read_all")
	require.Error(t, err)
}

func TestQuery_String(t *testing.T) {
	query := &Query{
		Select: []string{"patient_id", "heart_rate"},
		Where:  predicate.MustParse("(heart_rate < 70) & (hematocrit > 40)"),
	}
	assert.Equal(t, "SELECT patient_id, heart_rate WHERE ((heart_rate < 70) & (hematocrit > 40))", query.String())
	assert.Equal(t, "SELECT *", (&Query{}).String())
}

func TestResultRow_GoString(t *testing.T) {
	row := ResultRow{int64(3), float64(62.5)}
	assert.Equal(t, "{3, 62.5}", row.GoString())
}
