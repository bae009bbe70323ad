package sqldb

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func expectVitalsColumns(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("public", "vitals").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("patient_id", "bigint").
			AddRow("day", "integer").
			AddRow("heart_rate", "double precision").
			AddRow("hematocrit", "real").
			AddRow("note", "text"))
}

func newMockVitalsTable(t *testing.T) (*SQLTable, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	expectVitalsColumns(mock)

	table, err := NewSQLTable(
		context.Background(),
		logpkg.NewLogger(io.Discard, logpkg.LogLevelError),
		db,
		"vitals",
		NewPostgresqlTableSource("vitals"),
	)
	require.NoError(t, err, errorsx.ErrWithStack(err))

	return table, mock
}

func TestNewSQLTable(t *testing.T) {
	table, mock := newMockVitalsTable(t)

	assert.Equal(t, "vitals", table.Name())
	assert.Equal(t, []tablescan.Column{
		{Name: "patient_id", Type: tablescan.ColumnTypeInt64},
		{Name: "day", Type: tablescan.ColumnTypeInt32},
		{Name: "heart_rate", Type: tablescan.ColumnTypeFloat64},
		{Name: "hematocrit", Type: tablescan.ColumnTypeFloat32},
	}, table.Schema().Columns())

	mock.ExpectClose()
	require.NoError(t, table.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLTable_tableNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("analytics", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}))

	_, err := NewSQLTable(
		context.Background(),
		logpkg.NewLogger(io.Discard, logpkg.LogLevelError),
		db,
		"analytics.missing",
		NewPostgresqlTableSource("analytics.missing"),
	)
	assert.True(t, tablescan.IsErr(err, tablescan.ErrStorageUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTable_Info(t *testing.T) {
	table, mock := newMockVitalsTable(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "public"."vitals"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT pg_total_relation_size($1::regclass)`)).
		WithArgs(`"public"."vitals"`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_total_relation_size"}).AddRow(int64(8192)))

	info, err := table.Info()
	require.NoError(t, err, errorsx.ErrWithStack(err))

	assert.Equal(t, int64(3), info.NumRows)
	assert.Equal(t, int64(8192), info.SizeOnDisk)
	assert.Equal(t, int64(8+4+8+4), info.RowSize)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTable_Evaluate(t *testing.T) {
	t.Run("filter is rendered to SQL", func(t *testing.T) {
		table, mock := newMockVitalsTable(t)

		mock.ExpectQuery(regexp.QuoteMeta(
			`SELECT "patient_id", "hematocrit" FROM "public"."vitals" WHERE ("heart_rate" > $1 AND "heart_rate" < $2)`,
		)).
			WithArgs(int64(60), int64(70)).
			WillReturnRows(sqlmock.NewRows([]string{"patient_id", "hematocrit"}).
				AddRow(int64(1), float64(50)).
				AddRow(int64(3), nil))

		it, err := table.Evaluate(
			context.Background(),
			predicate.MustParse("(60 < heart_rate) & (heart_rate < 70)"),
			tablescandal.EvaluateOptions{Select: []string{"patient_id", "hematocrit"}},
		)
		require.NoError(t, err, errorsx.ErrWithStack(err))

		rows, err := tablescan.CollectRows(it)
		require.NoError(t, err, errorsx.ErrWithStack(err))
		require.Len(t, rows, 2)

		assert.Equal(t, []interface{}{int64(1), float32(50)}, rows[0].Values())
		assert.Equal(t, []interface{}{int64(3), nil}, rows[1].Values())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("iterate selects every column", func(t *testing.T) {
		table, mock := newMockVitalsTable(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT "patient_id", "day", "heart_rate", "hematocrit" FROM "public"."vitals"`)).
			WithoutArgs().
			WillReturnRows(sqlmock.NewRows([]string{"patient_id", "day", "heart_rate", "hematocrit"}).
				AddRow(int64(1), int64(4), float64(65), float64(50)))

		it, err := table.Iterate(context.Background())
		require.NoError(t, err)

		rows, err := tablescan.CollectRows(it)
		require.NoError(t, err, errorsx.ErrWithStack(err))
		require.Len(t, rows, 1)
		assert.Equal(t, []interface{}{int64(1), int32(4), float64(65), float32(50)}, rows[0].Values())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rows keep the order the database returns", func(t *testing.T) {
		table, mock := newMockVitalsTable(t)

		// no ORDER BY is added
		mock.ExpectQuery("^" + regexp.QuoteMeta(`SELECT "patient_id" FROM "public"."vitals"`) + "$").
			WillReturnRows(sqlmock.NewRows([]string{"patient_id"}).AddRow(int64(3)).AddRow(int64(1)).AddRow(int64(2)))

		it, err := table.Evaluate(context.Background(), nil, tablescandal.EvaluateOptions{Select: []string{"patient_id"}})
		require.NoError(t, err, errorsx.ErrWithStack(err))

		rows, err := tablescan.CollectRows(it)
		require.NoError(t, err, errorsx.ErrWithStack(err))
		require.Len(t, rows, 3)
		assert.Equal(t, []int64{3, 1, 2}, []int64{rows[0].Int64(0), rows[1].Int64(0), rows[2].Int64(0)})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("materialize", func(t *testing.T) {
		table, mock := newMockVitalsTable(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT "day" FROM "public"."vitals" WHERE "day" <> $1`)).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"day"}).AddRow(int64(1)).AddRow(int64(2)))

		it, err := table.Evaluate(
			context.Background(),
			predicate.MustParse("day != 3"),
			tablescandal.EvaluateOptions{Select: []string{"day"}, Materialize: true},
		)
		require.NoError(t, err, errorsx.ErrWithStack(err))
		// the query has run and its rows are closed before any row is read
		assert.NoError(t, mock.ExpectationsWereMet())

		require.IsType(t, &tablescan.SliceIterator{}, it)
		assert.Equal(t, 2, it.(*tablescan.SliceIterator).Len())
	})

	t.Run("unknown column is rejected before querying", func(t *testing.T) {
		table, mock := newMockVitalsTable(t)

		_, err := table.Evaluate(context.Background(), predicate.MustParse("foo > 1"), tablescandal.EvaluateOptions{})
		assert.True(t, tablescan.IsErr(err, tablescan.ErrUnknownColumn))

		_, err = table.Evaluate(context.Background(), nil, tablescandal.EvaluateOptions{Select: []string{"note"}})
		assert.True(t, tablescan.IsErr(err, tablescan.ErrUnknownColumn))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		table, mock := newMockVitalsTable(t)

		mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

		_, err := table.Iterate(context.Background())
		assert.True(t, tablescan.IsErr(err, tablescan.ErrStorageUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error while reading rows", func(t *testing.T) {
		table, mock := newMockVitalsTable(t)

		mock.ExpectQuery("SELECT").
			WillReturnRows(sqlmock.NewRows([]string{"day"}).
				AddRow(int64(1)).
				AddRow(int64(2)).
				RowError(1, errors.New("connection reset")))

		it, err := table.Evaluate(context.Background(), nil, tablescandal.EvaluateOptions{Select: []string{"day"}})
		require.NoError(t, err)

		_, err = tablescan.CollectRows(it)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestColumnTypeFromDatabaseType(t *testing.T) {
	tests := []struct {
		databaseType string
		want         tablescan.ColumnType
		wantOK       bool
	}{
		{"INTEGER", tablescan.ColumnTypeInt32, true},
		{"integer", tablescan.ColumnTypeInt32, true},
		{"BIGINT", tablescan.ColumnTypeInt64, true},
		{"FLOAT", tablescan.ColumnTypeFloat32, true},
		{"real", tablescan.ColumnTypeFloat32, true},
		{"DOUBLE", tablescan.ColumnTypeFloat64, true},
		{"double precision", tablescan.ColumnTypeFloat64, true},
		{"VARCHAR", 0, false},
		{"timestamp without time zone", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.databaseType, func(t *testing.T) {
			got, ok := columnTypeFromDatabaseType(tt.databaseType)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
