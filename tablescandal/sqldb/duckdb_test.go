package sqldb

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jamesrr39/tablescan/tablescandal/parquetdb/pqetestutil"
	"github.com/jamesrr39/tablescan/tablescandal/queryengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDBParquetSource_FromClause(t *testing.T) {
	source := NewDuckDBParquetSource(gofs.NewOsFs(), "/data/patients' vitals.parquet")
	assert.Equal(t, `read_parquet('/data/patients'' vitals.parquet')`, source.FromClause())
}

func TestDuckDBParquetSource_Columns(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`DESCRIBE SELECT * FROM read_parquet('/data/vitals.parquet')`)).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type", "null", "key", "default", "extra"}).
			AddRow("patient_id", "BIGINT", "YES", nil, nil, nil).
			AddRow("hematocrit", "FLOAT", "YES", nil, nil, nil).
			AddRow("note", "VARCHAR", "YES", nil, nil, nil))

	columns, err := NewDuckDBParquetSource(gofs.NewOsFs(), "/data/vitals.parquet").Columns(context.Background(), db)
	require.NoError(t, err, errorsx.ErrWithStack(err))

	assert.Equal(t, []SourceColumn{
		{Name: "patient_id", DatabaseType: "BIGINT"},
		{Name: "hematocrit", DatabaseType: "FLOAT"},
		{Name: "note", DatabaseType: "VARCHAR"},
	}, columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDuckDBParquetTable_loadsParquetExtension(t *testing.T) {
	logger := logpkg.NewLogger(io.Discard, logpkg.LogLevelError)
	connURL := tablescandal.ConnURL{Type: tablescandal.StoreTypeDuckDB, ConnectionPath: "/data/vitals.parquet"}
	describeQuery := regexp.QuoteMeta(`DESCRIBE SELECT * FROM read_parquet('/data/vitals.parquet')`)
	describeRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"column_name", "column_type"}).
			AddRow("patient_id", "BIGINT").
			AddRow("heart_rate", "DOUBLE")
	}

	t.Run("already installed", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("LOAD parquet").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(describeQuery).WillReturnRows(describeRows())

		table, err := newDuckDBParquetTable(context.Background(), logger, db, gofs.NewOsFs(), connURL)
		require.NoError(t, err, errorsx.ErrWithStack(err))

		assert.Equal(t, "vitals", table.Name())
		assert.Equal(t, []string{"patient_id", "heart_rate"}, table.Schema().ColumnNames())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("installed on first use", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("LOAD parquet").WillReturnError(errors.New("extension not found"))
		mock.ExpectExec("INSTALL parquet").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("LOAD parquet").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(describeQuery).WillReturnRows(describeRows())

		_, err := newDuckDBParquetTable(context.Background(), logger, db, gofs.NewOsFs(), connURL)
		require.NoError(t, err, errorsx.ErrWithStack(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("install fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("LOAD parquet").WillReturnError(errors.New("extension not found"))
		mock.ExpectExec("INSTALL parquet").WillReturnError(errors.New("no network"))

		_, err := newDuckDBParquetTable(context.Background(), logger, db, gofs.NewOsFs(), connURL)
		require.Error(t, err)
		assert.True(t, tablescan.IsErr(err, tablescan.ErrStorageUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDuckDBParquetTable(t *testing.T) {
	filePath := pqetestutil.TempVitalsFile(t, 2, []pqetestutil.VitalsRecord{
		{PatientID: 1, HeartRate: 65, Hematocrit: 50, SystolicBP: pqetestutil.Float64Ptr(120)},
		{PatientID: 2, HeartRate: 75, Hematocrit: 50},
		{PatientID: 3, HeartRate: 62, Hematocrit: 45},
	}...)

	handle, err := tablescandal.Open(logpkg.NewLogger(io.Discard, logpkg.LogLevelError), "duckdb://"+filePath)
	require.NoError(t, err, errorsx.ErrWithStack(err))
	defer handle.Close()

	assert.Equal(t, []string{"patient_id", "day", "heart_rate", "hematocrit", "systolic_bp"}, handle.Schema().ColumnNames())

	info, err := handle.Info()
	require.NoError(t, err, errorsx.ErrWithStack(err))
	assert.Equal(t, int64(3), info.NumRows)

	query := &queryengine.Query{
		Select: []string{"patient_id"},
		Where:  predicate.MustParse("(60<heart_rate)&(heart_rate<70)&(40<hematocrit)&(hematocrit<60)"),
	}
	for _, strategy := range queryengine.AllStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			results, err := query.Run(context.Background(), handle, strategy)
			require.NoError(t, err, errorsx.ErrWithStack(err))

			values, err := results.Values("patient_id")
			require.NoError(t, err)
			assert.ElementsMatch(t, []interface{}{int64(1), int64(3)}, values)
		})
	}

	allIt, err := handle.Iterate(context.Background())
	require.NoError(t, err)
	allRows, err := tablescan.CollectRows(allIt)
	require.NoError(t, err)
	var patientIDs []int64
	for _, row := range allRows {
		patientIDs = append(patientIDs, row.Int64(0))
	}
	// file order
	assert.Equal(t, []int64{1, 2, 3}, patientIDs)

	it, err := handle.Evaluate(context.Background(), predicate.MustParse("systolic_bp > 0"), tablescandal.EvaluateOptions{})
	require.NoError(t, err)
	rows, err := tablescan.CollectRows(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Int64(0))
}
