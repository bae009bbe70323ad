package sqldb

import (
	"context"
	"fmt"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jmoiron/sqlx"

	_ "github.com/marcboeker/go-duckdb"
)

func init() {
	tablescandal.RegisterOpener(tablescandal.StoreTypeDuckDB, func(logger *logpkg.Logger, connURL tablescandal.ConnURL) (tablescandal.TableHandle, errorsx.Error) {
		return NewDuckDBParquetTable(logger, gofs.NewOsFs(), connURL)
	})
}

// DuckDBParquetSource is a parquet file read through DuckDB's read_parquet
type DuckDBParquetSource struct {
	fs       gofs.Fs
	FilePath string
}

func NewDuckDBParquetSource(fs gofs.Fs, filePath string) *DuckDBParquetSource {
	return &DuckDBParquetSource{fs, filePath}
}

func (s *DuckDBParquetSource) FromClause() string {
	return fmt.Sprintf("read_parquet(%s)", quoteStringLiteral(s.FilePath))
}

func (s *DuckDBParquetSource) Columns(ctx context.Context, db *sqlx.DB) ([]SourceColumn, errorsx.Error) {
	// DESCRIBE returns more columns than needed (null, key, default, extra)
	type describeRow struct {
		ColumnName string `db:"column_name"`
		ColumnType string `db:"column_type"`
	}

	var describeRows []describeRow
	err := db.Unsafe().SelectContext(ctx, &describeRows, "DESCRIBE SELECT * FROM "+s.FromClause())
	if err != nil {
		return nil, tablescan.NewStorageUnavailableError(err, "filePath", s.FilePath)
	}

	var columns []SourceColumn
	for _, row := range describeRows {
		columns = append(columns, SourceColumn{Name: row.ColumnName, DatabaseType: row.ColumnType})
	}

	return columns, nil
}

func (s *DuckDBParquetSource) SizeOnDisk(ctx context.Context, db *sqlx.DB) (int64, errorsx.Error) {
	fileInfo, err := s.fs.Stat(s.FilePath)
	if err != nil {
		return 0, tablescan.NewStorageUnavailableError(err, "filePath", s.FilePath)
	}

	return fileInfo.Size(), nil
}

// NewDuckDBParquetTable opens an in-memory DuckDB database and reads the parquet file at the connection path through it
func NewDuckDBParquetTable(logger *logpkg.Logger, fs gofs.Fs, connURL tablescandal.ConnURL) (*SQLTable, errorsx.Error) {
	db, err := sqlx.Open("duckdb", "")
	if err != nil {
		return nil, tablescan.NewStorageUnavailableError(err, "connURL", connURL.String())
	}

	table, tableErr := newDuckDBParquetTable(context.Background(), logger, db, fs, connURL)
	if tableErr != nil {
		db.Close()
		return nil, tableErr
	}

	return table, nil
}

func newDuckDBParquetTable(ctx context.Context, logger *logpkg.Logger, db *sqlx.DB, fs gofs.Fs, connURL tablescandal.ConnURL) (*SQLTable, errorsx.Error) {
	err := loadParquetExtension(ctx, logger, db)
	if err != nil {
		return nil, errorsx.Wrap(err, "connURL", connURL.String())
	}

	return NewSQLTable(
		ctx,
		logger,
		db,
		tablescandal.TableNameFromConnString(connURL),
		NewDuckDBParquetSource(fs, connURL.ConnectionPath),
	)
}

// loadParquetExtension makes read_parquet available on db. The extension is only installed (downloaded) when it can't already be loaded.
func loadParquetExtension(ctx context.Context, logger *logpkg.Logger, db *sqlx.DB) errorsx.Error {
	_, err := db.ExecContext(ctx, "LOAD parquet")
	if err == nil {
		return nil
	}

	logger.Info("duckdb: parquet extension not loadable (%q), installing it", err)

	_, err = db.ExecContext(ctx, "INSTALL parquet")
	if err != nil {
		return tablescan.NewStorageUnavailableError(err, "statement", "INSTALL parquet")
	}

	_, err = db.ExecContext(ctx, "LOAD parquet")
	if err != nil {
		return tablescan.NewStorageUnavailableError(err, "statement", "LOAD parquet")
	}

	return nil
}
