package parquetdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/schema"
	"github.com/xitongsys/parquet-go/source"
)

// DefaultBatchSize is the number of rows read from each column at a time
const DefaultBatchSize = 1024

func init() {
	tablescandal.RegisterOpener(tablescandal.StoreTypeParquet, func(logger *logpkg.Logger, connURL tablescandal.ConnURL) (tablescandal.TableHandle, errorsx.Error) {
		return NewParquetTable(logger, gofs.NewOsFs(), connURL.ConnectionPath)
	})
}

var _ tablescandal.TableHandle = &ParquetTable{}

// ParquetTable is a table stored in a single parquet file.
// Flat INT32, INT64, FLOAT and DOUBLE columns are supported; other columns are left out of the schema.
type ParquetTable struct {
	logger     *logpkg.Logger
	name       string
	filePath   string
	schema     *tablescan.Schema
	inPaths    []string // parquet-go internal path of each schema column
	numRows    int64
	sizeOnDisk int64

	// BatchSize is the number of rows read from each column at a time
	BatchSize int64
}

func NewParquetTable(logger *logpkg.Logger, fs gofs.Fs, filePath string) (*ParquetTable, errorsx.Error) {
	fileInfo, err := fs.Stat(filePath)
	if err != nil {
		return nil, tablescan.NewStorageUnavailableError(err, "filePath", filePath)
	}

	pr, pFile, openErr := openColumnReader(filePath)
	if openErr != nil {
		return nil, openErr
	}
	defer closeColumnReader(pr, pFile)

	tableSchema, inPaths, skipped, schemaErr := schemaFromSchemaHandler(pr.SchemaHandler)
	if schemaErr != nil {
		return nil, errorsx.Wrap(schemaErr, "filePath", filePath)
	}

	if len(skipped) != 0 {
		logger.Warn("parquet table %q: columns of unsupported types are not readable: %v", filePath, skipped)
	}

	return &ParquetTable{
		logger:     logger,
		name:       tablescandal.TableNameFromConnString(tablescandal.ConnURL{Type: tablescandal.StoreTypeParquet, ConnectionPath: filePath}),
		filePath:   filePath,
		schema:     tableSchema,
		inPaths:    inPaths,
		numRows:    pr.GetNumRows(),
		sizeOnDisk: fileInfo.Size(),
		BatchSize:  DefaultBatchSize,
	}, nil
}

func openColumnReader(filePath string) (*reader.ParquetReader, source.ParquetFile, errorsx.Error) {
	pFile, err := local.NewLocalFileReader(filePath)
	if err != nil {
		return nil, nil, tablescan.NewStorageUnavailableError(err, "filePath", filePath)
	}

	pr, err := reader.NewParquetColumnReader(pFile, int64(runtime.NumCPU()))
	if err != nil {
		pFile.Close()
		return nil, nil, tablescan.NewStorageUnavailableError(err, "filePath", filePath)
	}

	return pr, pFile, nil
}

func closeColumnReader(pr *reader.ParquetReader, pFile source.ParquetFile) errorsx.Error {
	pr.ReadStop()
	err := pFile.Close()
	if err != nil {
		return errorsx.Wrap(err)
	}
	return nil
}

func schemaFromSchemaHandler(schemaHandler *schema.SchemaHandler) (*tablescan.Schema, []string, []string, errorsx.Error) {
	var columns []tablescan.Column
	var inPaths, skipped []string

	for i, schemaElement := range schemaHandler.SchemaElements {
		if i == 0 || schemaElement.GetNumChildren() != 0 {
			// root, or a group
			continue
		}

		inPath := schemaHandler.IndexMap[int32(i)]
		exName := schemaHandler.Infos[i].ExName

		columnType, ok := columnTypeFromSchemaElement(schemaElement)
		if !ok || len(common.StrToPath(inPath)) != 2 {
			skipped = append(skipped, fmt.Sprintf("%s (%s)", exName, schemaElement.GetType()))
			continue
		}

		columns = append(columns, tablescan.Column{Name: exName, Type: columnType})
		inPaths = append(inPaths, inPath)
	}

	tableSchema, err := tablescan.NewSchema(columns)
	if err != nil {
		return nil, nil, nil, err
	}

	return tableSchema, inPaths, skipped, nil
}

func columnTypeFromSchemaElement(schemaElement *parquet.SchemaElement) (tablescan.ColumnType, bool) {
	if schemaElement.GetRepetitionType() == parquet.FieldRepetitionType_REPEATED {
		return 0, false
	}

	switch schemaElement.GetType() {
	case parquet.Type_INT32:
		return tablescan.ColumnTypeInt32, true
	case parquet.Type_INT64:
		return tablescan.ColumnTypeInt64, true
	case parquet.Type_FLOAT:
		return tablescan.ColumnTypeFloat32, true
	case parquet.Type_DOUBLE:
		return tablescan.ColumnTypeFloat64, true
	default:
		return 0, false
	}
}

func (t *ParquetTable) Name() string {
	return t.name
}

func (t *ParquetTable) FilePath() string {
	return t.filePath
}

func (t *ParquetTable) Schema() *tablescan.Schema {
	return t.schema
}

func (t *ParquetTable) Info() (*tablescan.TableInfo, errorsx.Error) {
	return tablescan.NewTableInfo(t.name, t.schema, t.numRows, t.sizeOnDisk), nil
}

func (t *ParquetTable) Iterate(ctx context.Context) (tablescan.RowIterator, errorsx.Error) {
	return t.newRowIterator(ctx, nil, nil)
}

// Evaluate scans the row groups whose column statistics don't rule the filter out,
// reading only the columns the filter and the projection need.
func (t *ParquetTable) Evaluate(ctx context.Context, where predicate.Filter, opts tablescandal.EvaluateOptions) (tablescan.RowIterator, errorsx.Error) {
	it, err := t.newRowIterator(ctx, where, opts.Select)
	if err != nil {
		return nil, err
	}

	if !opts.Materialize {
		return it, nil
	}

	rows, err := tablescan.CollectRows(it)
	if err != nil {
		return nil, err
	}

	return tablescan.NewSliceIterator(rows), nil
}

// Close is a no-op: readers are opened per scan, and closed with their iterator
func (t *ParquetTable) Close() errorsx.Error {
	return nil
}
