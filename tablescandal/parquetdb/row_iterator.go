package parquetdb

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
)

// rowIterator reads a parquet file column by column, BatchSize rows at a time.
// Only one batch of column values is held in memory, and a row is only built for rows that match the filter.
type rowIterator struct {
	ctx   context.Context
	pr    *reader.ParquetReader
	pFile source.ParquetFile

	tableSchema *tablescan.Schema
	readPaths   map[int]string // schema column index -> parquet-go path, of the columns read
	match       predicate.MatchFunc

	projected      *tablescan.Schema
	projectIndexes []int

	batchSize     int64
	rowsRemaining int64
	batch         map[int][]interface{}
	batchLen      int
	batchPos      int
	scratch       []interface{}

	row    tablescan.Row
	err    errorsx.Error
	closed bool
}

// newRowIterator opens a new reader on the file. A nil filter matches every row, and an empty selectCols selects all columns.
func (t *ParquetTable) newRowIterator(ctx context.Context, where predicate.Filter, selectCols []string) (*rowIterator, errorsx.Error) {
	projected, projectIndexes, err := tablescandal.ResolveSelect(t.schema, selectCols)
	if err != nil {
		return nil, err
	}

	match, err := predicate.Compile(where, t.schema)
	if err != nil {
		return nil, err
	}

	// column pruning: read only the columns needed by the filter and the projection
	readPaths := make(map[int]string)
	for _, idx := range projectIndexes {
		readPaths[idx] = t.inPaths[idx]
	}
	for _, columnName := range predicate.ColumnNames(where) {
		idx, err := t.schema.ColumnIndex(columnName)
		if err != nil {
			return nil, err
		}
		readPaths[idx] = t.inPaths[idx]
	}

	pr, pFile, err := openColumnReader(t.filePath)
	if err != nil {
		return nil, err
	}

	it := &rowIterator{
		ctx:            ctx,
		pr:             pr,
		pFile:          pFile,
		tableSchema:    t.schema,
		readPaths:      readPaths,
		match:          match,
		projected:      projected,
		projectIndexes: projectIndexes,
		batchSize:      t.BatchSize,
		batch:          make(map[int][]interface{}),
		scratch:        make([]interface{}, t.schema.NumColumns()),
	}

	if it.batchSize <= 0 {
		it.batchSize = DefaultBatchSize
	}

	if where != nil {
		err = t.pruneRowGroups(pr, where)
		if err != nil {
			it.Close()
			return nil, err
		}
	}

	for _, rowGroup := range pr.Footer.GetRowGroups() {
		it.rowsRemaining += rowGroup.GetNumRows()
	}

	return it, nil
}

// pruneRowGroups removes the row groups that the column statistics show can't contain a matching row
// from the reader's footer, so that they are never read.
func (t *ParquetTable) pruneRowGroups(pr *reader.ParquetReader, where predicate.Filter) errorsx.Error {
	columnNamesByInPath := make(map[string]string)
	for idx, inPath := range t.inPaths {
		columnNamesByInPath[common.PathToStr(common.StrToPath(inPath)[1:])] = t.schema.Column(idx).Name
	}

	rowGroups := pr.Footer.GetRowGroups()
	var keptRowGroups []*parquet.RowGroup
	var rowsSkipped int64
	for i, rowGroup := range rowGroups {
		scanResult, err := where.ShouldRowGroupBeScanned(newRowGroupStatistics(rowGroup, columnNamesByInPath))
		if err != nil {
			return errorsx.Wrap(err, "rowGroup", i)
		}

		if !scanResult.ShouldScan() {
			rowsSkipped += rowGroup.GetNumRows()
			continue
		}

		keptRowGroups = append(keptRowGroups, rowGroup)
	}

	t.logger.Debug(
		"%s: scanning %d of %d row groups for %s (%d rows skipped)",
		t.name, len(keptRowGroups), len(rowGroups), where, rowsSkipped,
	)

	pr.Footer.RowGroups = keptRowGroups
	return nil
}

func (it *rowIterator) Next() bool {
	for {
		if it.closed || it.err != nil {
			return false
		}

		if it.batchPos >= it.batchLen {
			if it.rowsRemaining <= 0 {
				return false
			}

			ctxErr := it.ctx.Err()
			if ctxErr != nil {
				it.err = errorsx.Wrap(ctxErr)
				return false
			}

			it.err = it.readBatch()
			if it.err != nil {
				return false
			}
		}

		rowIdx := it.batchPos
		it.batchPos++

		for colIdx, values := range it.batch {
			it.scratch[colIdx] = values[rowIdx]
		}

		if !it.match(tablescan.RowFromValues(it.tableSchema, it.scratch)) {
			continue
		}

		values := make([]interface{}, len(it.projectIndexes))
		for i, colIdx := range it.projectIndexes {
			values[i] = it.scratch[colIdx]
		}
		it.row = tablescan.RowFromValues(it.projected, values)
		return true
	}
}

func (it *rowIterator) readBatch() errorsx.Error {
	numRows := it.batchSize
	if it.rowsRemaining < numRows {
		numRows = it.rowsRemaining
	}

	for colIdx, path := range it.readPaths {
		values, _, _, err := it.pr.ReadColumnByPath(path, numRows)
		if err != nil {
			return errorsx.Wrap(err, "column", it.tableSchema.Column(colIdx).Name)
		}

		if int64(len(values)) != numRows {
			return errorsx.Errorf(
				"short read of column %q: expected %d values but got %d",
				it.tableSchema.Column(colIdx).Name, numRows, len(values),
			)
		}

		it.batch[colIdx] = values
	}

	it.rowsRemaining -= numRows
	it.batchLen = int(numRows)
	it.batchPos = 0
	return nil
}

func (it *rowIterator) Row() tablescan.Row {
	return it.row
}

func (it *rowIterator) Err() errorsx.Error {
	return it.err
}

func (it *rowIterator) Close() errorsx.Error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.batch = nil

	return closeColumnReader(it.pr, it.pFile)
}
