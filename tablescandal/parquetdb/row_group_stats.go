package parquetdb

import (
	"bytes"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/encoding"
	"github.com/xitongsys/parquet-go/parquet"
)

var _ predicate.RowGroupStatistics = &rowGroupStatistics{}

// rowGroupStatistics reads column min/max values from a row group's column chunk metadata
type rowGroupStatistics struct {
	chunksByColumnName map[string]*parquet.ColumnChunk
}

// newRowGroupStatistics indexes the row group's column chunks by column name.
// columnNamesByInPath maps parquet-go internal paths (without the root) to column names.
func newRowGroupStatistics(rowGroup *parquet.RowGroup, columnNamesByInPath map[string]string) *rowGroupStatistics {
	chunksByColumnName := make(map[string]*parquet.ColumnChunk)
	for _, column := range rowGroup.GetColumns() {
		if column.GetMetaData() == nil {
			continue
		}

		columnName, ok := columnNamesByInPath[common.PathToStr(column.MetaData.PathInSchema)]
		if !ok {
			continue
		}
		chunksByColumnName[columnName] = column
	}

	return &rowGroupStatistics{chunksByColumnName}
}

func (s *rowGroupStatistics) ColumnMinMax(columnName string) (predicate.Operand, predicate.Operand, bool, errorsx.Error) {
	column, ok := s.chunksByColumnName[columnName]
	if !ok {
		return nil, nil, false, nil
	}

	statistics := column.MetaData.GetStatistics()
	if statistics == nil {
		return nil, nil, false, nil
	}

	minBytes, maxBytes := statistics.MinValue, statistics.MaxValue
	if len(minBytes) == 0 || len(maxBytes) == 0 {
		// files from older writers only set the deprecated fields
		minBytes, maxBytes = statistics.Min, statistics.Max
	}
	if len(minBytes) == 0 || len(maxBytes) == 0 {
		return nil, nil, false, nil
	}

	minVal, err := bytesToOperand(minBytes, column.MetaData.Type)
	if err != nil {
		return nil, nil, false, errorsx.Wrap(err, "column", columnName)
	}

	maxVal, err := bytesToOperand(maxBytes, column.MetaData.Type)
	if err != nil {
		return nil, nil, false, errorsx.Wrap(err, "column", columnName)
	}

	return minVal, maxVal, true, nil
}

func bytesToOperand(val []byte, valueType parquet.Type) (predicate.Operand, errorsx.Error) {
	items := make([]interface{}, 1)

	switch valueType {
	case parquet.Type_INT32:
		err := encoding.BinaryReadINT32(bytes.NewBuffer(val), items)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		return predicate.Int64Operand(items[0].(int32)), nil
	case parquet.Type_INT64:
		err := encoding.BinaryReadINT64(bytes.NewBuffer(val), items)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		return predicate.Int64Operand(items[0].(int64)), nil
	case parquet.Type_FLOAT:
		err := encoding.BinaryReadFLOAT32(bytes.NewBuffer(val), items)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		return predicate.Float64Operand(items[0].(float32)), nil
	case parquet.Type_DOUBLE:
		err := encoding.BinaryReadFLOAT64(bytes.NewBuffer(val), items)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		return predicate.Float64Operand(items[0].(float64)), nil
	default:
		return nil, errorsx.Errorf("unhandled type: %q", valueType)
	}
}
