package tablescan

import (
	"fmt"

	"github.com/jamesrr39/goutil/humanise"
)

// TableInfo is diagnostic metadata about a table's footprint
type TableInfo struct {
	Name         string   `json:"name"`
	NumRows      int64    `json:"numRows"`
	RowSize      int64    `json:"rowSize"`
	SizeInMemory int64    `json:"sizeInMemory"`
	SizeOnDisk   int64    `json:"sizeOnDisk"`
	Columns      []Column `json:"columns"`
}

func NewTableInfo(name string, schema *Schema, numRows, sizeOnDisk int64) *TableInfo {
	return &TableInfo{
		Name:         name,
		NumRows:      numRows,
		RowSize:      schema.RowSize(),
		SizeInMemory: numRows * schema.RowSize(),
		SizeOnDisk:   sizeOnDisk,
		Columns:      schema.Columns(),
	}
}

func (ti *TableInfo) String() string {
	return fmt.Sprintf(
		"%s (%d rows). Size in memory: %s, size on disk: %s, row size: %s",
		ti.Name,
		ti.NumRows,
		humanise.HumaniseBytes(ti.SizeInMemory),
		humanise.HumaniseBytes(ti.SizeOnDisk),
		humanise.HumaniseBytes(ti.RowSize),
	)
}
