// Package vitalsgen writes synthetic patient vitals tables, used to try out the scan strategies on tables too large for memory.
package vitalsgen

import (
	"io"
	"math"
	"math/rand"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/segmentio/parquet-go"
)

const (
	DefaultRowsPerRowGroup = 64 * 1024
	DefaultDaysPerPatient  = 30
	DefaultNullFraction    = 0.05

	writeBatchSize = 1024
)

// VitalsRow is one day of measurements for one patient. A missing systolic blood pressure reading is null.
type VitalsRow struct {
	PatientID  int64    `parquet:"patient_id"`
	Day        int32    `parquet:"day"`
	HeartRate  float64  `parquet:"heart_rate"`
	Hematocrit float32  `parquet:"hematocrit"`
	SystolicBP *float64 `parquet:"systolic_bp,optional"`
}

type Options struct {
	NumRows         int64
	Seed            int64
	RowsPerRowGroup int64
	DaysPerPatient  int32
	// NullFraction is the probability of a row having no systolic blood pressure reading
	NullFraction float64
}

func DefaultOptions(numRows int64) Options {
	return Options{
		NumRows:         numRows,
		Seed:            1,
		RowsPerRowGroup: DefaultRowsPerRowGroup,
		DaysPerPatient:  DefaultDaysPerPatient,
		NullFraction:    DefaultNullFraction,
	}
}

func (o Options) validate() errorsx.Error {
	if o.NumRows < 0 {
		return errorsx.Errorf("number of rows must not be negative, but was %d", o.NumRows)
	}
	if o.RowsPerRowGroup <= 0 {
		return errorsx.Errorf("rows per row group must be positive, but was %d", o.RowsPerRowGroup)
	}
	if o.DaysPerPatient <= 0 {
		return errorsx.Errorf("days per patient must be positive, but was %d", o.DaysPerPatient)
	}
	if o.NullFraction < 0 || o.NullFraction > 1 {
		return errorsx.Errorf("null fraction must be between 0 and 1, but was %v", o.NullFraction)
	}
	return nil
}

// Generator produces rows sorted by patient then day. The same options always produce the same rows.
type Generator struct {
	opts    Options
	rnd     *rand.Rand
	nextRow int64
}

func NewGenerator(opts Options) (*Generator, errorsx.Error) {
	err := opts.validate()
	if err != nil {
		return nil, err
	}

	return &Generator{
		opts: opts,
		rnd:  rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// Next fills rows with the next rows of the table and returns how many were filled; 0 once all rows have been generated
func (g *Generator) Next(rows []VitalsRow) int {
	n := 0
	for ; n < len(rows) && g.nextRow < g.opts.NumRows; n++ {
		rows[n] = g.row(g.nextRow)
		g.nextRow++
	}
	return n
}

func (g *Generator) row(idx int64) VitalsRow {
	daysPerPatient := int64(g.opts.DaysPerPatient)

	row := VitalsRow{
		PatientID:  idx / daysPerPatient,
		Day:        int32(idx % daysPerPatient),
		HeartRate:  roundTo(clamp(g.rnd.NormFloat64()*12+75, 30, 200), 1),
		Hematocrit: float32(roundTo(clamp(g.rnd.NormFloat64()*5+42, 15, 65), 1)),
	}

	systolicBP := roundTo(clamp(g.rnd.NormFloat64()*15+120, 70, 220), 0)
	if g.rnd.Float64() >= g.opts.NullFraction {
		row.SystolicBP = &systolicBP
	}

	return row
}

func clamp(val, min, max float64) float64 {
	return math.Max(min, math.Min(max, val))
}

func roundTo(val float64, decimalPlaces int) float64 {
	factor := math.Pow(10, float64(decimalPlaces))
	return math.Round(val*factor) / factor
}

// Write writes the whole table as parquet, snappy compressed and with a row group every RowsPerRowGroup rows
func Write(w io.Writer, opts Options) errorsx.Error {
	generator, err := NewGenerator(opts)
	if err != nil {
		return err
	}

	writer := parquet.NewGenericWriter[VitalsRow](
		w,
		parquet.Compression(&parquet.Snappy),
		parquet.MaxRowsPerRowGroup(opts.RowsPerRowGroup),
	)

	batch := make([]VitalsRow, writeBatchSize)
	for {
		n := generator.Next(batch)
		if n == 0 {
			break
		}

		_, writeErr := writer.Write(batch[:n])
		if writeErr != nil {
			return errorsx.Wrap(writeErr)
		}
	}

	closeErr := writer.Close()
	if closeErr != nil {
		return errorsx.Wrap(closeErr)
	}

	return nil
}

// WriteFile writes the table to a new file at filePath
func WriteFile(fs gofs.Fs, filePath string, opts Options) errorsx.Error {
	file, err := fs.Create(filePath)
	if err != nil {
		return errorsx.Wrap(err, "filePath", filePath)
	}
	defer file.Close()

	writeErr := Write(file, opts)
	if writeErr != nil {
		return errorsx.Wrap(writeErr, "filePath", filePath)
	}

	err = file.Sync()
	if err != nil {
		return errorsx.Wrap(err, "filePath", filePath)
	}

	return nil
}
