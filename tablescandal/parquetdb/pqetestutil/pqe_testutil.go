package pqetestutil

import (
	"path/filepath"
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// VitalsRecord is one row of the test vitals table.
// Note is not numeric, so it is not part of the table schema; SystolicBP is nullable.
type VitalsRecord struct {
	PatientID  int64    `parquet:"name=patient_id, type=INT64"`
	Day        int32    `parquet:"name=day, type=INT32"`
	HeartRate  float64  `parquet:"name=heart_rate, type=DOUBLE"`
	Hematocrit float32  `parquet:"name=hematocrit, type=FLOAT"`
	SystolicBP *float64 `parquet:"name=systolic_bp, type=DOUBLE, repetitiontype=OPTIONAL"`
	Note       string   `parquet:"name=note, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func Float64Ptr(f float64) *float64 {
	return &f
}

// WriteVitalsFile writes records to a new parquet file, starting a new row group every rowsPerRowGroup records
func WriteVitalsFile(filePath string, rowsPerRowGroup int, records []VitalsRecord) errorsx.Error {
	f, err := local.NewLocalFileWriter(filePath)
	if err != nil {
		return errorsx.Wrap(err, "filePath", filePath)
	}
	defer f.Close()

	w, err := writer.NewParquetWriter(f, new(VitalsRecord), 1)
	if err != nil {
		return errorsx.Wrap(err)
	}

	w.PageSize = 64
	w.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, record := range records {
		err = w.Write(record)
		if err != nil {
			return errorsx.Wrap(err, "record", i)
		}

		if rowsPerRowGroup > 0 && (i+1)%rowsPerRowGroup == 0 {
			err = w.Flush(true)
			if err != nil {
				return errorsx.Wrap(err)
			}
		}
	}

	err = w.WriteStop()
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

// TempVitalsFile writes records to a parquet file in a temporary directory that is removed when the test finishes
func TempVitalsFile(t *testing.T, rowsPerRowGroup int, records ...VitalsRecord) string {
	filePath := filepath.Join(t.TempDir(), "vitals.parquet")

	err := WriteVitalsFile(filePath, rowsPerRowGroup, records)
	if err != nil {
		t.Fatalf("failed to write test parquet file: %s\n%s", err.Error(), err.Stack())
	}

	return filePath
}

// SortedVitals is n records sorted by patient ID, with heart rate and hematocrit cycling through a range of values.
// Every 7th record has no systolic blood pressure.
func SortedVitals(n int) []VitalsRecord {
	var records []VitalsRecord
	for i := 0; i < n; i++ {
		record := VitalsRecord{
			PatientID:  int64(i),
			Day:        int32(i % 30),
			HeartRate:  float64(50 + i%40),
			Hematocrit: float32(35 + i%30),
			Note:       "ok",
		}
		if i%7 != 0 {
			record.SystolicBP = Float64Ptr(float64(100 + i%50))
		}
		records = append(records, record)
	}
	return records
}
