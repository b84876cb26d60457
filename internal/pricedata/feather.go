package pricedata

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// loadFeather reads a Feather v2 (Arrow IPC file) price table.
func loadFeather(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("failed to read arrow file %s: %w", path, err)
	}
	defer r.Close()

	indices, err := columnIndices(r.Schema())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var series Series
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record batch %d of %s: %w", i, path, err)
		}
		bars, err := barsFromRecord(rec, indices)
		if err != nil {
			return nil, fmt.Errorf("record batch %d of %s: %w", i, path, err)
		}
		series = append(series, bars...)
	}
	return series, nil
}

func columnIndices(schema *arrow.Schema) (map[string]int, error) {
	indices := make(map[string]int, len(RequiredColumns))
	header := make([]string, 0, len(schema.Fields()))
	for i, field := range schema.Fields() {
		header = append(header, field.Name)
		name := canonicalColumn(field.Name)
		if _, dup := indices[name]; !dup {
			indices[name] = i
		}
	}
	if err := checkColumns(header); err != nil {
		return nil, err
	}
	return indices, nil
}

func barsFromRecord(rec arrow.Record, indices map[string]int) ([]Bar, error) {
	n := int(rec.NumRows())
	bars := make([]Bar, n)

	times := rec.Column(indices[ColumnTime])
	for j := 0; j < n; j++ {
		t, err := timeAt(times, j)
		if err != nil {
			return nil, err
		}
		bars[j].Time = t
	}

	fields := []struct {
		name string
		set  func(b *Bar, v float64)
	}{
		{ColumnOpen, func(b *Bar, v float64) { b.Open = v }},
		{ColumnHigh, func(b *Bar, v float64) { b.High = v }},
		{ColumnLow, func(b *Bar, v float64) { b.Low = v }},
		{ColumnClose, func(b *Bar, v float64) { b.Close = v }},
		{ColumnVolume, func(b *Bar, v float64) { b.Volume = v }},
	}
	for _, field := range fields {
		col := rec.Column(indices[field.name])
		for j := 0; j < n; j++ {
			v, err := floatAt(col, j)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", field.name, err)
			}
			field.set(&bars[j], v)
		}
	}
	return bars, nil
}

// timeAt reads a unix-millisecond integer or an Arrow timestamp.
func timeAt(col arrow.Array, j int) (time.Time, error) {
	if col.IsNull(j) {
		return time.Time{}, fmt.Errorf("%w: null %s at row %d", ErrInvalidBar, ColumnTime, j)
	}
	switch c := col.(type) {
	case *array.Int64:
		return FromMillis(c.Value(j)), nil
	case *array.Int32:
		return FromMillis(int64(c.Value(j))), nil
	case *array.Uint64:
		return FromMillis(int64(c.Value(j))), nil
	case *array.Float64:
		return FromMillis(int64(c.Value(j))), nil
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(j).ToTime(unit).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: column %q has unsupported type %s", ErrInvalidBar, ColumnTime, col.DataType())
	}
}

// floatAt reads a numeric cell as float64. Nulls read as NaN and are
// rejected later by Validate.
func floatAt(col arrow.Array, j int) (float64, error) {
	if col.IsNull(j) {
		return math.NaN(), nil
	}
	switch c := col.(type) {
	case *array.Float64:
		return c.Value(j), nil
	case *array.Float32:
		return float64(c.Value(j)), nil
	case *array.Int64:
		return float64(c.Value(j)), nil
	case *array.Int32:
		return float64(c.Value(j)), nil
	case *array.Uint64:
		return float64(c.Value(j)), nil
	default:
		return 0, fmt.Errorf("unsupported type %s", col.DataType())
	}
}
