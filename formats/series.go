package formats

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/kshedden/datareader"

	"github.com/daflip/daflip/core"
)

// seriesKind tells how a statistical package column should be represented.
type seriesKind int

const (
	seriesAuto seriesKind = iota
	seriesDate
	seriesDateTime
	seriesBytes
)

// seriesRecord converts the columns returned by a datareader into a record.
// kinds may be shorter than series; missing entries default to seriesAuto.
func seriesRecord(names []string, series []*datareader.Series, kinds []seriesKind) (arrow.Record, error) {
	if len(names) != len(series) {
		return nil, fmt.Errorf("got %d columns for %d names", len(series), len(names))
	}

	fields := make([]arrow.Field, len(series))
	cols := make([]arrow.Array, len(series))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	rows := -1
	for j, s := range series {
		kind := seriesAuto
		if j < len(kinds) {
			kind = kinds[j]
		}

		col, err := seriesArray(s, kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", names[j], err)
		}
		if rows >= 0 && col.Len() != rows {
			col.Release()
			return nil, fmt.Errorf("column %q: expected %d rows, got %d", names[j], rows, col.Len())
		}
		rows = col.Len()

		cols[j] = col
		fields[j] = arrow.Field{Name: names[j], Type: col.DataType(), Nullable: true}
	}
	if rows < 0 {
		rows = 0
	}

	return array.NewRecord(arrow.NewSchema(fields, nil), cols, int64(rows)), nil
}

func seriesArray(s *datareader.Series, kind seriesKind) (arrow.Array, error) {
	missing := s.Missing()
	isMissing := func(i int) bool {
		return missing != nil && i < len(missing) && missing[i]
	}

	var (
		dt     arrow.DataType
		n      int
		valueF func(i int) any
	)

	switch data := s.Data().(type) {
	case []float64:
		dt, n = arrow.PrimitiveTypes.Float64, len(data)
		valueF = func(i int) any { return data[i] }
	case []float32:
		dt, n = arrow.PrimitiveTypes.Float32, len(data)
		valueF = func(i int) any { return data[i] }
	case []int64:
		dt, n = arrow.PrimitiveTypes.Int64, len(data)
		valueF = func(i int) any { return data[i] }
	case []int32:
		dt, n = arrow.PrimitiveTypes.Int32, len(data)
		valueF = func(i int) any { return data[i] }
	case []int16:
		dt, n = arrow.PrimitiveTypes.Int16, len(data)
		valueF = func(i int) any { return data[i] }
	case []int8:
		dt, n = arrow.PrimitiveTypes.Int8, len(data)
		valueF = func(i int) any { return data[i] }
	case []uint64:
		dt, n = arrow.PrimitiveTypes.Uint64, len(data)
		valueF = func(i int) any { return data[i] }
	case []string:
		dt, n = arrow.BinaryTypes.String, len(data)
		if kind == seriesBytes {
			dt = arrow.BinaryTypes.Binary
			valueF = func(i int) any { return []byte(data[i]) }
		} else {
			valueF = func(i int) any { return strings.ToValidUTF8(data[i], "�") }
		}
	case []time.Time:
		dt, n = &arrow.TimestampType{Unit: arrow.Microsecond}, len(data)
		if kind == seriesDate {
			dt = arrow.FixedWidthTypes.Date32
		}
		valueF = func(i int) any { return data[i] }
	default:
		return nil, fmt.Errorf("unsupported column data %T", data)
	}

	b := array.NewBuilder(core.Allocator, dt)
	defer b.Release()
	b.Reserve(n)

	for i := 0; i < n; i++ {
		if isMissing(i) {
			b.AppendNull()
			continue
		}
		if err := core.AppendValue(b, valueF(i)); err != nil {
			return nil, err
		}
	}

	return b.NewArray(), nil
}

// emptySeriesRecord builds a zero-row record from column types known up front.
func emptySeriesRecord(names []string, types []arrow.DataType) arrow.Record {
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: types[i], Nullable: true}
	}
	return core.EmptyRecord(arrow.NewSchema(fields, nil))
}
