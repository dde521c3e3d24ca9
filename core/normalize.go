package core

import (
	"fmt"
	"math"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
)

// maxExactInt is the largest magnitude a float64 represents without gaps.
const maxExactInt = 1 << 53

// Normalize converts every column to the representation used downstream:
// floats holding only integral values become int64, large strings and binaries
// become their regular counterparts, dictionaries are decoded and all-null
// columns become nullable strings. Row count and visible values are kept.
// The returned record is owned by the caller; rec is left untouched.
func Normalize(rec arrow.Record) (arrow.Record, error) {
	schema := rec.Schema()
	fields := make([]arrow.Field, schema.NumFields())
	cols := make([]arrow.Array, schema.NumFields())
	defer releaseArrays(cols)

	for i, col := range rec.Columns() {
		out, err := normalizeColumn(col)
		if err != nil {
			return nil, fmt.Errorf("normalize column %q: %w", schema.Field(i).Name, err)
		}
		cols[i] = out

		f := schema.Field(i)
		f.Type = out.DataType()
		f.Nullable = true
		fields[i] = f
	}

	md := schema.Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows()), nil
}

func normalizeColumn(col arrow.Array) (arrow.Array, error) {
	switch col.DataType().ID() {
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		if integralFloats(col) {
			return rebuild(col, arrow.PrimitiveTypes.Int64)
		}
	case arrow.LARGE_STRING:
		return rebuild(col, arrow.BinaryTypes.String)
	case arrow.LARGE_BINARY:
		return rebuild(col, arrow.BinaryTypes.Binary)
	case arrow.DICTIONARY:
		return rebuild(col, col.DataType().(*arrow.DictionaryType).ValueType)
	case arrow.NULL:
		return rebuild(col, arrow.BinaryTypes.String)
	}

	col.Retain()
	return col, nil
}

// integralFloats reports whether a float column has at least one value and
// every non-missing value is a whole number exactly representable as int64.
func integralFloats(col arrow.Array) bool {
	seen := false
	for i := 0; i < col.Len(); i++ {
		// nulls and NaN both come back as nil
		v, ok := Value(col, i).(float64)
		if !ok {
			continue
		}
		if math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > maxExactInt {
			return false
		}
		seen = true
	}
	return seen
}

// rebuild copies col into a new array of type dt, value by value.
func rebuild(col arrow.Array, dt arrow.DataType) (arrow.Array, error) {
	b := array.NewBuilder(Allocator, dt)
	defer b.Release()
	b.Reserve(col.Len())

	for i := 0; i < col.Len(); i++ {
		if err := AppendValue(b, Value(col, i)); err != nil {
			return nil, err
		}
	}

	return b.NewArray(), nil
}
