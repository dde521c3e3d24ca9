package core

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/float16"
)

// AppendValue appends a Go value (as produced by Value, or by one of the
// format decoders) to a builder, converting between compatible
// representations. A nil value appends a null.
func AppendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.Int8Builder:
		i, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int8(i))
	case *array.Int16Builder:
		i, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int16(i))
	case *array.Int32Builder:
		i, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int32(i))
	case *array.Int64Builder:
		i, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(i)
	case *array.Uint8Builder:
		i, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(uint8(i))
	case *array.Uint16Builder:
		i, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(uint16(i))
	case *array.Uint32Builder:
		i, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(uint32(i))
	case *array.Uint64Builder:
		if u, ok := v.(uint64); ok {
			b.Append(u)
			return nil
		}
		i, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(uint64(i))
	case *array.Float16Builder:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(float16.New(float32(f)))
	case *array.Float32Builder:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(float32(f))
	case *array.Float64Builder:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(f)
	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("cannot store %T as bool", v)
		}
		b.Append(bv)
	case *array.StringBuilder:
		b.Append(FormatAny(v))
	case *array.LargeStringBuilder:
		b.Append(FormatAny(v))
	case *array.BinaryBuilder:
		switch v := v.(type) {
		case []byte:
			b.Append(v)
		default:
			b.AppendString(FormatAny(v))
		}
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("cannot store %T as timestamp", v)
		}
		b.Append(TimestampFromTime(t, b.Type().(*arrow.TimestampType).Unit))
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("cannot store %T as date32", v)
		}
		b.Append(Date32FromTime(t))
	case *array.Date64Builder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("cannot store %T as date64", v)
		}
		b.Append(arrow.Date64(int64(Date32FromTime(t)) * secondsPerDay * 1000))
	case *array.Time32Builder:
		d, ok := v.(time.Duration)
		if !ok {
			return fmt.Errorf("cannot store %T as time32", v)
		}
		b.Append(arrow.Time32(d / unitDuration(b.Type().(*arrow.Time32Type).Unit)))
	case *array.Time64Builder:
		d, ok := v.(time.Duration)
		if !ok {
			return fmt.Errorf("cannot store %T as time64", v)
		}
		b.Append(arrow.Time64(d / unitDuration(b.Type().(*arrow.Time64Type).Unit)))
	default:
		return fmt.Errorf("unsupported column type %s", b.Type())
	}

	return nil
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("value %v is not integral", v)
		}
		return int64(v), nil
	case float32:
		return toInt64(float64(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot store %T as integer", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("cannot store %T as float", v)
	}
}
