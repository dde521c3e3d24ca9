package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05.999999999"
	secondsPerDay   = 24 * 60 * 60
)

// TimestampFromTime converts t into a timestamp of the given unit.
func TimestampFromTime(t time.Time, unit arrow.TimeUnit) arrow.Timestamp {
	switch unit {
	case arrow.Second:
		return arrow.Timestamp(t.Unix())
	case arrow.Millisecond:
		return arrow.Timestamp(t.UnixMilli())
	case arrow.Microsecond:
		return arrow.Timestamp(t.UnixMicro())
	default:
		return arrow.Timestamp(t.UnixNano())
	}
}

// TimeFromTimestamp converts a timestamp of the given unit into UTC time.
func TimeFromTimestamp(v arrow.Timestamp, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(int64(v), 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(int64(v)).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(int64(v)).UTC()
	default:
		return time.Unix(0, int64(v)).UTC()
	}
}

// Date32FromTime returns the number of days between the epoch and t's date.
func Date32FromTime(t time.Time) arrow.Date32 {
	secs := t.Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		days--
	}
	return arrow.Date32(days)
}

func unitDuration(unit arrow.TimeUnit) time.Duration {
	switch unit {
	case arrow.Second:
		return time.Second
	case arrow.Millisecond:
		return time.Millisecond
	case arrow.Microsecond:
		return time.Microsecond
	default:
		return time.Nanosecond
	}
}

// Value returns the Go value stored at position i of arr: int64, uint64,
// float64, bool, string, []byte, time.Time (dates and timestamps) or
// time.Duration (time of day). Nulls and NaN floats are returned as nil.
func Value(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return uint64(a.Value(i))
	case *array.Uint16:
		return uint64(a.Value(i))
	case *array.Uint32:
		return uint64(a.Value(i))
	case *array.Uint64:
		return a.Value(i)
	case *array.Float16:
		return floatOrNil(float64(a.Value(i).Float32()))
	case *array.Float32:
		return floatOrNil(float64(a.Value(i)))
	case *array.Float64:
		return floatOrNil(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return a.Value(i)
	case *array.LargeBinary:
		return a.Value(i)
	case *array.FixedSizeBinary:
		return a.Value(i)
	case *array.Date32:
		return time.Unix(int64(a.Value(i))*secondsPerDay, 0).UTC()
	case *array.Date64:
		return time.UnixMilli(int64(a.Value(i))).UTC()
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return TimeFromTimestamp(a.Value(i), unit)
	case *array.Time32:
		unit := a.DataType().(*arrow.Time32Type).Unit
		return time.Duration(a.Value(i)) * unitDuration(unit)
	case *array.Time64:
		unit := a.DataType().(*arrow.Time64Type).Unit
		return time.Duration(a.Value(i)) * unitDuration(unit)
	case *array.Dictionary:
		return Value(a.Dictionary(), a.GetValueIndex(i))
	default:
		return fmt.Sprint(arr.GetOneForMarshal(i))
	}
}

func floatOrNil(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// FormatValue renders the value at position i of arr as text. Nulls render as
// an empty string.
func FormatValue(arr arrow.Array, i int) string {
	if arr.IsNull(i) {
		return ""
	}

	switch a := arr.(type) {
	case *array.Float32:
		v := float64(a.Value(i))
		if math.IsNaN(v) {
			return ""
		}
		return formatFloat(v, 32)
	case *array.Date32, *array.Date64:
		return Value(a, i).(time.Time).Format(dateLayout)
	default:
		return FormatAny(Value(arr, i))
	}
}

// FormatAny renders a value returned by Value as text.
func FormatAny(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return FormatFloat(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(timestampLayout)
	case time.Duration:
		return FormatClock(v)
	default:
		return fmt.Sprint(v)
	}
}

// FormatClock renders a time-of-day duration as hh:mm:ss with an optional
// fraction.
func FormatClock(d time.Duration) string {
	return time.Unix(0, 0).UTC().Add(d).Format("15:04:05.999999999")
}

// FormatFloat renders v with the shortest round-tripping digits, a trailing
// ".0" for integral values and exponent notation outside [1e-4, 1e16).
func FormatFloat(v float64) string {
	return formatFloat(v, 64)
}

func formatFloat(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, bits)
	}

	s := strconv.FormatFloat(v, 'f', -1, bits)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
