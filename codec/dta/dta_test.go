package dta_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/kshedden/datareader"
	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/codec/dta"
	"github.com/daflip/daflip/core/mock"
)

func TestWrite_ReadBack(t *testing.T) {
	r := require.New(t)

	day := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	at := time.Date(1959, 12, 31, 23, 0, 0, 0, time.UTC)

	rec := mock.NewRecord(
		mock.Column{Name: "small", Type: arrow.PrimitiveTypes.Int64, Values: []any{1, nil, -5}},
		mock.Column{Name: "medium", Type: arrow.PrimitiveTypes.Int64, Values: []any{1000, 2, 3}},
		mock.Column{Name: "large", Type: arrow.PrimitiveTypes.Int64, Values: []any{100000, 2, nil}},
		mock.Column{Name: "huge", Type: arrow.PrimitiveTypes.Int64, Values: []any{int64(1) << 40, 0, 1}},
		mock.Column{Name: "ratio", Type: arrow.PrimitiveTypes.Float64, Values: []any{0.5, nil, 2.25}},
		mock.Column{Name: "name", Type: arrow.BinaryTypes.String, Values: []any{"a", "héllo", nil}},
		mock.Column{Name: "day", Type: arrow.FixedWidthTypes.Date32, Values: []any{day, nil, day}},
		mock.Column{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Values: []any{at, at, nil}},
		mock.Column{Name: "flag", Type: arrow.FixedWidthTypes.Boolean, Values: []any{true, false, nil}},
	)
	defer rec.Release()

	var buf bytes.Buffer
	r.NoError(dta.Write(&buf, rec, dta.WithLabel("test"), dta.WithTimestamp(day)))

	reader, err := datareader.NewStataReader(bytes.NewReader(buf.Bytes()))
	r.NoError(err)

	r.Equal(118, reader.FormatVersion)
	r.Equal(3, reader.RowCount())
	r.Equal("test", reader.DatasetLabel)
	r.Equal("29 Feb 2024 00:00", reader.TimeStamp)
	r.Equal([]string{"small", "medium", "large", "huge", "ratio", "name", "day", "at", "flag"}, reader.ColumnNames())
	r.Equal([]datareader.ColumnTypeT{
		datareader.ColumnTypeT(dta.TypeByte), datareader.ColumnTypeT(dta.TypeInt), datareader.ColumnTypeT(dta.TypeLong), datareader.ColumnTypeT(dta.TypeDouble), datareader.ColumnTypeT(dta.TypeDouble),
		6, datareader.ColumnTypeT(dta.TypeLong), datareader.ColumnTypeT(dta.TypeDouble), datareader.ColumnTypeT(dta.TypeByte),
	}, reader.ColumnTypes())

	series, err := reader.Read(-1)
	r.NoError(err)
	r.Len(series, 9)

	r.Equal([]int8{1, 101, -5}, series[0].Data())
	r.Equal([]bool{false, true, false}, series[0].Missing())
	r.Equal([]int16{1000, 2, 3}, series[1].Data())
	r.Equal([]int32{100000, 2, 2147483621}, series[2].Data())
	r.Equal([]bool{false, false, true}, series[2].Missing())
	r.Equal([]float64{1 << 40, 0, 1}, series[3].Data())
	r.Equal([]bool{false, true, false}, series[4].Missing())
	r.Equal([]string{"a", "héllo", ""}, series[5].Data())

	days := series[6].Data().([]time.Time)
	r.True(day.Equal(days[0]))
	r.Equal([]bool{false, true, false}, series[6].Missing())

	stamps := series[7].Data().([]time.Time)
	r.True(at.Equal(stamps[0]))
	r.Equal([]bool{false, false, true}, series[7].Missing())

	r.Equal([]int8{1, 0, 101}, series[8].Data())
}

func TestNames(t *testing.T) {
	r := require.New(t)

	long := "a_very_long_column_name_that_exceeds_the_limit"
	r.Equal([]string{
		"ok",
		"has_space",
		"_1st",
		"_",
		long[:32],
		long[:30] + "_1",
		"ok_1",
	}, dta.Names([]string{"ok", "has space", "1st", "", long, long, "ok"}))
}

func TestWrite_StringTooLong(t *testing.T) {
	r := require.New(t)

	rec := mock.NewRecord(mock.Column{
		Name:   "text",
		Type:   arrow.BinaryTypes.String,
		Values: []any{string(bytes.Repeat([]byte("x"), dta.MaxStrWidth+1))},
	})
	defer rec.Release()

	err := dta.Write(&bytes.Buffer{}, rec)
	r.ErrorContains(err, "strings longer than 2045 bytes")
}
