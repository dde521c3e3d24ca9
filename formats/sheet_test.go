package formats_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/mock"
	"github.com/daflip/daflip/formats"
)

func TestExcel_RoundTrip(t *testing.T) {
	r := require.New(t)

	rec := sampleRecord()
	defer rec.Release()

	m := new(formats.Mux)
	w, err := m.Writer("xlsx")
	r.NoError(err)
	rd, err := m.Reader("excel")
	r.NoError(err)

	path := filepath.Join(t.TempDir(), "out.xlsx")
	r.NoError(w.Write(context.Background(), rec, path, nil))

	got, err := rd.Read(context.Background(), path, nil)
	r.NoError(err)
	r.Equal(typeNames(rec), typeNames(got))
	r.Equal(mock.Rows(rec), mock.Rows(got))
	got.Release()

	// named sheet
	path = filepath.Join(t.TempDir(), "named.xlsx")
	r.NoError(w.Write(context.Background(), rec, path, &core.WriteOptions{Sheet: "data"}))

	got, err = rd.Read(context.Background(), path, &core.ReadOptions{Sheet: "data"})
	r.NoError(err)
	r.Equal(mock.Rows(rec), mock.Rows(got))
	got.Release()

	_, err = rd.Read(context.Background(), path, &core.ReadOptions{Sheet: "Sheet1"})
	r.True(errors.Is(err, core.ErrInvalidOption))
	r.ErrorContains(err, `worksheet named "Sheet1" not found`)

	limited, err := rd.Read(context.Background(), path, &core.ReadOptions{MaxRows: 2})
	r.NoError(err)
	r.EqualValues(2, limited.NumRows())
	limited.Release()

	_, err = rd.Read(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), nil)
	r.True(errors.Is(err, core.ErrNotFound))
}

func TestExcel_WriteDates(t *testing.T) {
	r := require.New(t)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := mock.NewRecord(
		mock.Column{Name: "day", Type: arrow.FixedWidthTypes.Date32, Values: []any{at, nil}},
		mock.Column{Name: "at", Type: arrow.FixedWidthTypes.Timestamp_us, Values: []any{at, nil}},
		mock.Column{Name: "clock", Type: arrow.FixedWidthTypes.Time64us, Values: []any{time.Hour, nil}},
	)
	defer rec.Release()

	w, err := new(formats.Mux).Writer("xlsx")
	r.NoError(err)

	path := filepath.Join(t.TempDir(), "dates.xlsx")
	r.NoError(w.Write(context.Background(), rec, path, nil))

	f, err := excelize.OpenFile(path)
	r.NoError(err)
	defer f.Close()

	// dates and timestamps are stored as serial numbers with a date format
	day, err := f.GetCellValue("Sheet1", "A2")
	r.NoError(err)
	r.Equal("2024-01-02", day)

	raw, err := f.GetCellValue("Sheet1", "B2", excelize.Options{RawCellValue: true})
	r.NoError(err)
	serial, err := strconv.ParseFloat(raw, 64)
	r.NoError(err)
	r.InDelta(45293.0+11045.0/86400, serial, 1e-6)

	style, err := f.GetCellStyle("Sheet1", "B2")
	r.NoError(err)
	r.NotZero(style)

	// times of day stay text
	clock, err := f.GetCellValue("Sheet1", "C2")
	r.NoError(err)
	r.Equal("01:00:00", clock)

	empty, err := f.GetCellValue("Sheet1", "B3")
	r.NoError(err)
	r.Empty(empty)
}

func TestXLS(t *testing.T) {
	r := require.New(t)

	m := new(formats.Mux)

	w, err := m.Writer("xls")
	r.NoError(err)

	rec := mock.NewRows(0, 2)
	defer rec.Release()

	err = w.Write(context.Background(), rec, filepath.Join(t.TempDir(), "out.xls"), nil)
	r.True(errors.Is(err, core.ErrNotImplemented))

	rd, err := m.Reader("xls")
	r.NoError(err)

	_, err = rd.Read(context.Background(), filepath.Join(t.TempDir(), "missing.xls"), nil)
	r.True(errors.Is(err, core.ErrNotFound))
}

const page = `<html><body>
<table id="first">
  <thead><tr><th>name</th><th>amount</th></tr></thead>
  <tbody>
    <tr><td>alpha</td><td>1,234</td></tr>
    <tr><td>beta</td><td>5</td></tr>
  </tbody>
</table>
<table>
  <tr><th>a</th><th>b</th><th>c</th></tr>
  <tr><td rowspan="2">x</td><td colspan="2">wide</td></tr>
  <tr><td>1</td><td>2.5</td></tr>
</table>
<table>
  <tr><td>no</td><td>header</td></tr>
  <tr><td>n/a</td><td>
    <table><tr><td>nested</td></tr></table>
  </td></tr>
</table>
</body></html>`

func TestHTML_Read(t *testing.T) {
	r := require.New(t)

	rd, err := new(formats.Mux).Reader("htm")
	r.NoError(err)

	path := writeFile(t, "page.html", []byte(page))
	table := func(i int) *core.ReadOptions {
		return &core.ReadOptions{Table: &i}
	}

	rec, err := rd.Read(context.Background(), path, nil)
	r.NoError(err)
	r.Equal([]string{"name", "amount"}, core.ColumnNames(rec.Schema()))
	r.Equal([][]any{{"alpha", int64(1234)}, {"beta", int64(5)}}, mock.Rows(rec))
	rec.Release()

	rec, err = rd.Read(context.Background(), path, table(1))
	r.NoError(err)
	r.Equal([]string{"a", "b", "c"}, core.ColumnNames(rec.Schema()))
	r.Equal([][]any{{"x", "wide", "wide"}, {"x", "1", "2.5"}}, mock.Rows(rec))
	rec.Release()

	rec, err = rd.Read(context.Background(), path, table(2))
	r.NoError(err)
	r.Equal([]string{"0", "1"}, core.ColumnNames(rec.Schema()))
	r.Equal([][]any{{"no", "header"}, {nil, "nested"}}, mock.Rows(rec))
	rec.Release()

	// out of range indexes fall back to the first table
	for _, i := range []int{4, 10, -1} {
		rec, err = rd.Read(context.Background(), path, table(i))
		r.NoError(err)
		r.Equal([]string{"name", "amount"}, core.ColumnNames(rec.Schema()))
		r.Equal([][]any{{"alpha", int64(1234)}, {"beta", int64(5)}}, mock.Rows(rec))
		rec.Release()
	}

	_, err = rd.Read(context.Background(), writeFile(t, "empty.html", []byte("<p>nothing</p>")), nil)
	r.EqualError(err, "no tables found")
}
