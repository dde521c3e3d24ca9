package formats_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/mock"
	"github.com/daflip/daflip/formats"
)

func sampleRecord() arrow.Record {
	return mock.NewRecord(
		mock.Column{Name: "id", Type: arrow.PrimitiveTypes.Int64, Values: []any{1, 2, 3}},
		mock.Column{Name: "name", Type: arrow.BinaryTypes.String, Values: []any{"alpha", "beta, gamma", nil}},
		mock.Column{Name: "score", Type: arrow.PrimitiveTypes.Float64, Values: []any{1.5, nil, -2.25}},
		mock.Column{Name: "flag", Type: arrow.FixedWidthTypes.Boolean, Values: []any{true, false, nil}},
	)
}

func TestDelimited_Read(t *testing.T) {
	r := require.New(t)

	testCases := []struct {
		tag  core.Format
		data string
	}{
		{"csv", "id,name,score,flag\n1,alpha,1.5,True\n2,b,,false\n"},
		{"tsv", "id\tname\tscore\tflag\n1\talpha\t1.5\tTrue\n2\tb\t\tfalse\n"},
		{"psv", "id|name|score|flag\n1|alpha|1.5|True\n2|b||false\n"},
		{"csv", "\ufeffid,name,score,flag\r\n1,alpha,1.5,True\r\n2,b,NA,false\r\n"},
	}

	for _, tc := range testCases {
		path := writeFile(t, "in."+string(tc.tag), []byte(tc.data))

		reader, err := new(formats.Mux).Reader(tc.tag)
		r.NoError(err)

		rec, err := reader.Read(context.Background(), path, nil)
		r.NoError(err, tc.tag)

		r.Equal([]string{"id", "name", "score", "flag"}, core.ColumnNames(rec.Schema()))
		r.Equal([]arrow.DataType{
			arrow.PrimitiveTypes.Int64, arrow.BinaryTypes.String,
			arrow.PrimitiveTypes.Float64, arrow.FixedWidthTypes.Boolean,
		}, mock.Types(rec))
		r.Equal([][]any{
			{int64(1), "alpha", 1.5, true},
			{int64(2), "b", nil, false},
		}, mock.Rows(rec))
		rec.Release()
	}
}

func TestDelimited_ReadHeaders(t *testing.T) {
	r := require.New(t)

	path := writeFile(t, "in.csv", []byte("a,a,,b\n1,2,3\n4,5,6,7\n"))

	reader, err := new(formats.Mux).Reader("csv")
	r.NoError(err)

	rec, err := reader.Read(context.Background(), path, nil)
	r.NoError(err)
	defer rec.Release()

	r.Equal([]string{"a", "a.1", "Unnamed: 2", "b"}, core.ColumnNames(rec.Schema()))
	r.Equal([]any{nil, int64(7)}, mock.ColumnValues(rec, "b"))
}

func TestDelimited_ReadErrors(t *testing.T) {
	r := require.New(t)

	reader, err := new(formats.Mux).Reader("csv")
	r.NoError(err)

	_, err = reader.Read(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), nil)
	r.True(errors.Is(err, core.ErrNotFound))

	_, err = reader.Read(context.Background(), writeFile(t, "empty.csv", nil), nil)
	r.EqualError(err, "no columns to parse from file")

	_, err = reader.Read(context.Background(), writeFile(t, "long.csv", []byte("a,b\n1,2\n1,2,3\n")), nil)
	r.ErrorContains(err, "line 3: expected 2 fields, saw 3")
}

func TestDelimited_ReadSchema(t *testing.T) {
	r := require.New(t)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true},
		{Name: "note", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	reader, err := new(formats.Mux).Reader("csv")
	r.NoError(err)

	// typed parse
	path := writeFile(t, "typed.csv", []byte("id,at,note\n1,2024-01-02 03:04:05,x\n2,,y\n"))
	rec, err := reader.Read(context.Background(), path, &core.ReadOptions{Schema: schema})
	r.NoError(err)
	r.Equal(mock.Types(rec), []arrow.DataType{arrow.PrimitiveTypes.Int32, schema.Field(1).Type, arrow.BinaryTypes.String})
	r.True(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Equal(mock.ColumnValues(rec, "at")[0].(time.Time)))
	r.Nil(mock.ColumnValues(rec, "at")[1])
	rec.Release()

	// month-first dates are not understood by the typed parser
	path = writeFile(t, "fallback.csv", []byte("id,at,note\n1,01/02/2024 03:04,x\n2,,y\n"))
	rec, err = reader.Read(context.Background(), path, &core.ReadOptions{Schema: schema})
	r.NoError(err)
	defer rec.Release()

	r.Equal(schema.Field(1).Type, rec.Schema().Field(1).Type)
	r.Equal(arrow.PrimitiveTypes.Int64, rec.Schema().Field(0).Type)
	r.True(time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC).Equal(mock.ColumnValues(rec, "at")[0].(time.Time)))
	r.Nil(mock.ColumnValues(rec, "at")[1])
}

func TestDelimited_ReadSchemaOrder(t *testing.T) {
	r := require.New(t)

	// fields are matched by name, not by position
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "a", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	reader, err := new(formats.Mux).Reader("csv")
	r.NoError(err)

	path := writeFile(t, "order.csv", []byte("a,b,c\n1,2,3\n4,5,6\n"))
	rec, err := reader.Read(context.Background(), path, &core.ReadOptions{Schema: schema})
	r.NoError(err)
	defer rec.Release()

	r.Equal([]string{"a", "b", "c"}, core.ColumnNames(rec.Schema()))
	r.Equal([]arrow.DataType{
		arrow.PrimitiveTypes.Float64, arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int64,
	}, mock.Types(rec))
	r.Equal([][]any{{1.0, "2", int64(3)}, {4.0, "5", int64(6)}}, mock.Rows(rec))
}

func TestDelimited_ReadMaxRows(t *testing.T) {
	r := require.New(t)

	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 50; i++ {
		sb.WriteString("1\n")
	}
	path := writeFile(t, "in.csv", []byte(sb.String()))

	reader, err := new(formats.Mux).Reader("csv")
	r.NoError(err)

	rec, err := reader.Read(context.Background(), path, &core.ReadOptions{MaxRows: 10})
	r.NoError(err)
	defer rec.Release()
	r.EqualValues(10, rec.NumRows())
}

func TestCSV_RoundTrip(t *testing.T) {
	r := require.New(t)

	rec := sampleRecord()
	defer rec.Release()

	m := new(formats.Mux)
	writer, err := m.Writer("csv")
	r.NoError(err)
	reader, err := m.Reader("csv")
	r.NoError(err)

	for _, name := range []string{"out.csv", "out.csv.gz", "out.csv.zst", "out.csv.xz"} {
		path := filepath.Join(t.TempDir(), name)
		r.NoError(writer.Write(context.Background(), rec, path, nil), name)

		got, err := reader.Read(context.Background(), path, nil)
		r.NoError(err, name)
		r.Equal(mock.Rows(rec), mock.Rows(got), name)
		got.Release()
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	r.NoError(writer.Write(context.Background(), rec, path, nil))
	data, err := os.ReadFile(path)
	r.NoError(err)
	r.Equal("id,name,score,flag\n1,alpha,1.5,True\n2,\"beta, gamma\",,False\n3,,-2.25,\n", string(data))

	err = writer.Write(context.Background(), rec, path, &core.WriteOptions{Compression: "lzma"})
	r.True(errors.Is(err, core.ErrInvalidOption))
}

func TestCSV_ChunkSink(t *testing.T) {
	r := require.New(t)

	w, err := new(formats.Mux).Writer("csv")
	r.NoError(err)
	cw := w.(core.ChunkWriter)

	dir := t.TempDir()

	// nothing appended, nothing written
	path := filepath.Join(dir, "empty.csv")
	sink, err := cw.OpenChunkSink(context.Background(), path, nil)
	r.NoError(err)
	r.NoError(sink.Close())
	_, err = os.Stat(path)
	r.True(os.IsNotExist(err))

	path = filepath.Join(dir, "out.csv")
	sink, err = cw.OpenChunkSink(context.Background(), path, &core.WriteOptions{ChunkRows: 2})
	r.NoError(err)
	for _, rng := range [][2]int{{0, 3}, {3, 5}} {
		rec := mock.NewRows(rng[0], rng[1])
		r.NoError(sink.Append(rec))
		rec.Release()
	}
	r.NoError(sink.Close())

	data, err := os.ReadFile(path)
	r.NoError(err)
	r.Equal("id,name\n0,row_0\n1,row_1\n2,row_2\n3,row_3\n4,row_4\n", string(data))

	entries, err := os.ReadDir(dir)
	r.NoError(err)
	r.Len(entries, 1)
}

func TestCSV_ChunkSinkAbort(t *testing.T) {
	r := require.New(t)

	w, err := new(formats.Mux).Writer("csv")
	r.NoError(err)

	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	sink, err := w.(core.ChunkWriter).OpenChunkSink(context.Background(), path, nil)
	r.NoError(err)

	rec := mock.NewRows(0, 3)
	defer rec.Release()
	r.NoError(sink.Append(rec))
	sink.Abort()

	entries, err := os.ReadDir(dir)
	r.NoError(err)
	r.Empty(entries)
}

func TestCSV_ReadChunks(t *testing.T) {
	r := require.New(t)

	var sb strings.Builder
	sb.WriteString("n,v\n")
	for i := 0; i < 10; i++ {
		if i < 5 {
			sb.WriteString("1,a\n")
		} else {
			sb.WriteString("1.5,b\n")
		}
	}
	path := writeFile(t, "in.csv", []byte(sb.String()))

	reader, err := new(formats.Mux).Reader("csv")
	r.NoError(err)

	stream, err := reader.(core.ChunkReader).ReadChunks(context.Background(), path, 4, nil)
	r.NoError(err)
	defer stream.Close()

	var (
		sizes []int64
		types []arrow.DataType
	)
	for stream.HasNext() {
		rec, err := stream.Next()
		r.NoError(err)
		sizes = append(sizes, rec.NumRows())
		types = append(types, rec.Schema().Field(0).Type)
		rec.Release()
	}

	r.Equal([]int64{4, 4, 2}, sizes)
	// types widen once later chunks need it
	r.Equal([]arrow.DataType{
		arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Float64, arrow.PrimitiveTypes.Float64,
	}, types)
}

func TestCSV_ReadChunksStableTypes(t *testing.T) {
	r := require.New(t)

	path := writeFile(t, "in.csv", []byte("id,x,flag\n1,5,true\n2,6,false\n3,,\n4,,\n"))

	reader, err := new(formats.Mux).Reader("csv")
	r.NoError(err)

	stream, err := reader.(core.ChunkReader).ReadChunks(context.Background(), path, 2, nil)
	r.NoError(err)
	defer stream.Close()

	var rows [][]any
	for stream.HasNext() {
		rec, err := stream.Next()
		r.NoError(err)
		// missing values in later chunks keep the first chunk's types
		r.Equal([]arrow.DataType{
			arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64, arrow.FixedWidthTypes.Boolean,
		}, mock.Types(rec))
		rows = append(rows, mock.Rows(rec)...)
		rec.Release()
	}

	r.Equal([][]any{
		{int64(1), int64(5), true},
		{int64(2), int64(6), false},
		{int64(3), nil, nil},
		{int64(4), nil, nil},
	}, rows)
}

func TestCSV_ReadChunksError(t *testing.T) {
	r := require.New(t)

	path := writeFile(t, "in.csv", []byte("a,b\n1,2\n3,4\n5,6,7\n"))

	reader, err := new(formats.Mux).Reader("csv")
	r.NoError(err)

	stream, err := reader.(core.ChunkReader).ReadChunks(context.Background(), path, 2, nil)
	r.NoError(err)
	defer stream.Close()

	rec, err := stream.Next()
	r.NoError(err)
	rec.Release()

	r.True(stream.HasNext())
	_, err = stream.Next()
	r.ErrorContains(err, "line 4: expected 2 fields, saw 3")
	r.False(stream.HasNext())
}
