package formats

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	arrowcsv "github.com/apache/arrow/go/v15/arrow/csv"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/builders"
)

// Register drivers
func init() {
	_ = register(&CSV{Delimited{comma: ','}}, core.FormatCSV)
	_ = register(&Delimited{comma: '\t'}, core.FormatTSV)
	_ = register(&Delimited{comma: '|'}, core.FormatPSV)
}

var (
	_ core.Reader      = (*Delimited)(nil)
	_ core.ChunkReader = (*CSV)(nil)
	_ core.ChunkWriter = (*CSV)(nil)
)

var errNoColumns = errors.New("no columns to parse from file")

// Delimited reads delimiter separated text files with a header row.
type Delimited struct {
	comma rune
}

func (*Delimited) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionSchema)
}

func (*Delimited) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet()
}

// Read loads the whole file. With a schema the typed Arrow parser is tried
// first; if it fails the file is parsed untyped and schema timestamp columns
// are coerced afterwards.
func (d *Delimited) Read(_ context.Context, path string, opts *core.ReadOptions) (arrow.Record, error) {
	data, err := readText(path)
	if err != nil {
		return nil, err
	}

	if opts != nil && opts.Schema != nil {
		untyped, err := d.readUntyped(data, opts.MaxRows)
		if err != nil {
			return nil, err
		}
		defer untyped.Release()

		rec, err := d.readTyped(data, alignSchema(untyped.Schema(), opts.Schema), opts.MaxRows)
		if err == nil {
			return rec, nil
		}

		return coerceTimestamps(untyped, opts.Schema)
	}

	return d.readUntyped(data, maxRows(opts))
}

func maxRows(opts *core.ReadOptions) int {
	if opts == nil {
		return 0
	}
	return opts.MaxRows
}

// readText reads a possibly compressed text file, dropping a leading BOM.
// UTF-16 files announced by a BOM are decoded to UTF-8.
func readText(path string) ([]byte, error) {
	rc, err := core.OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(transform.NewReader(rc, unicode.BOMOverride(transform.Nop)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// alignSchema lays the types of user out in the column order of the file.
// Columns are matched by name; those user does not name keep their sniffed
// type.
func alignSchema(sniffed, user *arrow.Schema) *arrow.Schema {
	fields := make([]arrow.Field, sniffed.NumFields())
	for i, f := range sniffed.Fields() {
		if idx := user.FieldIndices(f.Name); len(idx) > 0 {
			f.Type = user.Field(idx[0]).Type
		}
		f.Nullable = true
		fields[i] = f
	}
	return arrow.NewSchema(fields, nil)
}

// readTyped parses data with the Arrow reader. schema must list the columns
// in file order; the reader assigns types by position.
func (d *Delimited) readTyped(data []byte, schema *arrow.Schema, limit int) (arrow.Record, error) {
	chunk := -1
	if limit > 0 {
		chunk = limit
	}

	r := arrowcsv.NewReader(bytes.NewReader(data), schema,
		arrowcsv.WithComma(d.comma),
		arrowcsv.WithHeader(true),
		arrowcsv.WithNullReader(true, builders.DefaultNullValues...),
		arrowcsv.WithChunk(chunk),
		arrowcsv.WithAllocator(core.Allocator),
	)
	defer r.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
		if limit > 0 {
			break
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("csv.Reader: %w", err)
	}
	for _, rec := range recs {
		if int(rec.NumCols()) != schema.NumFields() {
			return nil, fmt.Errorf("csv.Reader: expected %d columns, saw %d", schema.NumFields(), rec.NumCols())
		}
	}

	rec, err := core.ConcatRecords(r.Schema(), recs)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	// the reader names fields after the raw header, keep the unique names
	return array.NewRecord(schema, rec.Columns(), rec.NumRows()), nil
}

func (d *Delimited) newTextReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = d.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func (d *Delimited) readUntyped(data []byte, limit int) (arrow.Record, error) {
	r := d.newTextReader(bytes.NewReader(data))

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("csv.Read: %w", err)
	}

	rows, err := readRows(r, limit)
	if err != nil {
		return nil, err
	}

	table := builders.NewTextTable(header)
	table.Sniff(rows)
	return table.Build(rows, 2)
}

// readRows reads up to limit rows, or everything when limit is not positive.
func readRows(r *csv.Reader, limit int) ([][]string, error) {
	var rows [][]string
	for limit <= 0 || len(rows) < limit {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv.Read: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// coerceTimestamps converts every column declared as a timestamp in schema
// from its parsed representation to timestamp values.
func coerceTimestamps(rec arrow.Record, schema *arrow.Schema) (arrow.Record, error) {
	fields := rec.Schema().Fields()
	cols := make([]arrow.Array, len(fields))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i, f := range fields {
		idx := schema.FieldIndices(f.Name)
		if len(idx) == 0 || schema.Field(idx[0]).Type.ID() != arrow.TIMESTAMP {
			col := rec.Column(i)
			col.Retain()
			cols[i] = col
			continue
		}

		dt := schema.Field(idx[0]).Type
		col, err := toTimestamps(rec.Column(i), dt)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		cols[i] = col
		fields[i].Type = dt
	}

	return array.NewRecord(arrow.NewSchema(fields, nil), cols, rec.NumRows()), nil
}

func toTimestamps(col arrow.Array, dt arrow.DataType) (arrow.Array, error) {
	b := array.NewBuilder(core.Allocator, dt)
	defer b.Release()

	for i := 0; i < col.Len(); i++ {
		var (
			t   time.Time
			err error
		)

		switch v := core.Value(col, i).(type) {
		case nil:
			b.AppendNull()
			continue
		case string:
			t, err = core.ParseTime(v)
		case int64:
			t = time.Unix(0, v).UTC()
		case time.Time:
			t = v
		default:
			err = fmt.Errorf("cannot convert %T to a timestamp", v)
		}
		if err != nil {
			return nil, err
		}

		if err := core.AppendValue(b, t); err != nil {
			return nil, err
		}
	}

	return b.NewArray(), nil
}

// CSV is the comma separated driver. Unlike the other delimited formats it
// also writes and streams.
type CSV struct {
	Delimited
}

func (*CSV) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionCompression, core.OptionCompressionLevel)
}

// ReadChunks streams the file in records of at most chunkSize rows. Column
// types are sniffed from the first chunk; later chunks keep them unless their
// values need a wider type.
func (c *CSV) ReadChunks(_ context.Context, path string, chunkSize int, _ *core.ReadOptions) (core.ChunkStream, error) {
	rc, err := core.OpenDecompressed(path)
	if err != nil {
		return nil, err
	}

	r := c.newTextReader(transform.NewReader(rc, unicode.BOMOverride(transform.Nop)))

	header, err := r.Read()
	if err != nil {
		rc.Close()
		if errors.Is(err, io.EOF) {
			return nil, errNoColumns
		}
		return nil, fmt.Errorf("csv.Read: %w", err)
	}

	table := builders.NewTextTable(header)
	line := 2

	next, hasNext := builders.NextPull(func() (arrow.Record, error) {
		rows, err := readRows(r, chunkSize)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, io.EOF
		}

		if line == 2 {
			table.Sniff(rows)
		} else {
			table.Widen(rows)
		}
		rec, err := table.Build(rows, line)
		line += len(rows)
		return rec, err
	})

	return builders.NewStreamBuilder().
		WithNextFunc(next, hasNext).
		WithCloseFunc(func() {
			_ = rc.Close()
		}).
		Build(), nil
}

func (c *CSV) Write(_ context.Context, rec arrow.Record, path string, opts *core.WriteOptions) error {
	sink, err := c.openSink(path, opts)
	if err != nil {
		return err
	}

	if err := sink.Append(rec); err != nil {
		sink.Abort()
		return err
	}
	return sink.Close()
}

func (c *CSV) OpenChunkSink(_ context.Context, path string, opts *core.WriteOptions) (core.ChunkSink, error) {
	return c.openSink(path, opts)
}

func (c *CSV) openSink(path string, opts *core.WriteOptions) (*csvSink, error) {
	if opts == nil {
		opts = &core.WriteOptions{}
	}

	codec, err := core.ResolveCompression(opts.Compression, path)
	if err != nil {
		return nil, err
	}

	return &csvSink{
		path:       path,
		comma:      c.comma,
		codec:      codec,
		level:      opts.CompressionLevel,
		flushEvery: opts.ChunkRows,
	}, nil
}

// csvSink writes the header with the first appended record. Nothing is
// created on disk before that.
type csvSink struct {
	path       string
	comma      rune
	codec      string
	level      *int
	flushEvery int

	file    *core.AtomicFile
	stream  io.WriteCloser
	w       *csv.Writer
	pending int
}

func (s *csvSink) open(schema *arrow.Schema) error {
	f, err := core.CreateAtomic(s.path)
	if err != nil {
		return err
	}

	stream, err := core.NewCompressWriter(f, s.codec, s.level)
	if err != nil {
		f.Abort()
		return err
	}

	w := csv.NewWriter(stream)
	w.Comma = s.comma
	if err := w.Write(core.ColumnNames(schema)); err != nil {
		f.Abort()
		return fmt.Errorf("csv.Write: %w", err)
	}

	s.file, s.stream, s.w = f, stream, w
	return nil
}

func (s *csvSink) Append(rec arrow.Record) error {
	if s.file == nil {
		if err := s.open(rec.Schema()); err != nil {
			return err
		}
	}

	row := make([]string, rec.NumCols())
	for i := 0; i < int(rec.NumRows()); i++ {
		for j, col := range rec.Columns() {
			row[j] = core.FormatValue(col, i)
		}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("csv.Write: %w", err)
		}

		s.pending++
		if s.flushEvery > 0 && s.pending >= s.flushEvery {
			s.w.Flush()
			if err := s.w.Error(); err != nil {
				return fmt.Errorf("csv.Flush: %w", err)
			}
			s.pending = 0
		}
	}

	return nil
}

func (s *csvSink) Close() error {
	if s.file == nil {
		return nil
	}

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Abort()
		return fmt.Errorf("csv.Flush: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		s.file.Abort()
		return fmt.Errorf("close %s stream: %w", s.codec, err)
	}
	return s.file.Commit()
}

func (s *csvSink) Abort() {
	if s.file != nil {
		s.file.Abort()
	}
}
