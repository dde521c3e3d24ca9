package formats

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/scritchley/orc"

	"github.com/daflip/daflip/core"
)

// Register driver
func init() {
	_ = register(&ORC{}, core.FormatORC)
}

var (
	_ core.Reader       = (*ORC)(nil)
	_ core.Writer       = (*ORC)(nil)
	_ core.SchemaProber = (*ORC)(nil)
)

// ORC reads and writes Apache ORC files. Only flat schemas of primitive
// types are mapped to typed columns; nested values are kept as text.
type ORC struct{}

func (*ORC) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*ORC) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionCompression)
}

// orcColumn is a top level field parsed from an ORC type description.
type orcColumn struct {
	name string
	kind string
}

// orcColumns splits "struct<a:int,b:decimal(10,2)>" into its fields.
func orcColumns(desc string) ([]orcColumn, error) {
	if !strings.HasPrefix(desc, "struct<") || !strings.HasSuffix(desc, ">") {
		return nil, fmt.Errorf("unexpected orc root type %q", desc)
	}
	body := desc[len("struct<") : len(desc)-1]
	if body == "" {
		return nil, nil
	}

	var (
		parts []string
		depth int
		start int
	)
	for i, r := range body {
		switch r {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, body[start:])

	cols := make([]orcColumn, len(parts))
	for i, part := range parts {
		name, kind, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed orc field %q", part)
		}
		cols[i] = orcColumn{name: name, kind: kind}
	}
	return cols, nil
}

func orcArrowType(kind string) arrow.DataType {
	base, _, _ := strings.Cut(kind, "(")
	switch base {
	case "boolean":
		return arrow.FixedWidthTypes.Boolean
	case "tinyint", "smallint", "int", "bigint":
		return arrow.PrimitiveTypes.Int64
	case "float", "double":
		return arrow.PrimitiveTypes.Float64
	case "binary":
		return arrow.BinaryTypes.Binary
	case "timestamp":
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case "date":
		return arrow.FixedWidthTypes.Date32
	default:
		return arrow.BinaryTypes.String
	}
}

func orcSchema(cols []orcColumn) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.name, Type: orcArrowType(c.kind), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func openORC(path string) (*orc.Reader, []orcColumn, error) {
	r, err := orc.Open(path)
	if err != nil {
		return nil, nil, core.MarkNotFound(fmt.Errorf("orc.Open: %w", err))
	}

	cols, err := orcColumns(r.Schema().String())
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return r, cols, nil
}

func (*ORC) ProbeSchema(_ context.Context, path string) (*arrow.Schema, error) {
	r, cols, err := openORC(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return orcSchema(cols), nil
}

func (*ORC) Read(_ context.Context, path string, opts *core.ReadOptions) (arrow.Record, error) {
	r, cols, err := openORC(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	schema := orcSchema(cols)
	if len(cols) == 0 {
		return core.EmptyRecord(schema), nil
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}

	b := array.NewRecordBuilder(core.Allocator, schema)
	defer b.Release()

	limit := maxRows(opts)
	rows := 0

	c := r.Select(names...)
stripes:
	for c.Stripes() {
		for c.Next() {
			if limit > 0 && rows >= limit {
				break stripes
			}
			for j, v := range c.Row() {
				if err := core.AppendValue(b.Field(j), orcValue(v)); err != nil {
					return nil, fmt.Errorf("column %q, row %d: %w", names[j], rows, err)
				}
			}
			rows++
		}
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("orc.Cursor: %w", err)
	}

	return b.NewRecord(), nil
}

// orcValue maps cursor values onto what core.AppendValue understands.
// Dates come back as a type embedding time.Time.
func orcValue(v any) any {
	switch v := v.(type) {
	case nil, bool, int64, float64, string, []byte:
		return v
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	case interface{ UTC() time.Time }:
		return v.UTC()
	default:
		return fmt.Sprint(v)
	}
}

var (
	orcCodecs = map[string]orc.CompressionCodec{
		"":             orc.CompressionSnappy{},
		"snappy":       orc.CompressionSnappy{},
		"zlib":         orc.CompressionZlib{},
		"none":         orc.CompressionNone{},
		"uncompressed": orc.CompressionNone{},
	}

	orcInvalidName = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// orcWriteType picks the ORC type a column is stored as.
func orcWriteType(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.BOOL:
		return "boolean"
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return "bigint"
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return "double"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return "binary"
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return "timestamp"
	default:
		return "string"
	}
}

// orcFieldNames makes column names acceptable to the type description
// parser, which only understands identifiers.
func orcFieldNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, name := range names {
		n := orcInvalidName.ReplaceAllString(name, "_")
		if n == "" {
			n = fmt.Sprintf("_col%d", i)
		}
		unique := n
		for k := 1; used[unique]; k++ {
			unique = fmt.Sprintf("%s_%d", n, k)
		}
		used[unique] = true
		out[i] = unique
	}
	return out
}

func (*ORC) Write(_ context.Context, rec arrow.Record, path string, opts *core.WriteOptions) error {
	name := ""
	if opts != nil {
		name = strings.ToLower(opts.Compression)
	}
	codec, ok := orcCodecs[name]
	if !ok {
		return core.InvalidOptionf("unsupported orc compression %q (supported: snappy, zlib, none)", opts.Compression)
	}

	names := orcFieldNames(core.ColumnNames(rec.Schema()))
	types := make([]string, rec.NumCols())
	fields := make([]string, rec.NumCols())
	for j, f := range rec.Schema().Fields() {
		types[j] = orcWriteType(f.Type)
		fields[j] = names[j] + ":" + types[j]
	}

	schema, err := orc.ParseSchema("struct<" + strings.Join(fields, ",") + ">")
	if err != nil {
		return fmt.Errorf("orc.ParseSchema: %w", err)
	}

	f, err := core.CreateAtomic(path)
	if err != nil {
		return err
	}

	// the writer must not close the file, Commit does
	w, err := orc.NewWriter(struct{ io.Writer }{f}, orc.SetSchema(schema), orc.SetCompression(codec))
	if err != nil {
		f.Abort()
		return fmt.Errorf("orc.NewWriter: %w", err)
	}

	row := make([]any, rec.NumCols())
	for i := 0; i < int(rec.NumRows()); i++ {
		for j, col := range rec.Columns() {
			row[j] = orcWriteValue(core.Value(col, i), types[j])
		}
		if err := w.Write(row...); err != nil {
			w.Close()
			f.Abort()
			return fmt.Errorf("orc.Write: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		f.Abort()
		return fmt.Errorf("orc.Close: %w", err)
	}
	return f.Commit()
}

func orcWriteValue(v any, kind string) any {
	if v == nil {
		return nil
	}

	switch kind {
	case "bigint":
		switch v := v.(type) {
		case uint64:
			return int64(v)
		case bool:
			if v {
				return int64(1)
			}
			return int64(0)
		}
	case "string":
		return core.FormatAny(v)
	}
	return v
}
