package formats

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"

	"github.com/daflip/daflip/codec/sav"
	"github.com/daflip/daflip/core"
)

// Register driver
func init() {
	_ = register(&SPSS{}, core.FormatSPSS, "sav", "zsav")
}

var _ core.Reader = (*SPSS)(nil)

// SPSS reads sav and zsav system files.
type SPSS struct{}

func (*SPSS) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*SPSS) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*SPSS) Read(_ context.Context, path string, opts *core.ReadOptions) (arrow.Record, error) {
	rc, err := core.OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	file, err := sav.Read(rc)
	if err != nil {
		return nil, fmt.Errorf("sav.Read: %w", err)
	}

	rows := file.Rows
	if opts != nil && opts.MaxRows > 0 && opts.MaxRows < rows {
		rows = opts.MaxRows
	}

	return savRecord(file, rows)
}

func savType(kind sav.Kind) arrow.DataType {
	switch kind {
	case sav.KindString, sav.KindLabeled:
		return arrow.BinaryTypes.String
	case sav.KindDate:
		return arrow.FixedWidthTypes.Date32
	case sav.KindDateTime:
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	default:
		return arrow.PrimitiveTypes.Float64
	}
}

func savRecord(file *sav.File, rows int) (arrow.Record, error) {
	fields := make([]arrow.Field, len(file.Variables))
	for j, v := range file.Variables {
		fields[j] = arrow.Field{Name: v.Name, Type: savType(v.Kind), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(core.Allocator, schema)
	defer b.Release()

	for j, f := range b.Fields() {
		f.Reserve(rows)
		for i := 0; i < rows; i++ {
			if err := core.AppendValue(f, file.Columns[j][i]); err != nil {
				return nil, fmt.Errorf("column %q, row %d: %w", fields[j].Name, i, err)
			}
		}
	}

	return b.NewRecord(), nil
}
