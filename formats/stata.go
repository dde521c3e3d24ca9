package formats

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/kshedden/datareader"

	"github.com/daflip/daflip/codec/dta"
	"github.com/daflip/daflip/core"
)

// Register driver
func init() {
	_ = register(&Stata{}, core.FormatStata, "dta")
}

var (
	_ core.Reader = (*Stata)(nil)
	_ core.Writer = (*Stata)(nil)
)

// Stata reads dta files of every version datareader understands and writes
// format 118.
type Stata struct{}

func (*Stata) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*Stata) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionCompression, core.OptionCompressionLevel)
}

func (*Stata) Read(_ context.Context, path string, opts *core.ReadOptions) (arrow.Record, error) {
	rc, err := core.OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// the reader seeks, compressed input is buffered whole
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	r, err := datareader.NewStataReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("datareader.NewStataReader: %w", err)
	}

	kinds := make([]seriesKind, r.Nvar)
	for j := range kinds {
		if j < len(r.Formats) && strings.HasPrefix(r.Formats[j], "%td") {
			kinds[j] = seriesDate
		}
	}

	n := -1
	if opts != nil && opts.MaxRows > 0 {
		n = opts.MaxRows
	}

	series, err := r.Read(n)
	if err != nil {
		return nil, fmt.Errorf("datareader.Read: %w", err)
	}
	if series == nil {
		return emptySeriesRecord(r.ColumnNames(), stataTypes(r)), nil
	}

	return seriesRecord(r.ColumnNames(), series, kinds)
}

// stataTypes derives column types from variable type codes and formats.
func stataTypes(r *datareader.StataReader) []arrow.DataType {
	types := make([]arrow.DataType, r.Nvar)
	for j, ct := range r.ColumnTypes() {
		t := int(ct)
		format := ""
		if j < len(r.Formats) {
			format = r.Formats[j]
		}
		labeled := false
		if j < len(r.ValueLabelNames) {
			_, labeled = r.ValueLabels[r.ValueLabelNames[j]]
		}

		switch {
		case t <= dta.MaxStrWidth, t == 32768, labeled:
			types[j] = arrow.BinaryTypes.String
		case strings.HasPrefix(format, "%td"):
			types[j] = arrow.FixedWidthTypes.Date32
		case strings.HasPrefix(format, "%tc"):
			types[j] = &arrow.TimestampType{Unit: arrow.Microsecond}
		case t == int(dta.TypeDouble):
			types[j] = arrow.PrimitiveTypes.Float64
		case t == int(dta.TypeFloat):
			types[j] = arrow.PrimitiveTypes.Float32
		case t == int(dta.TypeLong):
			types[j] = arrow.PrimitiveTypes.Int32
		case t == int(dta.TypeInt):
			types[j] = arrow.PrimitiveTypes.Int16
		default:
			types[j] = arrow.PrimitiveTypes.Int8
		}
	}
	return types
}

// Write stores rec as a format 118 file, optionally wrapped in a stream
// compression codec.
func (*Stata) Write(_ context.Context, rec arrow.Record, path string, opts *core.WriteOptions) error {
	if opts == nil {
		opts = &core.WriteOptions{}
	}

	codec, err := core.ResolveCompression(opts.Compression, path)
	if err != nil {
		return err
	}

	f, err := core.CreateAtomic(path)
	if err != nil {
		return err
	}

	w, err := core.NewCompressWriter(f, codec, opts.CompressionLevel)
	if err != nil {
		f.Abort()
		return err
	}

	if err := dta.Write(w, rec); err != nil {
		f.Abort()
		return fmt.Errorf("dta.Write: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Abort()
		return fmt.Errorf("close %s stream: %w", codec, err)
	}

	return f.Commit()
}
