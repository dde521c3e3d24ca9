package formats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/kshedden/datareader"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/builders"
)

// Register driver
func init() {
	_ = register(&SAS{}, core.FormatSAS)
}

var _ core.ChunkReader = (*SAS)(nil)

// sasEncodings maps the encoding names reported by sas7bdat headers to
// decoders. UTF-8 files need none.
var sasEncodings = map[string]encoding.Encoding{
	"latin1":    charmap.ISO8859_1,
	"wlatin1":   charmap.Windows1252,
	"wlatin2":   charmap.Windows1250,
	"wcyrillic": charmap.Windows1251,
	"cyrillic":  charmap.ISO8859_5,
}

// SAS reads sas7bdat files.
type SAS struct{}

func (*SAS) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionSASKeepBytes)
}

func (*SAS) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet()
}

type sasFile struct {
	file      *os.File
	reader    *datareader.SAS7BDAT
	kinds     []seriesKind
	keepBytes bool
}

func openSAS(path string, opts *core.ReadOptions) (*sasFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.MarkNotFound(err)
	}

	r, err := datareader.NewSAS7BDATReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("datareader.NewSAS7BDATReader: %w", err)
	}

	keepBytes := opts != nil && opts.SASKeepBytes

	r.TrimStrings = true
	r.ConvertDates = true
	if enc, ok := sasEncodings[r.FileEncoding]; ok && !keepBytes {
		r.TextDecoder = enc.NewDecoder()
	}

	kinds := make([]seriesKind, len(r.ColumnNames()))
	types := r.ColumnTypes()
	for j := range kinds {
		switch {
		case types[j] == datareader.SASStringType && keepBytes:
			kinds[j] = seriesBytes
		case j < len(r.ColumnFormats) && (r.ColumnFormats[j] == "DATE" || r.ColumnFormats[j] == "MMDDYY"):
			kinds[j] = seriesDate
		case j < len(r.ColumnFormats) && r.ColumnFormats[j] == "DATETIME":
			kinds[j] = seriesDateTime
		}
	}

	return &sasFile{file: f, reader: r, kinds: kinds, keepBytes: keepBytes}, nil
}

// empty returns a zero-row record typed from the file metadata.
func (s *sasFile) empty() arrow.Record {
	names := s.reader.ColumnNames()
	types := make([]arrow.DataType, len(names))
	for j, t := range s.reader.ColumnTypes() {
		switch {
		case t == datareader.SASStringType && s.keepBytes:
			types[j] = arrow.BinaryTypes.Binary
		case t == datareader.SASStringType:
			types[j] = arrow.BinaryTypes.String
		case s.kinds[j] == seriesDate:
			types[j] = arrow.FixedWidthTypes.Date32
		case s.kinds[j] == seriesDateTime:
			types[j] = &arrow.TimestampType{Unit: arrow.Microsecond}
		default:
			types[j] = arrow.PrimitiveTypes.Float64
		}
	}
	return emptySeriesRecord(names, types)
}

// next reads up to n rows. io.EOF is returned once the file is exhausted.
func (s *sasFile) next(n int) (arrow.Record, error) {
	series, err := s.reader.Read(n)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 || series[0].Length() == 0 {
		return nil, io.EOF
	}

	return seriesRecord(s.reader.ColumnNames(), series, s.kinds)
}

func (*SAS) Read(_ context.Context, path string, opts *core.ReadOptions) (arrow.Record, error) {
	s, err := openSAS(path, opts)
	if err != nil {
		return nil, err
	}
	defer s.file.Close()

	n := -1
	if opts != nil && opts.MaxRows > 0 {
		n = opts.MaxRows
	}

	rec, err := s.next(n)
	if errors.Is(err, io.EOF) {
		return s.empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("datareader.Read: %w", err)
	}
	return rec, nil
}

// ReadChunks streams the file in records of at most chunkSize rows.
func (*SAS) ReadChunks(_ context.Context, path string, chunkSize int, opts *core.ReadOptions) (core.ChunkStream, error) {
	s, err := openSAS(path, opts)
	if err != nil {
		return nil, err
	}

	next, hasNext := builders.NextPull(func() (arrow.Record, error) {
		rec, err := s.next(chunkSize)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("datareader.Read: %w", err)
		}
		return rec, err
	})

	return builders.NewStreamBuilder().
		WithNextFunc(next, hasNext).
		WithCloseFunc(func() {
			_ = s.file.Close()
		}).
		Build(), nil
}
