package formats

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/parquet"
	"github.com/apache/arrow/go/v15/parquet/compress"
	"github.com/apache/arrow/go/v15/parquet/file"
	"github.com/apache/arrow/go/v15/parquet/pqarrow"

	"github.com/daflip/daflip/core"
)

// Register driver
func init() {
	_ = register(&Parquet{}, core.FormatParquet)
}

var (
	_ core.Reader       = (*Parquet)(nil)
	_ core.SchemaProber = (*Parquet)(nil)
	_ core.ChunkWriter  = (*Parquet)(nil)
)

var parquetCodecs = map[string]compress.Compression{
	"snappy":       compress.Codecs.Snappy,
	"gzip":         compress.Codecs.Gzip,
	"brotli":       compress.Codecs.Brotli,
	"zstd":         compress.Codecs.Zstd,
	"lz4":          compress.Codecs.Lz4,
	"none":         compress.Codecs.Uncompressed,
	"uncompressed": compress.Codecs.Uncompressed,
}

type Parquet struct{}

func (*Parquet) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*Parquet) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionCompression, core.OptionCompressionLevel)
}

func openParquet(path string) (*file.Reader, *pqarrow.FileReader, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, nil, core.MarkNotFound(fmt.Errorf("file.OpenParquetFile: %w", err))
	}

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, core.Allocator)
	if err != nil {
		pf.Close()
		return nil, nil, fmt.Errorf("pqarrow.NewFileReader: %w", err)
	}
	return pf, fr, nil
}

func (*Parquet) Read(ctx context.Context, path string, _ *core.ReadOptions) (arrow.Record, error) {
	pf, fr, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("pqarrow.ReadTable: %w", err)
	}
	defer tbl.Release()

	return core.TableToRecord(tbl)
}

// ProbeSchema reads the schema from the file metadata only.
func (*Parquet) ProbeSchema(_ context.Context, path string) (*arrow.Schema, error) {
	pf, fr, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	s, err := fr.Schema()
	if err != nil {
		return nil, fmt.Errorf("pqarrow.Schema: %w", err)
	}
	return s, nil
}

func (p *Parquet) Write(ctx context.Context, rec arrow.Record, path string, opts *core.WriteOptions) error {
	sink, err := p.OpenChunkSink(ctx, path, opts)
	if err != nil {
		return err
	}

	if err := sink.Append(rec); err != nil {
		sink.Abort()
		return err
	}
	return sink.Close()
}

// OpenChunkSink returns a sink that opens the parquet writer with the schema
// of the first appended record. Every append becomes one or more row groups.
func (*Parquet) OpenChunkSink(_ context.Context, path string, opts *core.WriteOptions) (core.ChunkSink, error) {
	if opts == nil {
		opts = &core.WriteOptions{}
	}

	props, err := parquetProperties(opts)
	if err != nil {
		return nil, err
	}

	return &parquetSink{path: path, props: props}, nil
}

func parquetProperties(opts *core.WriteOptions) (*parquet.WriterProperties, error) {
	name := strings.ToLower(opts.Compression)
	if name == "" {
		name = "snappy"
	}
	codec, ok := parquetCodecs[name]
	if !ok {
		return nil, core.InvalidOptionf("unsupported parquet compression %q (supported: snappy, gzip, brotli, zstd, lz4, none)", opts.Compression)
	}

	props := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithAllocator(core.Allocator),
	}
	if opts.CompressionLevel != nil {
		props = append(props, parquet.WithCompressionLevel(*opts.CompressionLevel))
	}
	if opts.ChunkRows > 0 {
		props = append(props, parquet.WithMaxRowGroupLength(int64(opts.ChunkRows)))
	}

	return parquet.NewWriterProperties(props...), nil
}

type parquetSink struct {
	path  string
	props *parquet.WriterProperties

	file   *core.AtomicFile
	w      *pqarrow.FileWriter
	schema *arrow.Schema
}

func (s *parquetSink) Append(rec arrow.Record) error {
	if s.w == nil {
		f, err := core.CreateAtomic(s.path)
		if err != nil {
			return err
		}

		// the writer must not close the file, Commit does
		w, err := pqarrow.NewFileWriter(rec.Schema(), struct{ io.Writer }{f}, s.props,
			pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
		if err != nil {
			f.Abort()
			return fmt.Errorf("pqarrow.NewFileWriter: %w", err)
		}
		s.file, s.w, s.schema = f, w, rec.Schema()
	}

	// later chunks may have been typed differently, the file keeps the first schema
	rec, err := core.ConformRecord(rec, s.schema)
	if err != nil {
		return fmt.Errorf("parquet chunk: %w", err)
	}
	defer rec.Release()

	if err := s.w.Write(rec); err != nil {
		return fmt.Errorf("pqarrow.Write: %w", err)
	}
	return nil
}

func (s *parquetSink) Close() error {
	if s.w == nil {
		return nil
	}

	if err := s.w.Close(); err != nil {
		s.file.Abort()
		return fmt.Errorf("pqarrow.Close: %w", err)
	}
	return s.file.Commit()
}

func (s *parquetSink) Abort() {
	if s.file != nil {
		s.file.Abort()
	}
}
