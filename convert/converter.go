package convert

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/cockroachdb/errors"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/schema"
)

// Registry resolves format tags to drivers.
type Registry interface {
	Reader(core.Format) (core.Reader, error)
	Writer(core.Format) (core.Writer, error)
}

// Converter runs conversions and schema inference against a registry of
// format drivers.
type Converter struct {
	registry Registry
	log      core.Logger
	config   *converterConfig
}

// New creates a converter. Without a reporter failures are not previewed.
func New(registry Registry, logger core.Logger, opts ...Option) *Converter {
	config := &converterConfig{
		previewRows: 5,
	}
	for _, opt := range opts {
		opt(config)
	}

	return &Converter{
		registry: registry,
		log:      logger,
		config:   config,
	}
}

func (c *Converter) emit(state State) {
	c.log.Debugf("conversion state: %s", state)
	if c.config.onEvent != nil {
		c.config.onEvent(state)
	}
}

// Convert reads in, applies row selection, schema and normalization, and
// writes out. With a positive input chunk size the file is copied chunk by
// chunk instead, without any transforms.
func (c *Converter) Convert(ctx context.Context, in, out string, opts *Options) (err error) {
	if opts == nil {
		opts = &Options{}
	}

	// the loaded table, previewed if something fails after loading
	var loaded arrow.Record
	defer func() {
		if err != nil {
			c.emit(StateFailed)
			if loaded != nil && c.config.reporter != nil {
				c.config.reporter.Preview(loaded, c.config.previewRows)
			}
		}
		if loaded != nil {
			loaded.Release()
		}
	}()

	c.emit(StateResolve)

	if opts.InputChunkSize < 0 || opts.OutputChunkSize < 0 {
		return core.InvalidOptionf("chunk sizes must not be negative")
	}

	inFormat := core.ResolveFormat(in, opts.InputFormat)
	outFormat := core.ResolveFormat(out, opts.OutputFormat)

	reader, err := c.registry.Reader(inFormat)
	if err != nil {
		return err
	}
	writer, err := c.registry.Writer(outFormat)
	if err != nil {
		return err
	}
	c.log.Debugf("converting %s (%s) to %s (%s)", in, inFormat, out, outFormat)

	c.warnIgnored(reader, writer, opts)

	chunked := opts.InputChunkSize > 0

	readOpts := opts.readOptions(&core.ReadOptions{})
	if opts.SchemaFile != "" && !chunked {
		c.emit(StateSchemaLoad)

		s, err := schema.Load(opts.SchemaFile)
		if err != nil {
			return errors.Wrapf(err, "load schema %s", opts.SchemaFile)
		}
		readOpts.Schema = s
	}

	c.emit(StateValidateChunking)

	pipeline := DirectPipeline
	if chunked {
		pipeline = ChunkedPipeline
	}
	if err := validateChunking(reader, writer, inFormat, outFormat, opts, pipeline); err != nil {
		return err
	}

	if chunked {
		c.emit(StateChunked)
		if err := c.convertChunks(ctx, reader.(core.ChunkReader), writer.(core.ChunkWriter), in, out, opts, readOpts); err != nil {
			return err
		}
		c.emit(StateDone)
		return nil
	}

	c.emit(StateDirect)

	loaded, err = reader.Read(ctx, in, readOpts)
	if err != nil {
		return errors.Wrapf(err, "read %s", in)
	}
	c.log.Debugf("loaded %d rows and %d columns", loaded.NumRows(), loaded.NumCols())

	rec, err := transform(loaded, opts, pipeline, c.log)
	if err != nil {
		return err
	}
	defer rec.Release()

	if err := writer.Write(ctx, rec, out, opts.writeOptions()); err != nil {
		return errors.Wrapf(err, "write %s", out)
	}

	c.emit(StateDone)
	return nil
}

// validateChunking checks that the requested chunking is possible before any
// file is touched.
func validateChunking(reader core.Reader, writer core.Writer, inFormat, outFormat core.Format, opts *Options, pipeline Pipeline) error {
	if opts.InputChunkSize > 0 {
		if _, ok := reader.(core.ChunkReader); !ok {
			return core.NotImplementedf("chunking not supported for format %s", inFormat)
		}
		if _, ok := writer.(core.ChunkWriter); !ok {
			return core.NotImplementedf("chunking not supported for format %s", outFormat)
		}
		if opts.Rows != "" && !pipeline.RowSelection {
			return core.NotImplementedf("row selection is not supported in chunked mode")
		}
		if opts.SchemaFile != "" && !pipeline.Schema {
			return core.NotImplementedf("schema files are not supported in chunked mode")
		}
		return nil
	}

	if opts.OutputChunkSize > 0 {
		if _, ok := writer.(core.ChunkWriter); !ok {
			return core.NotImplementedf("chunking not supported for format %s", outFormat)
		}
	}
	return nil
}

// transform applies the direct pipeline. The result is owned by the caller.
func transform(rec arrow.Record, opts *Options, pipeline Pipeline, log core.Logger) (arrow.Record, error) {
	rec.Retain()

	if pipeline.RowSelection {
		selected := core.SelectRows(rec, opts.Rows, log)
		rec.Release()
		rec = selected
	}

	if pipeline.Normalize {
		normalized, err := core.Normalize(rec)
		rec.Release()
		if err != nil {
			return nil, errors.Wrap(err, "normalize")
		}
		rec = normalized
	}

	return rec, nil
}

func (c *Converter) convertChunks(ctx context.Context, reader core.ChunkReader, writer core.ChunkWriter, in, out string, opts *Options, readOpts *core.ReadOptions) error {
	stream, err := reader.ReadChunks(ctx, in, opts.InputChunkSize, readOpts)
	if err != nil {
		return errors.Wrapf(err, "read %s", in)
	}
	defer stream.Close()

	sink, err := writer.OpenChunkSink(ctx, out, opts.writeOptions())
	if err != nil {
		return errors.Wrapf(err, "write %s", out)
	}

	chunks := 0
	for stream.HasNext() {
		rec, err := stream.Next()
		if err != nil {
			sink.Abort()
			return errors.Wrapf(err, "read %s: chunk %d", in, chunks)
		}

		err = sink.Append(rec)
		rec.Release()
		if err != nil {
			sink.Abort()
			return errors.Wrapf(err, "write %s: chunk %d", out, chunks)
		}
		chunks++
	}

	if err := sink.Close(); err != nil {
		return errors.Wrapf(err, "write %s", out)
	}

	if chunks == 0 {
		c.log.Warnf("%s is empty, nothing written to %s", in, out)
	} else {
		c.log.Debugf("copied %d chunks", chunks)
	}
	return nil
}

// warnIgnored logs every provided option that neither the reader nor the
// writer honours.
func (c *Converter) warnIgnored(reader core.Reader, writer core.Writer, opts *Options) {
	read := core.NewOptionSet(opts.requestedReadOptions()...)
	write := core.NewOptionSet(opts.requestedWriteOptions()...)

	var order []core.Option
	order = append(order, opts.requestedReadOptions()...)
	for _, o := range opts.requestedWriteOptions() {
		if !read.Has(o) {
			order = append(order, o)
		}
	}

	for _, o := range order {
		if read.Has(o) && reader.AcceptedReadOptions().Has(o) {
			continue
		}
		if write.Has(o) && writer.AcceptedWriteOptions().Has(o) {
			continue
		}
		c.log.Warnf("option %q is not supported for this conversion and is ignored", o)
	}
}

// InferSchema samples in and exports its field names and types to out.
func (c *Converter) InferSchema(ctx context.Context, in, out string, opts *SchemaOptions) error {
	if opts == nil {
		opts = &SchemaOptions{NRows: DefaultSchemaRows}
	}
	if opts.NRows <= 0 {
		return core.InvalidOptionf("nrows must be greater than 0, got %d", opts.NRows)
	}

	format := core.ResolveFormat(in, opts.InputFormat)
	reader, err := c.registry.Reader(format)
	if err != nil {
		return err
	}

	s, err := c.sampleSchema(ctx, reader, in, opts)
	if err != nil {
		return err
	}

	if err := schema.Export(s, out); err != nil {
		return errors.Wrapf(err, "export schema to %s", out)
	}
	return nil
}

func (c *Converter) sampleSchema(ctx context.Context, reader core.Reader, in string, opts *SchemaOptions) (*arrow.Schema, error) {
	if prober, ok := reader.(core.SchemaProber); ok {
		s, err := prober.ProbeSchema(ctx, in)
		if err != nil {
			return nil, errors.Wrapf(err, "read schema of %s", in)
		}
		return s, nil
	}

	readOpts := &core.ReadOptions{
		Sheet:   opts.Sheet,
		Table:   opts.Table,
		MaxRows: opts.NRows,
	}

	var sample arrow.Record
	if chunkReader, ok := reader.(core.ChunkReader); ok {
		rec, err := firstChunk(ctx, chunkReader, in, opts.NRows, readOpts)
		if err != nil {
			return nil, err
		}
		sample = rec
	}

	if sample == nil {
		rec, err := reader.Read(ctx, in, readOpts)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", in)
		}
		sample = rec
	}
	defer sample.Release()

	c.log.Debugf("sampled %d rows of %s", sample.NumRows(), in)

	normalized, err := core.Normalize(sample)
	if err != nil {
		return nil, errors.Wrap(err, "normalize")
	}
	defer normalized.Release()

	return normalized.Schema(), nil
}

// firstChunk returns the first chunk of the stream or nil if it is empty.
func firstChunk(ctx context.Context, reader core.ChunkReader, in string, rows int, opts *core.ReadOptions) (arrow.Record, error) {
	stream, err := reader.ReadChunks(ctx, in, rows, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", in)
	}
	defer stream.Close()

	if !stream.HasNext() {
		return nil, nil
	}

	rec, err := stream.Next()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", in, err)
	}
	return rec, nil
}
