package convert

import (
	"github.com/daflip/daflip/core"
)

// DefaultSchemaRows is the number of rows sampled by InferSchema.
const DefaultSchemaRows = 10000

// Options configure a single Convert call. Zero values mean "not provided".
type Options struct {
	InputFormat  string
	OutputFormat string

	// Rows is a "start:end" selection applied after loading.
	Rows string

	Compression      string
	CompressionLevel *int

	Sheet        string
	Table        *int
	SASKeepBytes bool

	// InputChunkSize enables chunked conversion when positive.
	InputChunkSize int
	// OutputChunkSize bounds the rows per row group or write batch.
	OutputChunkSize int

	SchemaFile string
}

// SchemaOptions configure an InferSchema call.
type SchemaOptions struct {
	InputFormat string
	// NRows is the number of rows sampled; it must be positive.
	NRows int
	Sheet string
	Table *int
}

// Pipeline lists the transforms a conversion mode applies.
type Pipeline struct {
	RowSelection bool
	Schema       bool
	Normalize    bool
}

var (
	// DirectPipeline loads the whole table and applies every transform.
	DirectPipeline = Pipeline{RowSelection: true, Schema: true, Normalize: true}
	// ChunkedPipeline copies chunks from reader to writer as they are.
	ChunkedPipeline = Pipeline{}
)

func (o *Options) readOptions(s *core.ReadOptions) *core.ReadOptions {
	s.Sheet = o.Sheet
	s.Table = o.Table
	s.SASKeepBytes = o.SASKeepBytes
	return s
}

func (o *Options) writeOptions() *core.WriteOptions {
	return &core.WriteOptions{
		Compression:      o.Compression,
		CompressionLevel: o.CompressionLevel,
		Sheet:            o.Sheet,
		ChunkRows:        o.OutputChunkSize,
	}
}

// requestedReadOptions lists the read side options the caller provided.
func (o *Options) requestedReadOptions() []core.Option {
	var opts []core.Option
	if o.SchemaFile != "" {
		opts = append(opts, core.OptionSchema)
	}
	if o.Sheet != "" {
		opts = append(opts, core.OptionSheet)
	}
	if o.Table != nil {
		opts = append(opts, core.OptionTable)
	}
	if o.SASKeepBytes {
		opts = append(opts, core.OptionSASKeepBytes)
	}
	return opts
}

// requestedWriteOptions lists the write side options the caller provided.
func (o *Options) requestedWriteOptions() []core.Option {
	var opts []core.Option
	if o.Compression != "" {
		opts = append(opts, core.OptionCompression)
	}
	if o.CompressionLevel != nil {
		opts = append(opts, core.OptionCompressionLevel)
	}
	if o.Sheet != "" {
		opts = append(opts, core.OptionSheet)
	}
	return opts
}
