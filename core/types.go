package core

import (
	"context"

	"github.com/apache/arrow/go/v15/arrow"
)

// Option names a user-facing conversion option a driver may honour.
type Option string

const (
	OptionSchema           Option = "schema"
	OptionSheet            Option = "sheet-name"
	OptionTable            Option = "table-number"
	OptionSASKeepBytes     Option = "sas-keep-bytes"
	OptionCompression      Option = "compression"
	OptionCompressionLevel Option = "compression-level"
)

// OptionSet is the set of options a driver accepts.
type OptionSet map[Option]struct{}

// NewOptionSet builds a set from the provided options.
func NewOptionSet(opts ...Option) OptionSet {
	set := make(OptionSet, len(opts))
	for _, o := range opts {
		set[o] = struct{}{}
	}
	return set
}

// Has reports whether o is part of the set.
func (s OptionSet) Has(o Option) bool {
	_, ok := s[o]
	return ok
}

type (
	// ReadOptions are passed to readers. Zero values mean "not provided".
	ReadOptions struct {
		// Schema guides typed parsing of delimited text.
		Schema *arrow.Schema
		// Sheet selects a spreadsheet sheet by name.
		Sheet string
		// Table selects an html table by zero-based index.
		Table *int
		// SASKeepBytes keeps sas7bdat string columns as raw bytes.
		SASKeepBytes bool
		// MaxRows bounds how many rows are loaded (schema inference sampling).
		MaxRows int
	}

	// WriteOptions are passed to writers. Zero values mean "not provided".
	WriteOptions struct {
		Compression      string
		CompressionLevel *int
		Sheet            string
		// ChunkRows bounds rows per row group or write batch in chunk sinks and
		// row-group aware writers.
		ChunkRows int
	}
)

type (
	// Driver is the common part of every registered format implementation.
	Driver interface {
		// AcceptedReadOptions lists the options honoured when reading.
		AcceptedReadOptions() OptionSet
		// AcceptedWriteOptions lists the options honoured when writing.
		AcceptedWriteOptions() OptionSet
	}

	// Reader loads a whole file into a single record.
	Reader interface {
		Driver
		Read(ctx context.Context, path string, opts *ReadOptions) (arrow.Record, error)
	}

	// ChunkReader loads a file lazily as a stream of records of at most
	// chunkSize rows.
	ChunkReader interface {
		Reader
		ReadChunks(ctx context.Context, path string, chunkSize int, opts *ReadOptions) (ChunkStream, error)
	}

	// SchemaProber reads a schema from file metadata without loading rows.
	SchemaProber interface {
		ProbeSchema(ctx context.Context, path string) (*arrow.Schema, error)
	}

	// Writer persists a whole record, replacing the destination.
	Writer interface {
		Driver
		Write(ctx context.Context, rec arrow.Record, path string, opts *WriteOptions) error
	}

	// ChunkWriter persists a sequence of records appended one by one.
	ChunkWriter interface {
		Writer
		OpenChunkSink(ctx context.Context, path string, opts *WriteOptions) (ChunkSink, error)
	}
)

type (
	// ChunkStream is a forward-only, non-restartable sequence of records.
	// Records returned by Next are owned by the caller.
	ChunkStream interface {
		// Schema returns the schema of the records, or nil if it is not known
		// before the first record.
		Schema() *arrow.Schema
		Next() (arrow.Record, error)
		HasNext() bool
		Close()
	}

	// ChunkSink receives records in order. Nothing is written to the
	// destination before the first Append; Close finalizes the output only if
	// something was appended.
	ChunkSink interface {
		Append(rec arrow.Record) error
		Close() error
		// Abort discards everything written so far.
		Abort()
	}
)
