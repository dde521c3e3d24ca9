package formats

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/ipc"

	"github.com/daflip/daflip/core"
)

// Register driver
func init() {
	_ = register(&Feather{}, core.FormatFeather, "arrow", "ipc")
}

var (
	_ core.Reader       = (*Feather)(nil)
	_ core.Writer       = (*Feather)(nil)
	_ core.SchemaProber = (*Feather)(nil)
)

// Feather reads and writes Arrow IPC files (feather version 2).
type Feather struct{}

func (*Feather) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*Feather) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionCompression)
}

func openFeather(path string) (*os.File, *ipc.FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, core.MarkNotFound(err)
	}

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(core.Allocator))
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ipc.NewFileReader: %w", err)
	}
	return f, r, nil
}

func (*Feather) Read(_ context.Context, path string, _ *core.ReadOptions) (arrow.Record, error) {
	f, r, err := openFeather(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer r.Close()

	recs := make([]arrow.Record, 0, r.NumRecords())
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("ipc.Record %d: %w", i, err)
		}
		rec.Retain()
		recs = append(recs, rec)
	}

	return core.ConcatRecords(r.Schema(), recs)
}

func (*Feather) ProbeSchema(_ context.Context, path string) (*arrow.Schema, error) {
	f, r, err := openFeather(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer r.Close()

	return r.Schema(), nil
}

func (*Feather) Write(_ context.Context, rec arrow.Record, path string, opts *core.WriteOptions) error {
	options := []ipc.Option{ipc.WithSchema(rec.Schema()), ipc.WithAllocator(core.Allocator)}

	name := ""
	if opts != nil {
		name = strings.ToLower(opts.Compression)
	}
	switch name {
	case "", "lz4":
		options = append(options, ipc.WithLZ4())
	case "zstd":
		options = append(options, ipc.WithZstd())
	case "none", "uncompressed":
	default:
		return core.InvalidOptionf("unsupported feather compression %q (supported: lz4, zstd, none)", opts.Compression)
	}

	f, err := core.CreateAtomic(path)
	if err != nil {
		return err
	}

	w, err := ipc.NewFileWriter(f, options...)
	if err != nil {
		f.Abort()
		return fmt.Errorf("ipc.NewFileWriter: %w", err)
	}
	if err := w.Write(rec); err != nil {
		f.Abort()
		return fmt.Errorf("ipc.Write: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Abort()
		return fmt.Errorf("ipc.Close: %w", err)
	}

	return f.Commit()
}
