package mock

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/builders"
)

var (
	_ core.ChunkReader  = (*Driver)(nil)
	_ core.ChunkWriter  = (*Driver)(nil)
	_ core.SchemaProber = (*Driver)(nil)
)

// Driver is an in-memory format driver. Reads return the record it was created
// with; writes are collected and can be inspected afterwards.
type Driver struct {
	rec    arrow.Record
	config *driverConfig

	// Written holds every record passed to Write or appended to a sink.
	Written []arrow.Record
	// Paths holds the destination of every Write and opened sink.
	Paths []string
	// SinkClosed counts sinks that were closed after at least one append.
	SinkClosed int
	// LastReadOptions is the option set of the latest read.
	LastReadOptions *core.ReadOptions
}

// NewDriver returns a driver serving rec.
func NewDriver(rec arrow.Record, opts ...DriverOption) *Driver {
	config := &driverConfig{
		readOptions:  core.NewOptionSet(),
		writeOptions: core.NewOptionSet(),
		readPartial:  -1,
	}
	for _, opt := range opts {
		opt(config)
	}

	return &Driver{
		rec:    rec,
		config: config,
	}
}

func (d *Driver) AcceptedReadOptions() core.OptionSet {
	return d.config.readOptions
}

func (d *Driver) AcceptedWriteOptions() core.OptionSet {
	return d.config.writeOptions
}

func (d *Driver) Read(_ context.Context, _ string, opts *core.ReadOptions) (arrow.Record, error) {
	d.LastReadOptions = opts
	if d.config.readErr != nil {
		return nil, d.config.readErr
	}

	rec := d.rec
	if opts != nil && opts.MaxRows > 0 && int64(opts.MaxRows) < rec.NumRows() {
		return rec.NewSlice(0, int64(opts.MaxRows)), nil
	}
	rec.Retain()
	return rec, nil
}

func (d *Driver) ReadChunks(_ context.Context, _ string, chunkSize int, opts *core.ReadOptions) (core.ChunkStream, error) {
	d.LastReadOptions = opts
	if d.config.readErr != nil {
		return nil, d.config.readErr
	}

	var chunks []arrow.Record
	for from := int64(0); from < d.rec.NumRows(); from += int64(chunkSize) {
		to := min(from+int64(chunkSize), d.rec.NumRows())
		chunks = append(chunks, d.rec.NewSlice(from, to))
	}

	next, hasNext := builders.NextRecords(chunks)
	if d.config.readPartial >= 0 {
		served := 0
		inner := next
		next = func() (arrow.Record, error) {
			if served == d.config.readPartial {
				return nil, fmt.Errorf("mock chunk %d: %w", served, d.config.chunkErr)
			}
			served++
			return inner()
		}
	}

	return builders.NewStreamBuilder().
		WithNextFunc(next, hasNext).
		WithSchema(d.rec.Schema()).
		WithCloseFunc(func() {
			for _, c := range chunks {
				c.Release()
			}
		}).
		Build(), nil
}

func (d *Driver) ProbeSchema(_ context.Context, _ string) (*arrow.Schema, error) {
	if d.config.readErr != nil {
		return nil, d.config.readErr
	}
	return d.rec.Schema(), nil
}

func (d *Driver) Write(_ context.Context, rec arrow.Record, path string, _ *core.WriteOptions) error {
	if d.config.writeErr != nil {
		return d.config.writeErr
	}

	rec.Retain()
	d.Written = append(d.Written, rec)
	d.Paths = append(d.Paths, path)
	return nil
}

func (d *Driver) OpenChunkSink(_ context.Context, path string, _ *core.WriteOptions) (core.ChunkSink, error) {
	return &sink{driver: d, path: path}, nil
}

type sink struct {
	driver   *Driver
	path     string
	appended bool
}

func (s *sink) Append(rec arrow.Record) error {
	if s.driver.config.writeErr != nil {
		return s.driver.config.writeErr
	}
	if !s.appended {
		s.driver.Paths = append(s.driver.Paths, s.path)
	}
	s.appended = true

	rec.Retain()
	s.driver.Written = append(s.driver.Written, rec)
	return nil
}

func (s *sink) Close() error {
	if s.appended {
		s.driver.SinkClosed++
	}
	return nil
}

func (s *sink) Abort() {}

// Registry maps format tags to drivers.
type Registry map[core.Format]core.Driver

func (r Registry) Reader(f core.Format) (core.Reader, error) {
	d, ok := r[f].(core.Reader)
	if !ok {
		return nil, core.UnsupportedInputFormat(f)
	}
	return d, nil
}

func (r Registry) Writer(f core.Format) (core.Writer, error) {
	d, ok := r[f].(core.Writer)
	if !ok {
		return nil, core.UnsupportedOutputFormat(f)
	}
	return d, nil
}
