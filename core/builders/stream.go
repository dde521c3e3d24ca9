package builders

import (
	"errors"
	"sync"

	"github.com/apache/arrow/go/v15/arrow"

	"github.com/daflip/daflip/core"
)

var _ core.ChunkStream = (*Stream)(nil)

// Stream fills the core.ChunkStream interface from iterator functions.
type Stream struct {
	next    func() (arrow.Record, error)
	hasNext func() bool
	close   func()
	schema  *arrow.Schema
	once    sync.Once
}

func (s *Stream) Schema() *arrow.Schema {
	return s.schema
}

func (s *Stream) HasNext() bool {
	return s.hasNext()
}

func (s *Stream) Next() (arrow.Record, error) {
	rec, err := s.next()
	if err != nil || rec == nil {
		s.Close()
		return nil, err
	}
	if s.schema == nil {
		s.schema = rec.Schema()
	}
	return rec, nil
}

// Close releases the underlying source. It is safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(s.close)
	s.hasNext = func() bool {
		return false
	}
}

// StreamBuilder builds a Stream.
type StreamBuilder struct {
	next    func() (arrow.Record, error)
	hasNext func() bool
	close   func()
	schema  *arrow.Schema
}

func NewStreamBuilder() *StreamBuilder {
	return &StreamBuilder{
		next:    func() (arrow.Record, error) { return nil, errors.New("no next record") },
		hasNext: func() bool { return false },
		close:   func() {},
	}
}

func (b *StreamBuilder) WithNextFunc(fn func() (arrow.Record, error), has func() bool) *StreamBuilder {
	b.next = fn
	b.hasNext = has
	return b
}

func (b *StreamBuilder) WithSchema(schema *arrow.Schema) *StreamBuilder {
	b.schema = schema
	return b
}

func (b *StreamBuilder) WithCloseFunc(fn func()) *StreamBuilder {
	b.close = fn
	return b
}

func (b *StreamBuilder) Build() *Stream {
	return &Stream{
		next:    b.next,
		hasNext: b.hasNext,
		close:   b.close,
		schema:  b.schema,
	}
}
