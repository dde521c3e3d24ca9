package builders_test

import (
	"errors"
	"io"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/core/builders"
	"github.com/daflip/daflip/core/mock"
)

func TestStream_NextRecords(t *testing.T) {
	r := require.New(t)

	chunks := []arrow.Record{mock.NewRows(0, 2), mock.NewRows(2, 4)}

	closed := 0
	stream := builders.NewStreamBuilder().
		WithNextFunc(builders.NextRecords(chunks)).
		WithCloseFunc(func() { closed++ }).
		Build()

	var rows [][]any
	for stream.HasNext() {
		rec, err := stream.Next()
		r.NoError(err)
		rows = append(rows, mock.Rows(rec)...)
		rec.Release()
	}

	r.Equal(mock.Rows(mock.NewRows(0, 4)), rows)
	r.Equal(chunks[0].Schema(), stream.Schema())

	stream.Close()
	stream.Close()
	r.Equal(1, closed)
	r.False(stream.HasNext())
}

func TestStream_NextPull(t *testing.T) {
	r := require.New(t)

	boom := errors.New("boom")
	pulls := []func() (arrow.Record, error){
		func() (arrow.Record, error) { return mock.NewRows(0, 3), nil },
		func() (arrow.Record, error) { return nil, boom },
	}
	index := 0

	closed := false
	stream := builders.NewStreamBuilder().
		WithNextFunc(builders.NextPull(func() (arrow.Record, error) {
			if index == len(pulls) {
				return nil, io.EOF
			}
			index++
			return pulls[index-1]()
		})).
		WithCloseFunc(func() { closed = true }).
		Build()

	r.Nil(stream.Schema())

	r.True(stream.HasNext())
	rec, err := stream.Next()
	r.NoError(err)
	r.EqualValues(3, rec.NumRows())
	r.Equal(rec.Schema(), stream.Schema())
	rec.Release()

	// the error is surfaced by the following call
	r.True(stream.HasNext())
	_, err = stream.Next()
	r.ErrorIs(err, boom)

	r.True(closed)
	r.False(stream.HasNext())
}

func TestNextPull_EOF(t *testing.T) {
	r := require.New(t)

	next, hasNext := builders.NextPull(func() (arrow.Record, error) {
		return nil, io.EOF
	})

	r.False(hasNext())
	_, err := next()
	r.Error(err)
}
