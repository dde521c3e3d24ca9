package core_test

import (
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/mock"
)

func TestConformRecord(t *testing.T) {
	r := require.New(t)

	target := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	testCases := []struct {
		name     string
		rec      arrow.Record
		expected [][]any
		err      string
	}{
		{
			name: "same types",
			rec: mock.NewRecord(
				mock.Column{Name: "id", Type: arrow.PrimitiveTypes.Int64, Values: []any{1}},
				mock.Column{Name: "x", Type: arrow.PrimitiveTypes.Float64, Values: []any{0.5}},
			),
			expected: [][]any{{int64(1), 0.5}},
		},
		{
			name: "integers widen to float",
			rec: mock.NewRecord(
				mock.Column{Name: "id", Type: arrow.PrimitiveTypes.Int64, Values: []any{1, 2}},
				mock.Column{Name: "x", Type: arrow.PrimitiveTypes.Int64, Values: []any{3, nil}},
			),
			expected: [][]any{{int64(1), 3.0}, {int64(2), nil}},
		},
		{
			name: "integral floats narrow to integers",
			rec: mock.NewRecord(
				mock.Column{Name: "id", Type: arrow.PrimitiveTypes.Float64, Values: []any{4.0}},
				mock.Column{Name: "x", Type: arrow.PrimitiveTypes.Float64, Values: []any{1.5}},
			),
			expected: [][]any{{int64(4), 1.5}},
		},
		{
			name: "fractional values do not fit",
			rec: mock.NewRecord(
				mock.Column{Name: "id", Type: arrow.PrimitiveTypes.Float64, Values: []any{4.5}},
				mock.Column{Name: "x", Type: arrow.PrimitiveTypes.Float64, Values: []any{1.5}},
			),
			err: `column "id": float64 does not fit int64`,
		},
		{
			name: "text does not fit",
			rec: mock.NewRecord(
				mock.Column{Name: "id", Type: arrow.PrimitiveTypes.Int64, Values: []any{1}},
				mock.Column{Name: "x", Type: arrow.BinaryTypes.String, Values: []any{"n/a"}},
			),
			err: `column "x": utf8 does not fit float64`,
		},
		{
			name: "column count",
			rec: mock.NewRecord(
				mock.Column{Name: "id", Type: arrow.PrimitiveTypes.Int64, Values: []any{1}},
			),
			err: "record has 1 columns, expected 2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			defer tc.rec.Release()

			got, err := core.ConformRecord(tc.rec, target)
			if tc.err != "" {
				r.ErrorContains(err, tc.err)
				return
			}
			r.NoError(err)
			defer got.Release()

			r.True(got.Schema().Equal(target))
			r.Equal(tc.expected, mock.Rows(got))
		})
	}
}
