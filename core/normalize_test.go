package core_test

import (
	"math"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/mock"
)

func TestNormalize(t *testing.T) {
	r := require.New(t)

	rec := mock.NewRecord(
		mock.Column{Name: "whole", Type: arrow.PrimitiveTypes.Float64, Values: []any{1.0, nil, 3.0}},
		mock.Column{Name: "frac", Type: arrow.PrimitiveTypes.Float64, Values: []any{1.5, 2.0, nil}},
		mock.Column{Name: "empty", Type: arrow.PrimitiveTypes.Float64, Values: []any{nil, nil, nil}},
		mock.Column{Name: "nan", Type: arrow.PrimitiveTypes.Float32, Values: []any{math.NaN(), 4.0, 5.0}},
		mock.Column{Name: "big", Type: arrow.PrimitiveTypes.Float64, Values: []any{1e300, 1.0, 2.0}},
		mock.Column{Name: "text", Type: arrow.BinaryTypes.LargeString, Values: []any{"a", nil, "c"}},
		mock.Column{Name: "ints", Type: arrow.PrimitiveTypes.Int32, Values: []any{1, 2, 3}},
	)
	defer rec.Release()

	out, err := core.Normalize(rec)
	r.NoError(err)
	defer out.Release()

	r.Equal([]arrow.DataType{
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Float64,
		arrow.PrimitiveTypes.Float64,
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Float64,
		arrow.BinaryTypes.String,
		arrow.PrimitiveTypes.Int32,
	}, mock.Types(out))

	r.Equal(rec.NumRows(), out.NumRows())
	r.Equal([]any{int64(1), nil, int64(3)}, mock.ColumnValues(out, "whole"))
	r.Equal([]any{nil, int64(4), int64(5)}, mock.ColumnValues(out, "nan"))
	r.Equal([]any{"a", nil, "c"}, mock.ColumnValues(out, "text"))
	for _, f := range out.Schema().Fields() {
		r.True(f.Nullable, f.Name)
	}
}

func TestNormalize_Dictionary(t *testing.T) {
	r := require.New(t)

	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int8, ValueType: arrow.BinaryTypes.String}
	b := array.NewDictionaryBuilder(core.Allocator, dt).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	r.NoError(b.AppendString("x"))
	r.NoError(b.AppendString("y"))
	b.AppendNull()
	r.NoError(b.AppendString("x"))
	col := b.NewArray()
	defer col.Release()

	rec := array.NewRecord(arrow.NewSchema([]arrow.Field{{Name: "d", Type: dt, Nullable: true}}, nil), []arrow.Array{col}, 4)
	defer rec.Release()

	out, err := core.Normalize(rec)
	r.NoError(err)
	defer out.Release()

	r.Equal(arrow.BinaryTypes.String, out.Schema().Field(0).Type)
	r.Equal([]any{"x", "y", nil, "x"}, mock.ColumnValues(out, "d"))
}

func TestNormalize_NullType(t *testing.T) {
	r := require.New(t)

	col := array.NewNull(2)
	defer col.Release()

	rec := array.NewRecord(arrow.NewSchema([]arrow.Field{{Name: "n", Type: arrow.Null, Nullable: true}}, nil), []arrow.Array{col}, 2)
	defer rec.Release()

	out, err := core.Normalize(rec)
	r.NoError(err)
	defer out.Release()

	r.Equal(arrow.BinaryTypes.String, out.Schema().Field(0).Type)
	r.Equal([]any{nil, nil}, mock.ColumnValues(out, "n"))
}
