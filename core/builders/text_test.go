package builders_test

import (
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/core/builders"
	"github.com/daflip/daflip/core/mock"
)

func TestTextTable_Names(t *testing.T) {
	r := require.New(t)

	table := builders.NewTextTable([]string{"a", "", "a", "a", "a.1", "b"})
	r.Equal([]string{"a", "Unnamed: 1", "a.1", "a.2", "a.1.1", "b"}, table.Names())
	r.Equal(6, table.Width())
}

func TestTextTable_Sniff(t *testing.T) {
	r := require.New(t)

	rows := [][]string{
		{"1", "1.5", "true", "x", "", "1"},
		{"2", "2", "False", "7", "NA", "1.0"},
		{"", "nan", "", "y", "", "abc"},
	}

	table := builders.NewTextTable([]string{"int", "float", "bool", "text", "empty", "mixed"})
	table.Sniff(rows)

	rec, err := table.Build(rows, 2)
	r.NoError(err)
	defer rec.Release()

	r.Equal([]arrow.DataType{
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Float64,
		arrow.FixedWidthTypes.Boolean,
		arrow.BinaryTypes.String,
		arrow.BinaryTypes.String,
		arrow.BinaryTypes.String,
	}, mock.Types(rec))

	r.Equal([][]any{
		{int64(1), 1.5, true, "x", nil, "1"},
		{int64(2), 2.0, false, "7", nil, "1.0"},
		{nil, nil, nil, "y", nil, "abc"},
	}, mock.Rows(rec))
}

func TestTextTable_Build_Ragged(t *testing.T) {
	r := require.New(t)

	table := builders.NewTextTable([]string{"a", "b"}, builders.TextWithThousands(","))
	table.Sniff([][]string{{"1,000", "x"}})

	rec, err := table.Build([][]string{{"1,000", "x"}, {"2"}}, 2)
	r.NoError(err)
	defer rec.Release()
	r.Equal([][]any{{int64(1000), "x"}, {int64(2), nil}}, mock.Rows(rec))

	_, err = table.Build([][]string{{"1", "x"}, {"1", "2", "3"}}, 2)
	r.EqualError(err, "line 3: expected 2 fields, saw 3")
}

func TestTextTable_NullValues(t *testing.T) {
	r := require.New(t)

	table := builders.NewTextTable([]string{"a"}, builders.TextWithNullValues("-"))
	rows := [][]string{{"-"}, {"NA"}}
	table.Sniff(rows)

	rec, err := table.Build(rows, 1)
	r.NoError(err)
	defer rec.Release()

	r.Equal([]any{nil, "NA"}, mock.ColumnValues(rec, "a"))
}

func TestTextTable_Widen(t *testing.T) {
	r := require.New(t)

	table := builders.NewTextTable([]string{"int", "float", "bool", "sparse", "text", "late"})
	table.Sniff([][]string{{"1", "1.5", "true", "5", "x", ""}})

	// missing cells keep the types of the first sample
	table.Widen([][]string{{"", "", "", "", "", ""}})
	r.Equal([]arrow.DataType{
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Float64,
		arrow.FixedWidthTypes.Boolean,
		arrow.PrimitiveTypes.Int64,
		arrow.BinaryTypes.String,
		arrow.BinaryTypes.String,
	}, mock.SchemaTypes(table.Schema()))

	rows := [][]string{{"2.5", "3", "maybe", "", "7", "1"}}
	table.Widen(rows)
	r.Equal([]arrow.DataType{
		arrow.PrimitiveTypes.Float64,
		arrow.PrimitiveTypes.Float64,
		arrow.BinaryTypes.String,
		arrow.PrimitiveTypes.Int64,
		arrow.BinaryTypes.String,
		arrow.BinaryTypes.String,
	}, mock.SchemaTypes(table.Schema()))

	rec, err := table.Build(rows, 3)
	r.NoError(err)
	defer rec.Release()
	r.Equal([][]any{{2.5, 3.0, "maybe", nil, "7", "1"}}, mock.Rows(rec))
}
