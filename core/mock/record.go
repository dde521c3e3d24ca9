package mock

import (
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"

	"github.com/daflip/daflip/core"
)

// Column describes a column of a mocked record. Values are appended with
// core.AppendValue, so nil is a null and plain ints are accepted for integer
// and float columns.
type Column struct {
	Name   string
	Type   arrow.DataType
	Values []any
}

// NewRecord builds a record from columns. It panics on inconsistent input,
// which is a bug in the test using it.
func NewRecord(cols ...Column) arrow.Record {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.Name, Type: c.Type, Nullable: true}
	}

	b := array.NewRecordBuilder(core.Allocator, arrow.NewSchema(fields, nil))
	defer b.Release()

	rows := -1
	for i, c := range cols {
		if rows >= 0 && len(c.Values) != rows {
			panic(fmt.Sprintf("mock column %q has %d values, expected %d", c.Name, len(c.Values), rows))
		}
		rows = len(c.Values)

		for _, v := range c.Values {
			if err := core.AppendValue(b.Field(i), v); err != nil {
				panic(fmt.Sprintf("mock column %q: %s", c.Name, err))
			}
		}
	}

	return b.NewRecord()
}

// NewRows returns a record in form of:
//
//	{ id: <index>(int64), name: "row_<index>"(string) }
//
// where the first index is "from" and the last one is one less than "to".
func NewRows(from, to int) arrow.Record {
	ids := make([]any, 0, to-from)
	names := make([]any, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, i)
		names = append(names, fmt.Sprintf("row_%d", i))
	}

	return NewRecord(
		Column{Name: "id", Type: arrow.PrimitiveTypes.Int64, Values: ids},
		Column{Name: "name", Type: arrow.BinaryTypes.String, Values: names},
	)
}

// Rows extracts the values of a record row by row, as returned by core.Value.
func Rows(rec arrow.Record) [][]any {
	out := make([][]any, rec.NumRows())
	for i := range out {
		row := make([]any, rec.NumCols())
		for j, col := range rec.Columns() {
			row[j] = core.Value(col, i)
		}
		out[i] = row
	}
	return out
}

// ColumnValues extracts the values of a single column.
func ColumnValues(rec arrow.Record, name string) []any {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		panic(fmt.Sprintf("mock: no column %q", name))
	}

	col := rec.Column(idx[0])
	out := make([]any, col.Len())
	for i := range out {
		out[i] = core.Value(col, i)
	}
	return out
}

// Types returns the type of every column in order.
func Types(rec arrow.Record) []arrow.DataType {
	return SchemaTypes(rec.Schema())
}

// SchemaTypes returns the type of every field in order.
func SchemaTypes(schema *arrow.Schema) []arrow.DataType {
	out := make([]arrow.DataType, schema.NumFields())
	for i, f := range schema.Fields() {
		out[i] = f.Type
	}
	return out
}
