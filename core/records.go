package core

import (
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
)

// Allocator is used for every buffer built by readers and transforms.
var Allocator memory.Allocator = memory.DefaultAllocator

// EmptyRecord returns a zero-row record with the given schema.
func EmptyRecord(schema *arrow.Schema) arrow.Record {
	b := array.NewRecordBuilder(Allocator, schema)
	defer b.Release()
	return b.NewRecord()
}

// ConcatRecords joins records sharing a schema into a single record. The
// inputs are left untouched; the result is owned by the caller.
func ConcatRecords(schema *arrow.Schema, recs []arrow.Record) (arrow.Record, error) {
	switch len(recs) {
	case 0:
		return EmptyRecord(schema), nil
	case 1:
		recs[0].Retain()
		return recs[0], nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	defer releaseArrays(cols)

	var rows int64
	for _, rec := range recs {
		rows += rec.NumRows()
	}

	for i := range cols {
		parts := make([]arrow.Array, len(recs))
		for j, rec := range recs {
			parts[j] = rec.Column(i)
		}

		col, err := array.Concatenate(parts, Allocator)
		if err != nil {
			return nil, fmt.Errorf("array.Concatenate: column %q: %w", schema.Field(i).Name, err)
		}
		cols[i] = col
	}

	return array.NewRecord(schema, cols, rows), nil
}

// TableToRecord flattens a chunked table into a single record.
func TableToRecord(tbl arrow.Table) (arrow.Record, error) {
	schema := tbl.Schema()
	cols := make([]arrow.Array, tbl.NumCols())
	defer releaseArrays(cols)

	for i := range cols {
		chunks := tbl.Column(i).Data().Chunks()
		if len(chunks) == 0 {
			b := array.NewBuilder(Allocator, schema.Field(i).Type)
			cols[i] = b.NewArray()
			b.Release()
			continue
		}

		col, err := array.Concatenate(chunks, Allocator)
		if err != nil {
			return nil, fmt.Errorf("array.Concatenate: column %q: %w", schema.Field(i).Name, err)
		}
		cols[i] = col
	}

	return array.NewRecord(schema, cols, tbl.NumRows()), nil
}

// ConformRecord returns rec with its columns converted to the types of
// schema, matched by position. Columns that already have the right type are
// shared; the result is owned by the caller either way.
func ConformRecord(rec arrow.Record, schema *arrow.Schema) (arrow.Record, error) {
	if int(rec.NumCols()) != schema.NumFields() {
		return nil, fmt.Errorf("record has %d columns, expected %d", rec.NumCols(), schema.NumFields())
	}
	if rec.Schema().Equal(schema) {
		rec.Retain()
		return rec, nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	defer releaseArrays(cols)

	for i, f := range schema.Fields() {
		col := rec.Column(i)
		if arrow.TypeEqual(col.DataType(), f.Type) {
			col.Retain()
			cols[i] = col
			continue
		}

		b := array.NewBuilder(Allocator, f.Type)
		for j := 0; j < col.Len(); j++ {
			if err := AppendValue(b, Value(col, j)); err != nil {
				b.Release()
				return nil, fmt.Errorf("column %q: %s does not fit %s: %w", f.Name, col.DataType(), f.Type, err)
			}
		}
		cols[i] = b.NewArray()
		b.Release()
	}

	return array.NewRecord(schema, cols, rec.NumRows()), nil
}

// ColumnNames returns the field names of a schema in order.
func ColumnNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

func releaseArrays(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}
