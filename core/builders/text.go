package builders

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"

	"github.com/daflip/daflip/core"
)

// DefaultNullValues are the cell values read as missing.
var DefaultNullValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
}

var boolValues = map[string]bool{
	"True": true, "true": true, "TRUE": true,
	"False": false, "false": false, "FALSE": false,
}

type textConfig struct {
	nulls     []string
	thousands string
}

// TextOption configures a TextTable.
type TextOption func(*textConfig)

// TextWithNullValues replaces the set of cell values read as missing.
func TextWithNullValues(values ...string) TextOption {
	return func(c *textConfig) {
		c.nulls = values
	}
}

// TextWithThousands strips the separator from cells before numeric parsing.
func TextWithThousands(sep string) TextOption {
	return func(c *textConfig) {
		c.thousands = sep
	}
}

// TextTable turns rows of text cells into typed records. Column types are
// decided by sniffing a sample: int64 if every value parses as an integer,
// float64 if every value parses as a number, bool for True/False tokens and
// string otherwise.
type TextTable struct {
	names     []string
	types     []arrow.DataType
	nulls     map[string]struct{}
	thousands string
}

// NewTextTable prepares a table for the given header. Empty names become
// "Unnamed: <i>" and repeated names get a ".<n>" suffix.
func NewTextTable(header []string, opts ...TextOption) *TextTable {
	config := &textConfig{
		nulls: DefaultNullValues,
	}
	for _, opt := range opts {
		opt(config)
	}

	nulls := make(map[string]struct{}, len(config.nulls))
	for _, n := range config.nulls {
		nulls[n] = struct{}{}
	}

	types := make([]arrow.DataType, len(header))
	for i := range types {
		types[i] = arrow.BinaryTypes.String
	}

	return &TextTable{
		names:     uniqueNames(header),
		types:     types,
		nulls:     nulls,
		thousands: config.thousands,
	}
}

func uniqueNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int)

	for i, name := range header {
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}

		unique := name
		for used[unique] {
			counts[name]++
			unique = fmt.Sprintf("%s.%d", name, counts[name])
		}
		used[unique] = true
		names[i] = unique
	}

	return names
}

// Names returns the final column names.
func (t *TextTable) Names() []string {
	return t.names
}

// Width returns the number of columns.
func (t *TextTable) Width() int {
	return len(t.names)
}

// Schema returns the schema records are built with.
func (t *TextTable) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.names))
	for i, name := range t.names {
		fields[i] = arrow.Field{Name: name, Type: t.types[i], Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// IsNull reports whether a cell is read as missing.
func (t *TextTable) IsNull(cell string) bool {
	_, ok := t.nulls[cell]
	return ok
}

func (t *TextTable) numeric(cell string) string {
	cell = strings.TrimSpace(cell)
	if t.thousands != "" {
		cell = strings.ReplaceAll(cell, t.thousands, "")
	}
	return cell
}

type sniff struct {
	seen     bool
	notInt   bool
	notFloat bool
	notBool  bool
}

// Sniff decides column types from a sample of rows.
func (t *TextTable) Sniff(rows [][]string) {
	for j, dt := range t.sniff(rows) {
		if dt == nil {
			dt = arrow.BinaryTypes.String
		}
		t.types[j] = dt
	}
}

// Widen adjusts the current column types so that rows fit them. Types only
// ever widen: int64 to float64, and anything to string. Missing cells never
// change a type.
func (t *TextTable) Widen(rows [][]string) {
	for j, dt := range t.sniff(rows) {
		if dt == nil {
			continue
		}
		t.types[j] = widen(t.types[j], dt)
	}
}

func widen(current, seen arrow.DataType) arrow.DataType {
	switch current.ID() {
	case arrow.INT64:
		switch seen.ID() {
		case arrow.INT64:
			return current
		case arrow.FLOAT64:
			return seen
		}
	case arrow.FLOAT64:
		switch seen.ID() {
		case arrow.INT64, arrow.FLOAT64:
			return current
		}
	case arrow.BOOL:
		if seen.ID() == arrow.BOOL {
			return current
		}
	}
	return arrow.BinaryTypes.String
}

// sniff returns the narrowest type fitting every value of each column, or nil
// for columns without any value in rows.
func (t *TextTable) sniff(rows [][]string) []arrow.DataType {
	state := make([]sniff, len(t.names))

	for _, row := range rows {
		for j := 0; j < len(t.names) && j < len(row); j++ {
			cell := row[j]
			if t.IsNull(cell) {
				continue
			}

			s := &state[j]
			s.seen = true
			num := t.numeric(cell)
			if !s.notInt {
				if _, err := strconv.ParseInt(num, 10, 64); err != nil {
					s.notInt = true
				}
			}
			if !s.notFloat {
				if _, err := strconv.ParseFloat(num, 64); err != nil {
					s.notFloat = true
				}
			}
			if !s.notBool {
				if _, ok := boolValues[strings.TrimSpace(cell)]; !ok {
					s.notBool = true
				}
			}
		}
	}

	types := make([]arrow.DataType, len(state))
	for j, s := range state {
		switch {
		case !s.seen:
		case !s.notInt:
			types[j] = arrow.PrimitiveTypes.Int64
		case !s.notFloat:
			types[j] = arrow.PrimitiveTypes.Float64
		case !s.notBool:
			types[j] = arrow.FixedWidthTypes.Boolean
		default:
			types[j] = arrow.BinaryTypes.String
		}
	}
	return types
}

// Build converts rows into a record using the sniffed types. Short rows are
// padded with nulls; rows wider than the header are rejected. firstLine is
// the one-based line number of rows[0] and is only used in error messages.
func (t *TextTable) Build(rows [][]string, firstLine int) (arrow.Record, error) {
	b := array.NewRecordBuilder(core.Allocator, t.Schema())
	defer b.Release()

	for _, f := range b.Fields() {
		f.Reserve(len(rows))
	}

	for i, row := range rows {
		if len(row) > len(t.names) {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", firstLine+i, len(t.names), len(row))
		}

		for j, f := range b.Fields() {
			if j >= len(row) || t.IsNull(row[j]) {
				f.AppendNull()
				continue
			}
			if err := t.appendCell(f, row[j]); err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", firstLine+i, t.names[j], err)
			}
		}
	}

	return b.NewRecord(), nil
}

func (t *TextTable) appendCell(b array.Builder, cell string) error {
	switch b := b.(type) {
	case *array.Int64Builder:
		v, err := strconv.ParseInt(t.numeric(cell), 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as int64", cell)
		}
		b.Append(v)
	case *array.Float64Builder:
		v, err := strconv.ParseFloat(t.numeric(cell), 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as float64", cell)
		}
		b.Append(v)
	case *array.BooleanBuilder:
		v, ok := boolValues[strings.TrimSpace(cell)]
		if !ok {
			return fmt.Errorf("cannot parse %q as bool", cell)
		}
		b.Append(v)
	case *array.StringBuilder:
		b.Append(cell)
	default:
		return fmt.Errorf("unsupported column type %s", b.Type())
	}
	return nil
}
