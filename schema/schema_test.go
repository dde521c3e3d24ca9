package schema_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/schema"
)

func TestExport_Load(t *testing.T) {
	r := require.New(t)

	s := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64},
		{Name: "name", Type: arrow.BinaryTypes.LargeString},
		{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32},
		{Name: "ok", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	path := filepath.Join(t.TempDir(), "schema.json")
	r.NoError(os.WriteFile(path, []byte("stale"), 0o644))
	r.NoError(schema.Export(s, path))

	content, err := os.ReadFile(path)
	r.NoError(err)
	r.Equal(`{
  "fields": [
    {
      "name": "id",
      "type": "int64"
    },
    {
      "name": "score",
      "type": "float64"
    },
    {
      "name": "name",
      "type": "string"
    },
    {
      "name": "at",
      "type": "timestamp"
    },
    {
      "name": "day",
      "type": "date32"
    },
    {
      "name": "ok",
      "type": "bool"
    }
  ]
}
`, string(content))

	loaded, err := schema.Load(path)
	r.NoError(err)
	r.Equal([]string{"id", "score", "name", "at", "day", "ok"}, core.ColumnNames(loaded))
	r.Equal(arrow.BinaryTypes.String, loaded.Field(2).Type)
	r.True(arrow.TypeEqual(&arrow.TimestampType{Unit: arrow.Microsecond}, loaded.Field(3).Type))
}

func TestLoad_Errors(t *testing.T) {
	r := require.New(t)

	dir := t.TempDir()

	_, err := schema.Load(filepath.Join(dir, "missing.json"))
	r.ErrorIs(err, core.ErrNotFound)

	testCases := []struct {
		content string
		message string
	}{
		{`{not json`, "invalid schema document"},
		{`{"columns": []}`, `no "fields" array`},
		{`{"fields": [{"type": "int64"}]}`, "field 0 has no name"},
		{`{"fields": [{"name": "a"}]}`, `field "a" has no type`},
		{`{"fields": [{"name": "a", "type": "decimal"}]}`, `unsupported type "decimal"`},
	}

	for _, tc := range testCases {
		path := filepath.Join(dir, "schema.json")
		r.NoError(os.WriteFile(path, []byte(tc.content), 0o644))

		_, err := schema.Load(path)
		r.ErrorIs(err, core.ErrMalformedSchema, tc.content)
		r.ErrorContains(err, tc.message)
	}
}

func TestParse_Empty(t *testing.T) {
	r := require.New(t)

	s, err := schema.Parse([]byte(`{"fields": []}`))
	r.NoError(err)
	r.Equal(0, s.NumFields())
}

func TestParseType(t *testing.T) {
	r := require.New(t)

	testCases := []struct {
		name     string
		expected arrow.DataType
	}{
		{"int64", arrow.PrimitiveTypes.Int64},
		{"double", arrow.PrimitiveTypes.Float64},
		{"utf8", arrow.BinaryTypes.String},
		{"large_string", arrow.BinaryTypes.String},
		{"boolean", arrow.FixedWidthTypes.Boolean},
		{"date32[day]", arrow.FixedWidthTypes.Date32},
		{"timestamp[ns]", &arrow.TimestampType{Unit: arrow.Microsecond}},
		{"time32", arrow.FixedWidthTypes.Time32s},
		{"time64[us]", arrow.FixedWidthTypes.Time64us},
	}

	for _, tc := range testCases {
		dt, err := schema.ParseType(tc.name)
		r.NoError(err, tc.name)
		r.True(arrow.TypeEqual(tc.expected, dt), "%s: %s", tc.name, dt)
	}
}

func TestParseType_Unsupported(t *testing.T) {
	r := require.New(t)

	for _, name := range []string{"INT64", "Float64", " int64", "int64 ", "Timestamp[ns]", "", "int128"} {
		_, err := schema.ParseType(name)
		r.True(errors.Is(err, core.ErrMalformedSchema), "%q", name)
		r.ErrorContains(err, fmt.Sprintf("unsupported type %q", name))
	}
}

func TestTypeName_RoundTrip(t *testing.T) {
	r := require.New(t)

	for _, name := range []string{
		"int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64",
		"float16", "float32", "float64", "string", "binary", "bool",
		"date32", "date64", "timestamp", "time32", "time64",
	} {
		dt, err := schema.ParseType(name)
		r.NoError(err)
		r.Equal(name, schema.TypeName(dt))
	}

	dict := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}
	r.Equal("string", schema.TypeName(dict))
	list := arrow.ListOf(arrow.PrimitiveTypes.Int64)
	r.Equal(list.String(), schema.TypeName(list))
}
