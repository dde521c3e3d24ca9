package schema

import (
	"strings"

	"github.com/apache/arrow/go/v15/arrow"

	"github.com/daflip/daflip/core"
)

var (
	timestampType = &arrow.TimestampType{Unit: arrow.Microsecond}

	// vocabulary maps the names written by Export to their types.
	vocabulary = map[string]arrow.DataType{
		"int8":      arrow.PrimitiveTypes.Int8,
		"int16":     arrow.PrimitiveTypes.Int16,
		"int32":     arrow.PrimitiveTypes.Int32,
		"int64":     arrow.PrimitiveTypes.Int64,
		"uint8":     arrow.PrimitiveTypes.Uint8,
		"uint16":    arrow.PrimitiveTypes.Uint16,
		"uint32":    arrow.PrimitiveTypes.Uint32,
		"uint64":    arrow.PrimitiveTypes.Uint64,
		"float16":   arrow.FixedWidthTypes.Float16,
		"float32":   arrow.PrimitiveTypes.Float32,
		"float64":   arrow.PrimitiveTypes.Float64,
		"double":    arrow.PrimitiveTypes.Float64,
		"string":    arrow.BinaryTypes.String,
		"binary":    arrow.BinaryTypes.Binary,
		"bool":      arrow.FixedWidthTypes.Boolean,
		"date32":    arrow.FixedWidthTypes.Date32,
		"date64":    arrow.FixedWidthTypes.Date64,
		"timestamp": timestampType,
		"time32":    arrow.FixedWidthTypes.Time32s,
		"time64":    arrow.FixedWidthTypes.Time64us,
	}

	// aliases are the spellings pyarrow uses for the same types.
	aliases = map[string]string{
		"float":        "float32",
		"halffloat":    "float16",
		"utf8":         "string",
		"large_string": "string",
		"large_utf8":   "string",
		"large_binary": "binary",
		"boolean":      "bool",
		"date32[day]":  "date32",
		"date64[ms]":   "date64",
		"time32[s]":    "time32",
		"time32[ms]":   "time32",
		"time64[us]":   "time64",
		"time64[ns]":   "time64",
	}
)

// ParseType resolves a type name to its Arrow type. Names are matched
// exactly, lowercase only; pyarrow spellings such as "utf8" or
// "timestamp[ns]" are accepted as well.
func ParseType(name string) (arrow.DataType, error) {
	key := name
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if strings.HasPrefix(key, "timestamp[") {
		key = "timestamp"
	}

	dt, ok := vocabulary[key]
	if !ok {
		return nil, core.MalformedSchemaf("unsupported type %q", name)
	}
	return dt, nil
}

// TypeName returns the vocabulary name of dt. Types outside the vocabulary
// are mapped to the closest name; anything else falls back to Arrow's own
// type string.
func TypeName(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.INT8:
		return "int8"
	case arrow.INT16:
		return "int16"
	case arrow.INT32:
		return "int32"
	case arrow.INT64:
		return "int64"
	case arrow.UINT8:
		return "uint8"
	case arrow.UINT16:
		return "uint16"
	case arrow.UINT32:
		return "uint32"
	case arrow.UINT64:
		return "uint64"
	case arrow.FLOAT16:
		return "float16"
	case arrow.FLOAT32:
		return "float32"
	case arrow.FLOAT64:
		return "float64"
	case arrow.STRING, arrow.LARGE_STRING, arrow.NULL:
		return "string"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return "binary"
	case arrow.BOOL:
		return "bool"
	case arrow.DATE32:
		return "date32"
	case arrow.DATE64:
		return "date64"
	case arrow.TIMESTAMP:
		return "timestamp"
	case arrow.TIME32:
		return "time32"
	case arrow.TIME64:
		return "time64"
	case arrow.DICTIONARY:
		return TypeName(dt.(*arrow.DictionaryType).ValueType)
	default:
		return dt.String()
	}
}
