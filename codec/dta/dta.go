// Package dta writes Stata datasets in format 118 (Stata 14+), little endian.
//
// Layout reference: https://www.stata.com/help.cgi?dta
package dta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v15/arrow"

	"github.com/daflip/daflip/core"
)

// Variable type codes of format 118. String types use their width (1-2045).
const (
	TypeDouble uint16 = 65526
	TypeFloat  uint16 = 65527
	TypeLong   uint16 = 65528
	TypeInt    uint16 = 65529
	TypeByte   uint16 = 65530

	MaxStrWidth = 2045
	MaxNameLen  = 32
)

const (
	nameSize     = 129
	formatSize   = 57
	labelSize    = 321
	mapEntries   = 14
	timestampFmt = "02 Jan 2006 15:04"
)

// Missing value sentinels (the system missing value ".").
var (
	missingDouble = math.Float64frombits(0x7fe0000000000000)
	missingFloat  = math.Float32frombits(0x7f000000)
)

const (
	missingLong = 2147483621
	missingInt  = 32741
	missingByte = 101
)

// stataEpoch is the origin of %td and %tc values.
var stataEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

type config struct {
	label string
	now   func() time.Time
}

type Option func(*config)

// WithLabel sets the dataset label.
func WithLabel(label string) Option {
	return func(c *config) {
		c.label = label
	}
}

// WithTimestamp fixes the creation time stored in the header.
func WithTimestamp(t time.Time) Option {
	return func(c *config) {
		c.now = func() time.Time { return t }
	}
}

// Variable describes how a column is stored.
type Variable struct {
	Name   string
	Type   uint16
	Format string

	encode func(buf *bytes.Buffer, row int)
}

// Plan maps the columns of rec to Stata variables. Names are sanitised to
// valid, unique Stata names.
func Plan(rec arrow.Record) ([]*Variable, error) {
	names := Names(core.ColumnNames(rec.Schema()))

	vars := make([]*Variable, rec.NumCols())
	for i, col := range rec.Columns() {
		v, err := planColumn(col)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", rec.Schema().Field(i).Name, err)
		}
		v.Name = names[i]
		vars[i] = v
	}
	return vars, nil
}

func planColumn(col arrow.Array) (*Variable, error) {
	switch col.DataType().ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64, arrow.BOOL:
		return planInteger(col), nil
	case arrow.FLOAT16, arrow.FLOAT32:
		return &Variable{Type: TypeFloat, Format: "%9.0g", encode: func(buf *bytes.Buffer, row int) {
			f, ok := core.Value(col, row).(float64)
			if !ok {
				putFloat32(buf, missingFloat)
				return
			}
			putFloat32(buf, float32(f))
		}}, nil
	case arrow.FLOAT64:
		return &Variable{Type: TypeDouble, Format: "%10.0g", encode: func(buf *bytes.Buffer, row int) {
			f, ok := core.Value(col, row).(float64)
			if !ok {
				f = missingDouble
			}
			putFloat64(buf, f)
		}}, nil
	case arrow.DATE32, arrow.DATE64:
		return &Variable{Type: TypeLong, Format: "%td", encode: func(buf *bytes.Buffer, row int) {
			t, ok := core.Value(col, row).(time.Time)
			if !ok {
				putInt32(buf, missingLong)
				return
			}
			putInt32(buf, int32(core.Date32FromTime(t)-core.Date32FromTime(stataEpoch)))
		}}, nil
	case arrow.TIMESTAMP:
		return &Variable{Type: TypeDouble, Format: "%tc", encode: func(buf *bytes.Buffer, row int) {
			t, ok := core.Value(col, row).(time.Time)
			if !ok {
				putFloat64(buf, missingDouble)
				return
			}
			putFloat64(buf, float64(t.Sub(stataEpoch).Milliseconds()))
		}}, nil
	default:
		return planString(col)
	}
}

type intRange struct {
	typ      uint16
	min, max int64
	format   string
}

// intRanges are ordered smallest first; the upper bounds stop below the
// missing value codes.
var intRanges = []intRange{
	{TypeByte, -127, 100, "%8.0g"},
	{TypeInt, -32767, 32740, "%8.0g"},
	{TypeLong, -2147483647, 2147483620, "%12.0g"},
}

func planInteger(col arrow.Array) *Variable {
	var lo, hi int64
	fitsInt := true

	for i := 0; i < col.Len(); i++ {
		var v int64
		switch x := core.Value(col, i).(type) {
		case nil:
			continue
		case int64:
			v = x
		case uint64:
			if x > math.MaxInt64 {
				fitsInt = false
				continue
			}
			v = int64(x)
		case bool:
			if x {
				v = 1
			}
		}
		lo, hi = min(lo, v), max(hi, v)
	}

	if fitsInt {
		for _, r := range intRanges {
			if lo < r.min || hi > r.max {
				continue
			}
			return &Variable{Type: r.typ, Format: r.format, encode: integerEncoder(col, r.typ)}
		}
	}

	return &Variable{Type: TypeDouble, Format: "%10.0g", encode: func(buf *bytes.Buffer, row int) {
		switch x := core.Value(col, row).(type) {
		case int64:
			putFloat64(buf, float64(x))
		case uint64:
			putFloat64(buf, float64(x))
		default:
			putFloat64(buf, missingDouble)
		}
	}}
}

func integerEncoder(col arrow.Array, typ uint16) func(*bytes.Buffer, int) {
	return func(buf *bytes.Buffer, row int) {
		var (
			v       int64
			missing bool
		)
		switch x := core.Value(col, row).(type) {
		case int64:
			v = x
		case uint64:
			v = int64(x)
		case bool:
			if x {
				v = 1
			}
		default:
			missing = true
		}

		switch typ {
		case TypeByte:
			if missing {
				v = missingByte
			}
			buf.WriteByte(byte(int8(v)))
		case TypeInt:
			if missing {
				v = missingInt
			}
			putInt16(buf, int16(v))
		default:
			if missing {
				v = missingLong
			}
			putInt32(buf, int32(v))
		}
	}
}

func planString(col arrow.Array) (*Variable, error) {
	values := make([]string, col.Len())
	width := 1
	for i := range values {
		values[i] = core.FormatValue(col, i)
		width = max(width, len(values[i]))
	}
	if width > MaxStrWidth {
		return nil, core.NotImplementedf("strings longer than %d bytes are not supported", MaxStrWidth)
	}

	return &Variable{
		Type:   uint16(width),
		Format: "%-" + strconv.Itoa(min(width, 244)) + "s",
		encode: func(buf *bytes.Buffer, row int) {
			putFixed(buf, values[row], width)
		},
	}, nil
}

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Names turns column names into unique Stata variable names: invalid
// characters become underscores, names starting with a digit get a leading
// underscore and everything is cut to 32 characters.
func Names(columns []string) []string {
	out := make([]string, len(columns))
	used := make(map[string]bool, len(columns))

	for i, name := range columns {
		name = invalidNameChars.ReplaceAllString(name, "_")
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			name = "_" + name
		}
		if len(name) > MaxNameLen {
			name = name[:MaxNameLen]
		}

		unique := name
		for n := 1; used[unique]; n++ {
			suffix := "_" + strconv.Itoa(n)
			unique = name[:min(len(name), MaxNameLen-len(suffix))] + suffix
		}
		used[unique] = true
		out[i] = unique
	}

	return out
}

// Write encodes rec as a dta file.
func Write(w io.Writer, rec arrow.Record, opts ...Option) error {
	config := &config{now: time.Now}
	for _, opt := range opts {
		opt(config)
	}

	if rec.NumCols() > math.MaxUint16 {
		return fmt.Errorf("too many variables: %d", rec.NumCols())
	}
	if len(config.label) > 80 {
		return fmt.Errorf("dataset label longer than 80 characters")
	}

	vars, err := Plan(rec)
	if err != nil {
		return err
	}

	var (
		buf     bytes.Buffer
		offsets [mapEntries]uint64
	)
	mark := func(i int) {
		offsets[i] = uint64(buf.Len())
	}

	buf.WriteString("<stata_dta><header><release>118</release><byteorder>LSF</byteorder>")
	buf.WriteString("<K>")
	putUint16(&buf, uint16(len(vars)))
	buf.WriteString("</K><N>")
	putUint64(&buf, uint64(rec.NumRows()))
	buf.WriteString("</N><label>")
	putUint16(&buf, uint16(len(config.label)))
	buf.WriteString(config.label)
	buf.WriteString("</label><timestamp>")
	stamp := config.now().Format(timestampFmt)
	buf.WriteByte(byte(len(stamp)))
	buf.WriteString(stamp)
	buf.WriteString("</timestamp></header>")

	mark(1)
	buf.WriteString("<map>")
	mapStart := buf.Len()
	buf.Write(make([]byte, 8*mapEntries))
	buf.WriteString("</map>")

	mark(2)
	buf.WriteString("<variable_types>")
	for _, v := range vars {
		putUint16(&buf, v.Type)
	}
	buf.WriteString("</variable_types>")

	mark(3)
	buf.WriteString("<varnames>")
	for _, v := range vars {
		putFixed(&buf, v.Name, nameSize)
	}
	buf.WriteString("</varnames>")

	mark(4)
	buf.WriteString("<sortlist>")
	buf.Write(make([]byte, 2*(len(vars)+1)))
	buf.WriteString("</sortlist>")

	mark(5)
	buf.WriteString("<formats>")
	for _, v := range vars {
		putFixed(&buf, v.Format, formatSize)
	}
	buf.WriteString("</formats>")

	mark(6)
	buf.WriteString("<value_label_names>")
	buf.Write(make([]byte, nameSize*len(vars)))
	buf.WriteString("</value_label_names>")

	mark(7)
	buf.WriteString("<variable_labels>")
	buf.Write(make([]byte, labelSize*len(vars)))
	buf.WriteString("</variable_labels>")

	mark(8)
	buf.WriteString("<characteristics></characteristics>")

	mark(9)
	buf.WriteString("<data>")
	for row := 0; row < int(rec.NumRows()); row++ {
		for _, v := range vars {
			v.encode(&buf, row)
		}
	}
	buf.WriteString("</data>")

	mark(10)
	buf.WriteString("<strls></strls>")

	mark(11)
	buf.WriteString("<value_labels></value_labels>")

	mark(12)
	buf.WriteString("</stata_dta>")
	mark(13)

	out := buf.Bytes()
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(out[mapStart+8*i:], off)
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write dta: %w", err)
	}
	return nil
}

// putFixed writes s into a zero padded field of size bytes.
func putFixed(buf *bytes.Buffer, s string, size int) {
	if len(s) > size {
		s = s[:size]
	}
	buf.WriteString(s)
	buf.Write(make([]byte, size-len(s)))
}

func putUint16(buf *bytes.Buffer, v uint16) {
	buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func putUint64(buf *bytes.Buffer, v uint64) {
	buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}

func putInt16(buf *bytes.Buffer, v int16) {
	putUint16(buf, uint16(v))
}

func putInt32(buf *bytes.Buffer, v int32) {
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(v)))
}

func putFloat32(buf *bytes.Buffer, v float32) {
	buf.Write(binary.LittleEndian.AppendUint32(nil, math.Float32bits(v)))
}

func putFloat64(buf *bytes.Buffer, v float64) {
	putUint64(buf, math.Float64bits(v))
}
