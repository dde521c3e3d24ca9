// Package savtest builds small SPSS system files for tests.
package savtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Print format types.
const (
	FormatF        = 5
	FormatA        = 1
	FormatDate     = 20
	FormatDateTime = 22
	FormatADate    = 23
)

var sysmis = -math.MaxFloat64

// Var describes a variable. Width 0 is numeric.
type Var struct {
	Name    string
	Width   int
	Type    int32
	Label   string
	Missing []float64
	Range   []float64
	Labels  map[float64]string
}

// File describes a whole system file. Row values are float64, string or nil.
type File struct {
	Vars        []Var
	Rows        [][]any
	Compression int32
	Encoding    string
	Label       string
}

type slotVar struct {
	short    string
	segments []int // widths
}

const bias = 100

// Bytes encodes the file.
func (f *File) Bytes() []byte {
	var (
		dict  bytes.Buffer
		plans = make([]slotVar, len(f.Vars))
		index = make([]int32, len(f.Vars))
		next  int32 = 1
		longs []string
		vls   []string
	)

	caseSize := 0
	for i, v := range f.Vars {
		short := fmt.Sprintf("V%d", i+1)
		longs = append(longs, short+"="+v.Name)

		widths := []int{v.Width}
		if v.Width > 255 {
			n := (v.Width + 251) / 252
			widths = make([]int, n)
			for s := range widths {
				widths[s] = 255
			}
			widths[n-1] = v.Width - (n-1)*252
			vls = append(vls, fmt.Sprintf("%s=%05d\x00", short, v.Width))
		}
		plans[i] = slotVar{short: short, segments: widths}
		index[i] = next

		for s, w := range widths {
			name := short
			if s > 0 {
				name = fmt.Sprintf("%s%c", short, 'A'+s-1)
			}

			format := v.Type
			if format == 0 {
				format = FormatF
				if w > 0 {
					format = FormatA
				}
			}
			printFmt := format<<16 | int32(max(w, 8))<<8
			if format == FormatF {
				printFmt |= 2
			}

			put(&dict, int32(2), int32(w))
			hasLabel := int32(0)
			if v.Label != "" && s == 0 {
				hasLabel = 1
			}
			nmiss := int32(len(v.Missing))
			if len(v.Range) == 2 && s == 0 {
				nmiss = -2 - int32(len(v.Missing))
			}
			if s > 0 {
				nmiss = 0
			}
			put(&dict, hasLabel, nmiss, printFmt, printFmt)
			dict.WriteString(pad(name, 8))
			if hasLabel == 1 {
				put(&dict, int32(len(v.Label)))
				dict.WriteString(pad(v.Label, (len(v.Label)+3)/4*4))
			}
			if nmiss < 0 {
				put(&dict, v.Range[0], v.Range[1])
			}
			if nmiss != 0 {
				for _, m := range v.Missing {
					put(&dict, m)
				}
			}
			next++
			caseSize++

			for k := 1; k < slots(w); k++ {
				put(&dict, int32(2), int32(-1), int32(0), int32(0), int32(0), int32(0))
				dict.WriteString(pad("", 8))
				next++
				caseSize++
			}
		}
	}

	for i, v := range f.Vars {
		if len(v.Labels) == 0 {
			continue
		}
		values := make([]float64, 0, len(v.Labels))
		for k := range v.Labels {
			values = append(values, k)
		}
		sort.Float64s(values)

		put(&dict, int32(3), int32(len(values)))
		for _, k := range values {
			label := v.Labels[k]
			put(&dict, k)
			dict.WriteByte(byte(len(label)))
			dict.WriteString(pad(label, (len(label)+8)/8*8-1))
		}
		put(&dict, int32(4), int32(1), index[i])
	}

	extension(&dict, 3, 4, []byte(ints(1, 0, 0, -1, 1, 1, 2, 65001)))
	extension(&dict, 13, 1, []byte(strings.Join(longs, "\t")))
	if len(vls) > 0 {
		extension(&dict, 14, 1, []byte(strings.Join(vls, "\t")))
	}
	if f.Encoding != "" {
		extension(&dict, 20, 1, []byte(f.Encoding))
	}
	put(&dict, int32(999), int32(0))

	elems := f.elements(plans)

	var out bytes.Buffer
	magic := "$FL2"
	if f.Compression == 2 {
		magic = "$FL3"
	}
	out.WriteString(magic)
	out.WriteString(pad("@(#) SPSS DATA FILE savtest", 60))
	put(&out, int32(2), int32(caseSize), f.Compression, int32(0), int32(len(f.Rows)), float64(bias))
	out.WriteString("01 Jan 24")
	out.WriteString("00:00:00")
	out.WriteString(pad(f.Label, 64))
	out.WriteString(pad("", 3))
	out.Write(dict.Bytes())

	switch f.Compression {
	case 0:
		out.Write(elems)
	case 1:
		out.Write(bytecode(elems))
	case 2:
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		_, _ = zw.Write(bytecode(elems))
		_ = zw.Close()

		headerOfs := int64(out.Len())
		blockOfs := headerOfs + 24
		trailerOfs := blockOfs + int64(z.Len())
		put(&out, headerOfs, trailerOfs, int64(48))
		out.Write(z.Bytes())
		put(&out, int64(-bias), int64(0), int32(0x3ff000), int32(1))
		put(&out, headerOfs, blockOfs, int32(len(bytecode(elems))), int32(z.Len()))
	}

	return out.Bytes()
}

func (f *File) elements(plans []slotVar) []byte {
	var out bytes.Buffer
	for _, row := range f.Rows {
		for j, v := range f.Vars {
			if v.Width == 0 {
				x, ok := row[j].(float64)
				if !ok {
					x = sysmis
				}
				put(&out, x)
				continue
			}

			s, _ := row[j].(string)
			segs := plans[j].segments
			for k, w := range segs {
				size := 8 * slots(w)
				take := size
				if k < len(segs)-1 {
					take = size - 1
				}
				chunk := s[:min(len(s), take)]
				s = s[len(chunk):]
				out.WriteString(pad(chunk, size))
			}
		}
	}
	return out.Bytes()
}

func bytecode(elems []byte) []byte {
	var (
		out   bytes.Buffer
		codes []byte
		raw   bytes.Buffer
	)
	flush := func() {
		for len(codes) < 8 {
			codes = append(codes, 0)
		}
		out.Write(codes)
		out.Write(raw.Bytes())
		codes = codes[:0]
		raw.Reset()
	}

	for pos := 0; pos+8 <= len(elems); pos += 8 {
		e := elems[pos : pos+8]
		x := math.Float64frombits(binary.LittleEndian.Uint64(e))
		switch {
		case string(e) == "        ":
			codes = append(codes, 254)
		case x == sysmis:
			codes = append(codes, 255)
		case x == math.Trunc(x) && x >= 1-bias && x <= 251-bias:
			codes = append(codes, byte(x+bias))
		default:
			codes = append(codes, 253)
			raw.Write(e)
		}
		if len(codes) == 8 {
			flush()
		}
	}
	if len(codes) > 0 {
		flush()
	}
	return out.Bytes()
}

func slots(width int) int {
	if width == 0 {
		return 1
	}
	return (width + 7) / 8
}

func extension(buf *bytes.Buffer, subtype, size int32, data []byte) {
	put(buf, int32(7), subtype, size, int32(len(data))/size)
	buf.Write(data)
}

func ints(values ...int32) string {
	var buf bytes.Buffer
	for _, v := range values {
		put(&buf, v)
	}
	return buf.String()
}

func put(buf *bytes.Buffer, values ...any) {
	for _, v := range values {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}
