// Package sav reads SPSS system files (.sav and zlib compressed .zsav).
//
// Format reference: the PSPP "System File Format" appendix.
package sav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Compression modes stored in the header.
const (
	CompressionNone     = 0
	CompressionBytecode = 1
	CompressionZlib     = 2
)

const (
	headerSize = 176

	recordVariable     = 2
	recordValueLabels  = 3
	recordLabelTargets = 4
	recordDocument     = 6
	recordExtension    = 7
	recordEnd          = 999

	extIntegerInfo     = 3
	extFloatInfo       = 4
	extLongNames       = 13
	extVeryLongStrings = 14
	extEncoding        = 20

	// vlsChunk is the number of string bytes a very long string segment
	// stands for in the dictionary.
	vlsChunk = 252
)

// Format type codes of the date and time formats.
const (
	formatDate     = 20
	formatDateTime = 22
	formatADate    = 23
	formatJDate    = 24
	formatEDate    = 38
	formatSDate    = 39
)

// sysmis is the default system missing value.
var sysmis = -math.MaxFloat64

// gregorian is the origin of SPSS date values.
var gregorian = time.Date(1582, 10, 14, 0, 0, 0, 0, time.UTC)

// Kind tells how a variable's values are represented.
type Kind int

const (
	KindNumeric Kind = iota
	KindString
	KindDate
	KindDateTime
	// KindLabeled is a numeric variable whose values are replaced by their
	// value labels.
	KindLabeled
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindLabeled:
		return "labeled"
	default:
		return "unknown"
	}
}

// Header is the fixed file header.
type Header struct {
	Magic       string
	Product     string
	Layout      int32
	CaseSize    int32
	Compression int32
	WeightIndex int32
	Cases       int32
	Bias        float64
	Created     string
	Label       string
}

// Variable is a logical variable: a numeric, a string, or a very long
// string assembled from several segments.
type Variable struct {
	Name   string
	Label  string
	Width  int
	Format int32
	Kind   Kind

	// Labels holds value labels keyed by the value's text form: the number
	// formatted with strconv 'g' for numeric variables, the trimmed string
	// otherwise.
	Labels map[string]string

	short    string
	missing  missing
	segments []int // slots per segment
}

// Slots returns the number of 8-byte case elements the variable takes.
func (v *Variable) Slots() int {
	n := 0
	for _, s := range v.segments {
		n += s
	}
	return n
}

type missing struct {
	values  []float64
	strings []string
	lo, hi  float64
	hasRng  bool
}

func (m missing) numeric(v float64) bool {
	if m.hasRng && v >= m.lo && v <= m.hi {
		return true
	}
	for _, x := range m.values {
		if v == x {
			return true
		}
	}
	return false
}

func (m missing) text(s string) bool {
	for _, x := range m.strings {
		if s == x {
			return true
		}
	}
	return false
}

// File is a decoded system file. Columns holds one slice per variable with
// values of type float64, string, time.Time or nil for missing values.
type File struct {
	Header    Header
	Variables []*Variable
	Documents []string
	Encoding  string
	Rows      int
	Columns   [][]any
}

// rawVar is a single variable record from the dictionary.
type rawVar struct {
	typ     int32
	format  int32
	short   string
	label   string
	missing missing
	labels  map[string]string
}

type reader struct {
	c        *cursor
	header   Header
	raw      []*rawVar
	docs     []string
	longName map[string]string
	vls      map[string]int
	encoding string
	charCode int32
	sysmis   float64
	decoder  *encoding.Decoder
}

// Read decodes a complete system file.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sav: %w", err)
	}
	return Decode(data)
}

// Decode decodes a system file held in memory.
func Decode(data []byte) (*File, error) {
	rd := &reader{
		c:        &cursor{buf: data, order: binary.LittleEndian},
		longName: make(map[string]string),
		vls:      make(map[string]int),
		sysmis:   sysmis,
	}

	if err := rd.readHeader(); err != nil {
		return nil, err
	}
	if err := rd.readDictionary(); err != nil {
		return nil, err
	}
	rd.decoder = textDecoder(rd.encoding, rd.charCode)

	vars, err := rd.variables()
	if err != nil {
		return nil, err
	}

	elems, err := rd.caseData(vars)
	if err != nil {
		return nil, err
	}

	f := &File{
		Header:    rd.header,
		Variables: vars,
		Documents: rd.docs,
		Encoding:  rd.encoding,
	}
	f.Header.Label = rd.text(f.Header.Label)
	f.Rows, f.Columns = rd.columns(vars, elems)
	return f, nil
}

func (rd *reader) readHeader() error {
	c := rd.c
	if len(c.buf) < headerSize {
		return fmt.Errorf("not an SPSS system file: %w", io.ErrUnexpectedEOF)
	}

	magic := string(c.buf[:4])
	if magic != "$FL2" && magic != "$FL3" {
		return fmt.Errorf("not an SPSS system file: bad magic %q", magic)
	}

	// layout code is 2 or 3 and tells the byte order
	layout := binary.LittleEndian.Uint32(c.buf[64:68])
	if layout != 2 && layout != 3 {
		c.order = binary.BigEndian
	}

	h := Header{Magic: magic}
	b, _ := c.bytes(64)
	h.Product = strings.TrimSpace(string(b[4:]))
	h.Layout, _ = c.int32()
	h.CaseSize, _ = c.int32()
	h.Compression, _ = c.int32()
	h.WeightIndex, _ = c.int32()
	h.Cases, _ = c.int32()
	h.Bias, _ = c.float64()
	date, _ := c.bytes(9)
	clock, _ := c.bytes(8)
	h.Created = string(date) + " " + string(clock)
	label, _ := c.bytes(64)
	h.Label = strings.TrimRight(string(label), " \x00")
	_ = c.skip(3)

	switch h.Compression {
	case CompressionNone, CompressionBytecode, CompressionZlib:
	default:
		return fmt.Errorf("unsupported compression %d", h.Compression)
	}
	if (magic == "$FL3") != (h.Compression == CompressionZlib) {
		return fmt.Errorf("compression %d does not match %s file", h.Compression, magic)
	}

	rd.header = h
	return nil
}

func (rd *reader) readDictionary() error {
	c := rd.c
	for {
		typ, err := c.int32()
		if err != nil {
			return fmt.Errorf("dictionary: %w", err)
		}

		switch typ {
		case recordVariable:
			err = rd.readVariable()
		case recordValueLabels:
			err = rd.readValueLabels()
		case recordDocument:
			err = rd.readDocument()
		case recordExtension:
			err = rd.readExtension()
		case recordEnd:
			return c.skip(4)
		default:
			return fmt.Errorf("unrecognised record type %d at offset %d", typ, c.pos-4)
		}
		if err != nil {
			return err
		}
	}
}

func (rd *reader) readVariable() error {
	c := rd.c
	var fields [5]int32
	for i := range fields {
		v, err := c.int32()
		if err != nil {
			return fmt.Errorf("variable record: %w", err)
		}
		fields[i] = v
	}
	name, err := c.bytes(8)
	if err != nil {
		return fmt.Errorf("variable record: %w", err)
	}

	v := &rawVar{
		typ:    fields[0],
		format: fields[3],
		short:  strings.TrimRight(string(name), " "),
	}

	if fields[1] == 1 {
		n, err := c.int32()
		if err != nil {
			return fmt.Errorf("variable label: %w", err)
		}
		label, err := c.bytes(int((n + 3) / 4 * 4))
		if err != nil {
			return fmt.Errorf("variable label: %w", err)
		}
		v.label = string(label[:n])
	}

	nmiss := fields[2]
	count := int(nmiss)
	if count < 0 {
		count = -count
	}
	if count > 3 {
		return fmt.Errorf("variable %s: invalid missing value count %d", v.short, nmiss)
	}

	values := make([][]byte, count)
	for i := range values {
		if values[i], err = c.bytes(8); err != nil {
			return fmt.Errorf("missing values: %w", err)
		}
	}

	if v.typ == 0 {
		nums := make([]float64, count)
		for i, b := range values {
			nums[i] = math.Float64frombits(c.order.Uint64(b))
		}
		if nmiss < 0 {
			v.missing.hasRng = true
			v.missing.lo, v.missing.hi = nums[0], nums[1]
			nums = nums[2:]
		}
		v.missing.values = nums
	} else {
		for _, b := range values {
			v.missing.strings = append(v.missing.strings, strings.TrimRight(string(b), " "))
		}
	}

	rd.raw = append(rd.raw, v)
	return nil
}

func (rd *reader) readValueLabels() error {
	c := rd.c
	n, err := c.int32()
	if err != nil {
		return fmt.Errorf("value labels: %w", err)
	}

	type pair struct {
		value []byte
		label string
	}
	pairs := make([]pair, n)
	for i := range pairs {
		value, err := c.bytes(8)
		if err != nil {
			return fmt.Errorf("value labels: %w", err)
		}
		size, err := c.bytes(1)
		if err != nil {
			return fmt.Errorf("value labels: %w", err)
		}
		// label length byte plus label, padded to a multiple of 8
		padded := (int(size[0])+8)/8*8 - 1
		label, err := c.bytes(padded)
		if err != nil {
			return fmt.Errorf("value labels: %w", err)
		}
		pairs[i] = pair{value: value, label: string(label[:size[0]])}
	}

	typ, err := c.int32()
	if err != nil {
		return fmt.Errorf("value labels: %w", err)
	}
	if typ != recordLabelTargets {
		return fmt.Errorf("value labels: expected record type 4, saw %d", typ)
	}

	count, err := c.int32()
	if err != nil {
		return fmt.Errorf("value labels: %w", err)
	}
	for i := 0; i < int(count); i++ {
		idx, err := c.int32()
		if err != nil {
			return fmt.Errorf("value labels: %w", err)
		}
		if idx < 1 || int(idx) > len(rd.raw) {
			return fmt.Errorf("value labels: variable index %d out of range", idx)
		}

		v := rd.raw[idx-1]
		if v.labels == nil {
			v.labels = make(map[string]string, len(pairs))
		}
		for _, p := range pairs {
			v.labels[rd.labelKey(v, p.value)] = p.label
		}
	}

	return nil
}

func (rd *reader) labelKey(v *rawVar, value []byte) string {
	if v.typ == 0 {
		return numberKey(math.Float64frombits(rd.c.order.Uint64(value)))
	}
	return strings.TrimRight(string(value), " ")
}

func numberKey(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (rd *reader) readDocument() error {
	n, err := rd.c.int32()
	if err != nil {
		return fmt.Errorf("document record: %w", err)
	}
	for i := 0; i < int(n); i++ {
		line, err := rd.c.bytes(80)
		if err != nil {
			return fmt.Errorf("document record: %w", err)
		}
		rd.docs = append(rd.docs, strings.TrimRight(string(line), " "))
	}
	return nil
}

func (rd *reader) readExtension() error {
	c := rd.c
	subtype, err := c.int32()
	if err != nil {
		return fmt.Errorf("extension record: %w", err)
	}
	size, err := c.int32()
	if err != nil {
		return fmt.Errorf("extension record: %w", err)
	}
	count, err := c.int32()
	if err != nil {
		return fmt.Errorf("extension record: %w", err)
	}
	data, err := c.bytes(int(size) * int(count))
	if err != nil {
		return fmt.Errorf("extension record %d: %w", subtype, err)
	}

	switch subtype {
	case extIntegerInfo:
		if len(data) >= 32 {
			rd.charCode = int32(c.order.Uint32(data[28:32]))
		}
	case extFloatInfo:
		if len(data) >= 8 {
			rd.sysmis = math.Float64frombits(c.order.Uint64(data[:8]))
		}
	case extLongNames:
		for _, entry := range strings.Split(string(data), "\t") {
			short, long, ok := strings.Cut(entry, "=")
			if ok {
				rd.longName[strings.ToUpper(short)] = long
			}
		}
	case extVeryLongStrings:
		for _, entry := range strings.Split(string(data), "\t") {
			entry = strings.Trim(entry, "\x00")
			short, width, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			w, err := strconv.Atoi(strings.TrimSpace(width))
			if err != nil {
				return fmt.Errorf("very long string record: %w", err)
			}
			rd.vls[strings.ToUpper(short)] = w
		}
	case extEncoding:
		rd.encoding = strings.TrimSpace(string(data))
	}

	return nil
}

// variables merges raw records into logical variables.
func (rd *reader) variables() ([]*Variable, error) {
	var vars []*Variable

	for i := 0; i < len(rd.raw); {
		raw := rd.raw[i]
		if raw.typ < 0 {
			return nil, fmt.Errorf("variable record %d: unexpected continuation", i+1)
		}

		v := &Variable{
			Name:   raw.short,
			Label:  rd.text(raw.label),
			Width:  int(raw.typ),
			Format: raw.format,
			short:  raw.short,
		}
		if long, ok := rd.longName[strings.ToUpper(raw.short)]; ok {
			v.Name = long
		}
		v.Name = rd.text(v.Name)

		segments := 1
		if w, ok := rd.vls[strings.ToUpper(raw.short)]; ok {
			v.Width = w
			segments = (w + vlsChunk - 1) / vlsChunk
		}

		for s := 0; s < segments; s++ {
			if i >= len(rd.raw) {
				return nil, fmt.Errorf("variable %s: missing string segment %d", v.Name, s)
			}
			slots := 1
			for i++; i < len(rd.raw) && rd.raw[i].typ < 0; i++ {
				slots++
			}
			v.segments = append(v.segments, slots)
		}

		v.missing = raw.missing
		v.Labels = raw.labels
		if v.Labels != nil {
			for k, label := range v.Labels {
				v.Labels[k] = rd.text(label)
			}
		}
		v.Kind = kindOf(v)

		vars = append(vars, v)
	}

	return vars, nil
}

func kindOf(v *Variable) Kind {
	if v.Width > 0 {
		return KindString
	}
	if len(v.Labels) > 0 {
		return KindLabeled
	}

	switch (v.Format >> 16) & 0xff {
	case formatDate, formatADate, formatJDate, formatEDate, formatSDate:
		return KindDate
	case formatDateTime:
		return KindDateTime
	default:
		return KindNumeric
	}
}

// caseData returns the uncompressed case elements.
func (rd *reader) caseData(vars []*Variable) ([]byte, error) {
	c := rd.c
	switch rd.header.Compression {
	case CompressionNone:
		return c.buf[c.pos:], nil
	case CompressionBytecode:
		return rd.bytecode(c.buf[c.pos:]), nil
	default:
		stream, err := rd.zlibBlocks()
		if err != nil {
			return nil, err
		}
		return rd.bytecode(stream), nil
	}
}

// bytecode expands the bytecode compressed stream into 8-byte elements.
func (rd *reader) bytecode(data []byte) []byte {
	var (
		out  bytes.Buffer
		pos  int
		elem = make([]byte, 8)
	)

	for pos+8 <= len(data) {
		codes := data[pos : pos+8]
		pos += 8

		for _, code := range codes {
			switch {
			case code == 0:
			case code == 252:
				return out.Bytes()
			case code == 253:
				if pos+8 > len(data) {
					return out.Bytes()
				}
				out.Write(data[pos : pos+8])
				pos += 8
			case code == 254:
				out.WriteString("        ")
			case code == 255:
				rd.c.order.PutUint64(elem, math.Float64bits(rd.sysmis))
				out.Write(elem)
			default:
				rd.c.order.PutUint64(elem, math.Float64bits(float64(code)-rd.header.Bias))
				out.Write(elem)
			}
		}
	}

	return out.Bytes()
}

// zlibBlocks reads the zsav header and trailer and inflates every block.
func (rd *reader) zlibBlocks() ([]byte, error) {
	c := rd.c
	if _, err := c.int64(); err != nil {
		return nil, fmt.Errorf("zlib header: %w", err)
	}
	trailerOfs, err := c.int64()
	if err != nil {
		return nil, fmt.Errorf("zlib header: %w", err)
	}
	if _, err := c.int64(); err != nil {
		return nil, fmt.Errorf("zlib header: %w", err)
	}

	if trailerOfs < 0 || int(trailerOfs) > len(c.buf) {
		return nil, fmt.Errorf("zlib trailer offset %d out of range", trailerOfs)
	}
	t := &cursor{buf: c.buf, pos: int(trailerOfs), order: c.order}
	if err := t.skip(16); err != nil {
		return nil, fmt.Errorf("zlib trailer: %w", err)
	}
	if _, err := t.int32(); err != nil {
		return nil, fmt.Errorf("zlib trailer: %w", err)
	}
	blocks, err := t.int32()
	if err != nil {
		return nil, fmt.Errorf("zlib trailer: %w", err)
	}

	var out bytes.Buffer
	for i := 0; i < int(blocks); i++ {
		if _, err := t.int64(); err != nil {
			return nil, fmt.Errorf("zlib block %d: %w", i, err)
		}
		compressedOfs, err := t.int64()
		if err != nil {
			return nil, fmt.Errorf("zlib block %d: %w", i, err)
		}
		if _, err := t.int32(); err != nil {
			return nil, fmt.Errorf("zlib block %d: %w", i, err)
		}
		compressedSize, err := t.int32()
		if err != nil {
			return nil, fmt.Errorf("zlib block %d: %w", i, err)
		}

		start, end := int(compressedOfs), int(compressedOfs)+int(compressedSize)
		if start < 0 || end > len(c.buf) || start > end {
			return nil, fmt.Errorf("zlib block %d out of range", i)
		}

		zr, err := zlib.NewReader(bytes.NewReader(c.buf[start:end]))
		if err != nil {
			return nil, fmt.Errorf("zlib block %d: %w", i, err)
		}
		_, err = io.Copy(&out, zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("zlib block %d: %w", i, err)
		}
	}

	return out.Bytes(), nil
}

func (rd *reader) columns(vars []*Variable, elems []byte) (int, [][]any) {
	caseSize := 0
	for _, v := range vars {
		caseSize += v.Slots()
	}

	rows := 0
	if caseSize > 0 {
		rows = len(elems) / (8 * caseSize)
	}
	if rd.header.Cases >= 0 && int(rd.header.Cases) < rows {
		rows = int(rd.header.Cases)
	}

	cols := make([][]any, len(vars))
	for j := range cols {
		cols[j] = make([]any, rows)
	}

	for i := 0; i < rows; i++ {
		pos := i * 8 * caseSize
		for j, v := range vars {
			size := 8 * v.Slots()
			cols[j][i] = rd.value(v, elems[pos:pos+size])
			pos += size
		}
	}

	return rows, cols
}

func (rd *reader) value(v *Variable, elem []byte) any {
	if v.Width == 0 {
		f := math.Float64frombits(rd.c.order.Uint64(elem))
		if f == rd.sysmis || math.IsNaN(f) || v.missing.numeric(f) {
			return nil
		}

		switch v.Kind {
		case KindLabeled:
			if label, ok := v.Labels[numberKey(f)]; ok {
				return label
			}
			return formatNumber(f)
		case KindDate, KindDateTime:
			return fromGregorian(f)
		default:
			return f
		}
	}

	// every segment but the last loses its final padding byte
	var raw []byte
	pos := 0
	for s, slots := range v.segments {
		seg := elem[pos : pos+8*slots]
		pos += 8 * slots
		if s < len(v.segments)-1 {
			seg = seg[:len(seg)-1]
		}
		raw = append(raw, seg...)
	}
	if len(raw) > v.Width {
		raw = raw[:v.Width]
	}

	s := strings.TrimRight(string(raw), " ")
	if v.missing.text(s) {
		return nil
	}
	if label, ok := v.Labels[s]; ok {
		return label
	}
	return rd.text(s)
}

// fromGregorian converts seconds since the start of the Gregorian calendar.
func fromGregorian(secs float64) time.Time {
	whole := math.Floor(secs)
	nsec := int64(math.Round((secs - whole) * 1e9))
	return time.Unix(int64(whole)+gregorian.Unix(), nsec).UTC()
}

// formatNumber renders an unlabeled value of a labeled variable.
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (rd *reader) text(s string) string {
	if rd.decoder == nil {
		return s
	}
	out, err := rd.decoder.String(s)
	if err != nil {
		return s
	}
	return out
}

// codePages maps the character codes of the integer info record to
// encoding names.
var codePages = map[int32]string{
	2:     "utf-8",
	1250:  "windows-1250",
	1251:  "windows-1251",
	1252:  "windows-1252",
	1253:  "windows-1253",
	1254:  "windows-1254",
	1255:  "windows-1255",
	1256:  "windows-1256",
	1257:  "windows-1257",
	1258:  "windows-1258",
	20127: "us-ascii",
	28591: "iso-8859-1",
	28592: "iso-8859-2",
	28605: "iso-8859-15",
	65001: "utf-8",
}

// textDecoder returns a decoder for the file's character set, or nil when
// text is already UTF-8 or the character set is unknown.
func textDecoder(name string, code int32) *encoding.Decoder {
	if name == "" {
		name = codePages[code]
	}
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}
	return enc.NewDecoder()
}
