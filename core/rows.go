package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v15/arrow"
)

// RowRange is a parsed "start:end" selection. Bounds may be negative, in which
// case they count from the end of the table.
type RowRange struct {
	Start int
	End   int
}

// ParseRowRange parses "start:end". Both bounds are required integers.
func ParseRowRange(spec string) (RowRange, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 2 {
		return RowRange{}, fmt.Errorf("invalid row range %q: expected start:end", spec)
	}

	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return RowRange{}, fmt.Errorf("invalid row range %q: start: %w", spec, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return RowRange{}, fmt.Errorf("invalid row range %q: end: %w", spec, err)
	}

	return RowRange{Start: start, End: end}, nil
}

// Bounds resolves the range against a table of length rows and returns the
// half-open [from, to) interval, clamped so that 0 <= from <= to <= length.
func (r RowRange) Bounds(length int) (from, to int) {
	clamp := func(i int) int {
		if i < 0 {
			i += length
			if i < 0 {
				i = 0
			}
		}
		if i > length {
			i = length
		}
		return i
	}

	from, to = clamp(r.Start), clamp(r.End)
	if from > to {
		from = to
	}
	return from, to
}

// SelectRows applies a "start:end" selection to rec. An empty spec selects
// everything. A spec that does not parse is logged as a warning and everything
// is selected as well. The returned record shares rec's buffers and is owned by
// the caller, independently of rec.
func SelectRows(rec arrow.Record, spec string, log Logger) arrow.Record {
	if spec == "" {
		rec.Retain()
		return rec
	}

	rng, err := ParseRowRange(spec)
	if err != nil {
		log.Warnf("ignoring row selection: %s", err)
		rec.Retain()
		return rec
	}

	from, to := rng.Bounds(int(rec.NumRows()))
	return rec.NewSlice(int64(from), int64(to))
}
