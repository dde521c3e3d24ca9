package builders

import (
	"errors"
	"io"

	"github.com/apache/arrow/go/v15/arrow"
)

var errNoNextRecord = errors.New("no next record")

// NextRecords creates next and hasNext functions from provided records.
// Every record handed out is retained for the caller.
func NextRecords(recs []arrow.Record) (func() (arrow.Record, error), func() bool) {
	index := 0

	hasNext := func() bool {
		return index < len(recs)
	}

	next := func() (arrow.Record, error) {
		if !hasNext() {
			return nil, errNoNextRecord
		}

		rec := recs[index]
		rec.Retain()
		index++
		return rec, nil
	}

	return next, hasNext
}

// NextPull creates next and hasNext functions from a pull function that
// reports exhaustion with io.EOF. hasNext reads one record ahead; an error
// from pull is reported by the following call to next, after which the
// iterator is exhausted.
func NextPull(pull func() (arrow.Record, error)) (func() (arrow.Record, error), func() bool) {
	var (
		buffered arrow.Record
		err      error
		fetched  bool
		done     bool
	)

	fetch := func() {
		if fetched || done {
			return
		}

		buffered, err = pull()
		if errors.Is(err, io.EOF) {
			buffered, err = nil, nil
			done = true
			return
		}
		fetched = true
	}

	hasNext := func() bool {
		fetch()
		return fetched
	}

	next := func() (arrow.Record, error) {
		fetch()
		if !fetched {
			return nil, errNoNextRecord
		}

		rec, recErr := buffered, err
		buffered, err, fetched = nil, nil, false
		if recErr != nil {
			done = true
			return nil, recErr
		}
		return rec, nil
	}

	return next, hasNext
}
