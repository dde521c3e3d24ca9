package core

import (
	"io/fs"

	"github.com/cockroachdb/errors"
)

// Error classes. Concrete errors carry one of these as a mark, so callers test
// with errors.Is regardless of how much context was wrapped around them.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNotImplemented    = errors.New("not implemented")
	ErrMalformedSchema   = errors.New("malformed schema")
	ErrInvalidOption     = errors.New("invalid option")
)

// UnsupportedInputFormat is returned when no reader is registered for a tag.
func UnsupportedInputFormat(f Format) error {
	return errors.Mark(errors.Newf("unsupported input format: %s", displayFormat(f)), ErrUnsupportedFormat)
}

// UnsupportedOutputFormat is returned when no writer is registered for a tag.
func UnsupportedOutputFormat(f Format) error {
	return errors.Mark(errors.Newf("unsupported output format: %s", displayFormat(f)), ErrUnsupportedFormat)
}

// NotImplementedf builds an error of the ErrNotImplemented class.
func NotImplementedf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotImplemented)
}

// MalformedSchemaf builds an error of the ErrMalformedSchema class.
func MalformedSchemaf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedSchema)
}

// InvalidOptionf builds an error of the ErrInvalidOption class.
func InvalidOptionf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidOption)
}

// MarkNotFound tags file-system "does not exist" errors with ErrNotFound and
// returns every other error untouched.
func MarkNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Mark(err, ErrNotFound)
	}
	return err
}

func displayFormat(f Format) string {
	if f == FormatNone {
		return "(none)"
	}
	return string(f)
}
