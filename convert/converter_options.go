package convert

import (
	"github.com/apache/arrow/go/v15/arrow"
)

// Reporter shows the user what was loaded when a conversion fails.
type Reporter interface {
	Preview(rec arrow.Record, rows int)
}

type converterConfig struct {
	reporter    Reporter
	onEvent     func(State)
	previewRows int
}

// Option configures a Converter.
type Option func(*converterConfig)

// WithReporter sets the reporter failed conversions are previewed with.
func WithReporter(r Reporter) Option {
	return func(c *converterConfig) {
		c.reporter = r
	}
}

// WithEventCallback registers a function called on every state change.
func WithEventCallback(fn func(State)) Option {
	return func(c *converterConfig) {
		c.onEvent = fn
	}
}

// WithPreviewRows sets how many rows a failure preview shows.
func WithPreviewRows(n int) Option {
	return func(c *converterConfig) {
		if n > 0 {
			c.previewRows = n
		}
	}
}
