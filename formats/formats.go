package formats

import (
	"errors"
	"fmt"

	"github.com/daflip/daflip/core"
)

var errNoValidFormatTags = errors.New("no valid format tags provided")

// registeredDrivers holds implemented drivers - specific drivers register
// themselves in their init functions.
var registeredDrivers = make(map[core.Format]core.Driver)

// register registers a driver under one or more format tags. The first tag is
// canonical, the rest are aliases.
func register(driver core.Driver, tags ...core.Format) error {
	if len(tags) < 1 {
		return errNoValidFormatTags
	}

	invalidCount := 0
	for _, tag := range tags {
		if tag == core.FormatNone {
			invalidCount++
			continue
		}
		registeredDrivers[tag] = driver
	}

	if invalidCount == len(tags) {
		return errNoValidFormatTags
	}

	return nil
}

// Mux is an interface to all internal format drivers.
type Mux struct{}

// Driver returns whatever is registered for the tag.
func (*Mux) Driver(tag core.Format) (core.Driver, bool) {
	d, ok := registeredDrivers[tag]
	return d, ok
}

// Reader returns the reader for tag or an UnsupportedFormat error.
func (m *Mux) Reader(tag core.Format) (core.Reader, error) {
	d, _ := m.Driver(tag)
	r, ok := d.(core.Reader)
	if !ok {
		return nil, core.UnsupportedInputFormat(tag)
	}
	return r, nil
}

// Writer returns the writer for tag or an UnsupportedFormat error.
func (m *Mux) Writer(tag core.Format) (core.Writer, error) {
	d, _ := m.Driver(tag)
	w, ok := d.(core.Writer)
	if !ok {
		return nil, core.UnsupportedOutputFormat(tag)
	}
	return w, nil
}

// AddDriver registers an additional driver under tag.
func (*Mux) AddDriver(tag core.Format, driver core.Driver) error {
	if err := register(driver, tag); err != nil {
		return fmt.Errorf("register %q: %w", tag, err)
	}
	return nil
}

// Tags lists every registered tag.
func (*Mux) Tags() []core.Format {
	tags := make([]core.Format, 0, len(registeredDrivers))
	for tag := range registeredDrivers {
		tags = append(tags, tag)
	}
	return tags
}
