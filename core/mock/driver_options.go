package mock

import (
	"github.com/daflip/daflip/core"
)

type driverConfig struct {
	readErr      error
	writeErr     error
	chunkErr     error
	readPartial  int
	readOptions  core.OptionSet
	writeOptions core.OptionSet
}

type DriverOption func(*driverConfig)

// DriverWithReadError makes every read fail with err.
func DriverWithReadError(err error) DriverOption {
	return func(c *driverConfig) {
		c.readErr = err
	}
}

// DriverWithWriteError makes every write and append fail with err.
func DriverWithWriteError(err error) DriverOption {
	return func(c *driverConfig) {
		c.writeErr = err
	}
}

// DriverWithChunkError makes chunk streams fail with err after n chunks.
func DriverWithChunkError(n int, err error) DriverOption {
	return func(c *driverConfig) {
		c.readPartial = n
		c.chunkErr = err
	}
}

func DriverWithReadOptions(opts ...core.Option) DriverOption {
	return func(c *driverConfig) {
		c.readOptions = core.NewOptionSet(opts...)
	}
}

func DriverWithWriteOptions(opts ...core.Option) DriverOption {
	return func(c *driverConfig) {
		c.writeOptions = core.NewOptionSet(opts...)
	}
}
