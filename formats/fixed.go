package formats

import (
	"context"

	"github.com/apache/arrow/go/v15/arrow"

	"github.com/daflip/daflip/core"
)

// Register driver
func init() {
	_ = register(&Fixed{}, core.FormatFixed)
}

var _ core.Reader = (*Fixed)(nil)

// Fixed is recognised so that fixed-width input fails with a clear error
// instead of an unknown format.
type Fixed struct{}

func (*Fixed) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*Fixed) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*Fixed) Read(context.Context, string, *core.ReadOptions) (arrow.Record, error) {
	return nil, core.NotImplementedf("fixed-width format not implemented")
}
