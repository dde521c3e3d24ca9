package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/core"
)

func TestResolveFormat(t *testing.T) {
	r := require.New(t)

	testCases := []struct {
		path     string
		override string
		expected core.Format
	}{
		{"data.csv", "", core.FormatCSV},
		{"data.CSV", "", core.FormatCSV},
		{"dir.v2/data.Parquet", "", core.FormatParquet},
		{"data.txt", "parquet", core.FormatParquet},
		{"data.txt", "PARQUET", core.FormatParquet},
		{"archive.csv.gz", "", core.Format("gz")},
		{"noext", "", core.FormatNone},
		{"noext", "csv", core.FormatCSV},
	}

	for _, tc := range testCases {
		r.Equal(tc.expected, core.ResolveFormat(tc.path, tc.override), "%s %s", tc.path, tc.override)
	}
}

func TestErrors_Classes(t *testing.T) {
	r := require.New(t)

	err := core.UnsupportedInputFormat(core.Format("bogus"))
	r.EqualError(err, "unsupported input format: bogus")
	r.ErrorIs(err, core.ErrUnsupportedFormat)

	err = core.UnsupportedOutputFormat(core.FormatNone)
	r.EqualError(err, "unsupported output format: (none)")
	r.ErrorIs(err, core.ErrUnsupportedFormat)

	r.ErrorIs(core.NotImplementedf("x %d", 1), core.ErrNotImplemented)
	r.ErrorIs(core.MalformedSchemaf("x"), core.ErrMalformedSchema)
	r.ErrorIs(core.InvalidOptionf("x"), core.ErrInvalidOption)
	r.NotErrorIs(core.InvalidOptionf("x"), core.ErrNotImplemented)
}
