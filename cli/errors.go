package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"github.com/daflip/daflip/core"
)

// withHints attaches a user hint for the error classes a user can fix from the
// command line.
func withHints(err error, tags []core.Format) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return errors.WithHint(err, "check that the path exists and is readable")
	case errors.Is(err, core.ErrUnsupportedFormat):
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = string(t)
		}
		slices.Sort(names)
		return errors.WithHintf(err, "pass --input-format or --output-format to override the file extension\nknown formats: %s",
			strings.Join(names, ", "))
	case errors.Is(err, core.ErrNotImplemented):
		return errors.WithHint(err, "run the conversion without chunking or convert to a supported format first")
	}
	return err
}

// printError writes the error line in red followed by its hints.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(w, "%s %s\n", red.Sprint("Error:"), err)

	if hint := errors.FlattenHints(err); hint != "" {
		for _, line := range strings.Split(hint, "\n") {
			fmt.Fprintf(w, "  hint: %s\n", line)
		}
	}
}

func printSuccess(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
}
