// Package cli implements the daflip command line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/daflip/daflip/config"
	"github.com/daflip/daflip/convert"
	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/formats"
	"github.com/daflip/daflip/logging"
)

// errExit is returned by commands that already reported their failure.
type errExit struct{ error }

// env carries everything the commands share.
type env struct {
	stdout io.Writer
	stderr io.Writer
	config *config.Config
	log    core.Logger
	mux    *formats.Mux
}

func (e *env) converter() *convert.Converter {
	return convert.New(e.mux, e.log,
		convert.WithReporter(newTablePreview(e.stderr)),
		convert.WithPreviewRows(e.config.PreviewRows),
	)
}

// fail reports err and turns it into an exit error.
func (e *env) fail(err error) error {
	printError(e.stderr, withHints(err, e.mux.Tags()))
	return errExit{err}
}

func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "daflip [command] (flags)",
		Short: "convert tabular data between file formats",
		Long: `Convert tabular data between file formats.

Formats are detected from file extensions unless overridden.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)

	root.AddCommand(
		newConvertCommand(e),
		newSchemaCommand(e),
	)
	return root
}

// addSourceFlags registers the flags selecting what is read from the input.
func addSourceFlags(f *pflag.FlagSet, inputFormat, sheet *string, table *int) {
	f.StringVar(inputFormat, "input-format", "", "override input format")
	f.StringVar(sheet, "sheet-name", "", "excel sheet name")
	f.IntVar(table, "table-number", 0, "html table number, zero based")
}

// Run executes the command line and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		printError(stderr, err)
		return 1
	}

	return run(args, &env{
		stdout: stdout,
		stderr: stderr,
		config: cfg,
		log:    logging.New(cfg.LogLevel, cfg.LogFormat, stderr),
		mux:    new(formats.Mux),
	})
}

func run(args []string, e *env) int {
	root := newRootCommand(e)
	root.SetArgs(args)

	if err := root.ExecuteContext(context.Background()); err != nil {
		var exit errExit
		if !errors.As(err, &exit) {
			// usage errors from cobra itself
			printError(e.stderr, err)
		}
		return 1
	}
	return 0
}

// Main is the entry point of the daflip binary.
func Main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}
