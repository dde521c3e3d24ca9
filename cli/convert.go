package cli

import (
	"github.com/spf13/cobra"

	"github.com/daflip/daflip/convert"
)

func newConvertCommand(e *env) *cobra.Command {
	var (
		opts             convert.Options
		compressionLevel int
		tableNumber      int
	)

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "convert a data file to another format",
		Long: `Convert a data file to another format.

Examples:
  daflip convert data.csv output.parquet --compression snappy
  daflip convert large.csv output.csv --input-chunk-size 10000
  daflip convert data.xlsx output.csv --sheet-name Sheet1 --rows 0:100
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("compression-level") {
				opts.CompressionLevel = &compressionLevel
			}
			if cmd.Flags().Changed("table-number") {
				opts.Table = &tableNumber
			}

			if err := e.converter().Convert(cmd.Context(), args[0], args[1], &opts); err != nil {
				return e.fail(err)
			}

			printSuccess(e.stdout, "Conversion successful! Output written to %s", args[1])
			return nil
		},
	}

	f := cmd.Flags()
	addSourceFlags(f, &opts.InputFormat, &opts.Sheet, &tableNumber)
	f.StringVar(&opts.OutputFormat, "output-format", "", "override output format")
	f.StringVar(&opts.Compression, "compression", "", "compression codec of the output")
	f.IntVar(&compressionLevel, "compression-level", 0, "compression level of the output")
	f.StringVar(&opts.Rows, "rows", "", "row selection, e.g. 0:100")
	f.BoolVar(&opts.SASKeepBytes, "sas-keep-bytes", false, "keep sas string columns as bytes")
	f.IntVar(&opts.InputChunkSize, "input-chunk-size", 0, "rows per chunk to read (default: all at once)")
	f.IntVar(&opts.OutputChunkSize, "output-chunk-size", 0, "rows per chunk to write (default: all at once)")
	f.StringVar(&opts.SchemaFile, "schema-file", "", "json schema used when reading")

	return cmd
}
