package cli

import (
	"github.com/spf13/cobra"

	"github.com/daflip/daflip/convert"
)

func newSchemaCommand(e *env) *cobra.Command {
	var (
		opts        convert.SchemaOptions
		tableNumber int
	)

	cmd := &cobra.Command{
		Use:   "schema <input> <output>",
		Short: "infer the schema of a data file and export it as json",
		Long: `Infer the schema of a data file and export it as json.

Only the first --nrows rows are sampled.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("table-number") {
				opts.Table = &tableNumber
			}

			if err := e.converter().InferSchema(cmd.Context(), args[0], args[1], &opts); err != nil {
				return e.fail(err)
			}

			printSuccess(e.stdout, "Schema exported to %s", args[1])
			return nil
		},
	}

	f := cmd.Flags()
	addSourceFlags(f, &opts.InputFormat, &opts.Sheet, &tableNumber)
	f.IntVar(&opts.NRows, "nrows", convert.DefaultSchemaRows, "number of rows used for inference")

	return cmd
}
