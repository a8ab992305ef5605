package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"census-typology/internal/service/typology"
	"census-typology/internal/tablefile"
)

func newAggregateStoreysCmd() *cobra.Command {
	var dominant bool
	cmd := &cobra.Command{
		Use:   "aggregate-storeys <input.csv> <output.csv>",
		Short: "Merge the storey classes of a saved typology table",
		Long: "Reads a disaggregated or summary table written by 'run', merges typology\n" +
			"columns that differ only in their storey class (e.g. MUR/H:1 and MUR/H:2\n" +
			"become MUR) and writes the result.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := tablefile.ReadFile(args[0], tablefile.KnownKeyColumns())
			if err != nil {
				return err
			}
			out := typology.AggregateStoreys(in)
			if dominant {
				out = typology.DominantTypology(out)
			}
			if err := tablefile.WriteFile(args[1], out); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]interface{}{
					"input":      args[0],
					"output":     args[1],
					"rows":       len(out.Rows),
					"typologies": out.Typologies(),
				})
			}
			_, _ = fmt.Fprintf(os.Stdout, "wrote %s: %d rows, %d typologies (from %d)\n",
				args[1], len(out.Rows), len(out.Typologies()), len(in.Typologies()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dominant, "dominant", false, "Write the dominant typology indicator instead of counts")
	return cmd
}
