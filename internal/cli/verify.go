package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <source.gdb> <dest.gpkg>",
	Short: "Compare a File GeoDatabase with a converted GeoPackage",
	Long: `Compare record counts and content fingerprints of every source layer
with the same layer in the GeoPackage. Exits non-zero if any layer differs.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, nil)
		if err != nil {
			return err
		}

		results, verr := a.Verify(cmd.Context(), args[0], args[1])

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LAYER\tSOURCE\tDEST\tSTATUS")
		for _, r := range results {
			status := "ok"
			switch {
			case r.Missing:
				status = "missing"
			case !r.Match():
				status = "differs"
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Layer, r.SourceRecords, r.DestRecords, status)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		return verr
	},
}
