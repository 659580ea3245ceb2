package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var layersCmd = &cobra.Command{
	Use:   "layers <path>",
	Short: "List the layers of a File GeoDatabase or GeoPackage",
	Long: `List layer names in the container's native order.

Paths ending in .gpkg are read as GeoPackages, anything else as a
File GeoDatabase.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, nil)
		if err != nil {
			return err
		}

		names, err := a.Layers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}
