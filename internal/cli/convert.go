package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/config"
)

var (
	convertOverwrite bool
	convertVerify    bool
	convertPublish   bool
	convertOptions   []string
)

var convertCmd = &cobra.Command{
	Use:   "convert <source.gdb> <dest.gpkg>",
	Short: "Convert a File GeoDatabase into a GeoPackage",
	Long: `Convert every layer of a File GeoDatabase into a GeoPackage.

--overwrite defaults to true: an existing destination file is deleted first.
With --overwrite=false layers are appended into the existing GeoPackage and
layers it already contains are skipped with a warning.

Write options for feature layers are given as --lco KEY=VALUE:
  GEOMETRY_NAME  name of the geometry column (default geom)
  FID            name of the primary key column (default fid)
  IDENTIFIER     gpkg_contents identifier
  DESCRIPTION    gpkg_contents description`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, func(cfg *config.Config) error {
			flags := cmd.Flags()
			if flags.Changed("overwrite") {
				cfg.Overwrite = convertOverwrite
			}
			if flags.Changed("verify") {
				cfg.Verify = convertVerify
			}
			if flags.Changed("publish") {
				cfg.Publish.Enabled = convertPublish
			}
			for _, pair := range convertOptions {
				if err := cfg.SetWriteOption(pair); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		res, err := a.Convert(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		r := res.Report
		fmt.Fprintf(out, "%s: %d converted, %d skipped, %d records\n",
			r.Destination, len(r.Converted()), len(r.Skipped()), r.Records())
		if res.Verification != nil {
			fmt.Fprintf(out, "verified %d layers\n", len(res.Verification))
		}
		if res.Receipt != nil {
			fmt.Fprintf(out, "published %s\n", res.Receipt.Key)
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().BoolVar(&convertOverwrite, "overwrite", true, "Replace the destination GeoPackage (use --overwrite=false to append)")
	convertCmd.Flags().BoolVar(&convertVerify, "verify", false, "Compare source and destination layers after converting")
	convertCmd.Flags().BoolVar(&convertPublish, "publish", false, "Upload the GeoPackage to the configured publish target")
	convertCmd.Flags().StringArrayVar(&convertOptions, "lco", nil, "Feature layer write option KEY=VALUE (repeatable)")
}
