package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/qhd-cli/internal/catalog"
)

var catalogsCmd = &cobra.Command{
	Use:   "catalogs",
	Short: "List the built-in process catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROCESS\tVERSION\tPART TYPE\tLAYOUT\tSTEPS\tSTREAMS")
		for _, name := range catalog.Builtin() {
			c, err := catalog.Load(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%d\n", c.Process, c.Version, c.PartType, c.Layout, len(c.Steps), len(c.Streams))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogsCmd)
}
