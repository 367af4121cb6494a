package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/qhd-cli/internal/model"
)

var partsType string

var partsCmd = &cobra.Command{
	Use:   "parts <process>",
	Short: "List the part ids available for a process type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dt, ok := model.ParseDocType(partsType)
		if !ok {
			return eris.Errorf("unknown document type %q", partsType)
		}

		env, err := initPipeline(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		r, err := env.Runner(ctx, args[0])
		if err != nil {
			return err
		}
		ids, err := partIDs(ctx, r, dt)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	partsCmd.Flags().StringVar(&partsType, "type", "process", "list parts for this document type")
	rootCmd.AddCommand(partsCmd)
}
