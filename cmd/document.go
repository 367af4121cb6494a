package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/qhd-cli/internal/model"
)

var (
	documentType string
	documentOut  string
)

var documentCmd = &cobra.Command{
	Use:   "document <process> <part-id>",
	Short: "Build one quality hallmark document and print it as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dt, ok := model.ParseDocType(documentType)
		if !ok {
			return eris.Errorf("unknown document type %q", documentType)
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
		doc, err := r.Document(ctx, dt, args[1])
		if err != nil {
			return err
		}

		out := os.Stdout
		if documentOut != "" {
			f, err := os.Create(documentOut)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

func init() {
	documentCmd.Flags().StringVar(&documentType, "type", "process", "document type: process, data or product")
	documentCmd.Flags().StringVarP(&documentOut, "out", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(documentCmd)
}
