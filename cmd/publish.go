package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/qhd-cli/internal/model"
)

var (
	publishTypes         []string
	publishLimit         int
	publishSkipPublished bool
)

var publishCmd = &cobra.Command{
	Use:   "publish <process> [part-id...]",
	Short: "Build and publish documents for the given parts, or every known part",
	Long: "Builds and publishes each requested document type per part. Without part ids every part " +
		"of the process type is published. A failing part is recorded in the failure log and the batch continues.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		types, err := parseDocTypes(publishTypes)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "publish")
		if err != nil {
			return err
		}
		defer env.Close()

		return runPublish(ctx, env, args[0], args[1:], types, publishLimit, publishSkipPublished)
	},
}

func init() {
	publishCmd.Flags().StringSliceVar(&publishTypes, "type", []string{"process"}, "document types to publish: process, data, product")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "max number of parts to publish (0 = all)")
	publishCmd.Flags().BoolVar(&publishSkipPublished, "skip-published", false, "skip parts already published (local records, then the hallmark service)")
	rootCmd.AddCommand(publishCmd)
}

func parseDocTypes(raw []string) ([]model.DocType, error) {
	types := make([]model.DocType, 0, len(raw))
	for _, s := range raw {
		dt, ok := model.ParseDocType(s)
		if !ok {
			return nil, eris.Errorf("unknown document type %q", s)
		}
		types = append(types, dt)
	}
	return types, nil
}

// runPublish publishes every requested document type in turn. Document
// types run one after another so a data document never races the process
// document of the same part.
func runPublish(ctx context.Context, env *pipelineEnv, process string, ids []string, types []model.DocType, limit int, skip bool) error {
	r, err := env.Runner(ctx, process)
	if err != nil {
		return err
	}

	for _, dt := range types {
		parts := ids
		if len(parts) == 0 {
			if parts, err = partIDs(ctx, r, dt); err != nil {
				return eris.Wrapf(err, "list %s parts", process)
			}
		}
		if limit > 0 && len(parts) > limit {
			parts = parts[:limit]
		}

		res, err := env.Publisher.PublishAll(ctx, process, dt, parts, func(ctx context.Context, id string) error {
			return env.publishPart(ctx, r, dt, id, skip)
		})
		if err != nil {
			return err
		}
		zap.L().Info("publish finished",
			zap.String("process", process),
			zap.String("doc_type", string(dt)),
			zap.Int64("succeeded", res.Succeeded),
			zap.Int64("failed", res.Failed),
		)
	}
	return nil
}
