package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
	"github.com/sells-group/qhd-cli/internal/store"
)

var (
	failuresFilter  resilience.FailureFilter
	publishedFilter store.PublishFilter
	publishedType   string
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show the per-part failure log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		total, err := st.CountFailures(ctx)
		if err != nil {
			return err
		}
		entries, err := st.ListFailures(ctx, failuresFilter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tPART\tPROCESS\tTYPE\tKIND\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format(time.RFC3339), e.PartID, e.Process, e.DocType, e.ErrorType, e.Error)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d shown, %d total\n", len(entries), total)
		return nil
	},
}

var publishedCmd = &cobra.Command{
	Use:   "published",
	Short: "Show publish records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if publishedType != "" {
			dt, ok := model.ParseDocType(publishedType)
			if !ok {
				return eris.Errorf("unknown document type %q", publishedType)
			}
			publishedFilter.DocType = dt
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListPublished(ctx, publishedFilter)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tPART\tPROCESS\tTYPE\tOUTCOME\tATTEMPTS\tDOCUMENT")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.PublishedAt.Format(time.RFC3339), r.PartID, r.Process, r.DocType, r.Outcome, r.Attempts, r.DocumentID)
		}
		return w.Flush()
	},
}

func init() {
	failuresCmd.Flags().StringVar(&failuresFilter.PartID, "part", "", "filter by part id")
	failuresCmd.Flags().StringVar(&failuresFilter.Process, "process", "", "filter by process type")
	failuresCmd.Flags().StringVar(&failuresFilter.ErrorType, "kind", "", "filter by error kind: transient or permanent")
	failuresCmd.Flags().IntVar(&failuresFilter.Limit, "limit", 100, "max entries to show")
	rootCmd.AddCommand(failuresCmd)

	publishedCmd.Flags().StringVar(&publishedFilter.PartID, "part", "", "filter by part id")
	publishedCmd.Flags().StringVar(&publishedFilter.Process, "process", "", "filter by process type")
	publishedCmd.Flags().StringVar(&publishedType, "type", "", "filter by document type")
	publishedCmd.Flags().IntVar(&publishedFilter.Limit, "limit", 100, "max records to show")
	rootCmd.AddCommand(publishedCmd)
}
