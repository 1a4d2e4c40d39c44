package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftroom/stats-cli/internal/store"
)

var (
	runsProvider string
	runsDataset  string
	runsStatus   string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List ingestion runs from the run log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		records, err := st.ListRuns(ctx, store.RunFilter{
			Provider: runsProvider,
			Dataset:  runsDataset,
			Status:   runsStatus,
			Limit:    runsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		return printJSON(records)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsProvider, "provider", "", "filter by provider")
	runsCmd.Flags().StringVar(&runsDataset, "dataset", "", "filter by dataset")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "maximum rows")
	rootCmd.AddCommand(runsCmd)
}
