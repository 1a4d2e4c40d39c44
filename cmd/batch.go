package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftroom/stats-cli/internal/model"
)

var (
	batchAsOf  string
	batchForce bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run ingestion for every registered dataset",
	Long:  "Triggers runs for all datasets due per their cadence. One dataset's failure never stops the others.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		asOf, err := parseAsOf(batchAsOf)
		if err != nil {
			return err
		}

		runner, st, err := initRunner(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := runner.RunAll(ctx, asOf, batchForce)
		if err != nil {
			return eris.Wrap(err, "batch run")
		}

		var failed int
		for _, r := range results {
			if r.Status == model.RunFailed {
				failed++
			}
		}
		zap.L().Info("batch complete",
			zap.Int("runs", len(results)),
			zap.Int("failed", failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return eris.Wrap(err, "encode results")
		}
		if failed > 0 {
			return eris.Errorf("batch: %d of %d runs failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchAsOf, "as-of", "", "partition date YYYY-MM-DD (default today)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "run all datasets regardless of cadence")
	rootCmd.AddCommand(batchCmd)
}
