package main

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftroom/stats-cli/internal/loader"
	"github.com/draftroom/stats-cli/internal/model"
)

var (
	runProvider   string
	runDataset    string
	runAsOf       string
	runParams     []string
	runCorrection bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingestion for a single dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		asOf, err := parseAsOf(runAsOf)
		if err != nil {
			return err
		}
		params, err := parseParams(runParams)
		if err != nil {
			return err
		}

		runner, st, err := initRunner(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result := runner.Run(ctx, runProvider, runDataset, asOf, params, runCorrection)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode result")
		}
		if result.Status == model.RunFailed {
			return eris.Errorf("run failed: %s", result.Error)
		}
		return nil
	},
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(model.DateFormat, raw)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "as-of must be YYYY-MM-DD, got %q", raw)
	}
	return t, nil
}

func parseParams(raw []string) (loader.Params, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(loader.Params, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, eris.Errorf("param must be key=value, got %q", kv)
		}
		params[k] = v
	}
	return params, nil
}

func init() {
	runCmd.Flags().StringVar(&runProvider, "provider", "", "provider slug (required)")
	runCmd.Flags().StringVar(&runDataset, "dataset", "", "dataset slug (required)")
	runCmd.Flags().StringVar(&runAsOf, "as-of", "", "partition date YYYY-MM-DD (default today)")
	runCmd.Flags().StringArrayVar(&runParams, "param", nil, "loader parameter key=value (repeatable)")
	runCmd.Flags().BoolVar(&runCorrection, "correction", false, "supersede an existing partition")
	_ = runCmd.MarkFlagRequired("provider")
	_ = runCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(runCmd)
}
