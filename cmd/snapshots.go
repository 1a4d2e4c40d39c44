package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	snapProvider string
	snapDataset  string
	snapDate     string
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect published snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every snapshot for a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := initSnapshots()
		if err != nil {
			return err
		}
		refs, err := store.List(cmd.Context(), snapProvider, snapDataset)
		if err != nil {
			return eris.Wrap(err, "list snapshots")
		}
		return printJSON(refs)
	},
}

var snapshotsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent snapshot for a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := initSnapshots()
		if err != nil {
			return err
		}
		ref, err := store.Latest(cmd.Context(), snapProvider, snapDataset)
		if err != nil {
			return eris.Wrap(err, "latest snapshot")
		}
		if ref == nil {
			return eris.Errorf("no snapshots for %s/%s", snapProvider, snapDataset)
		}
		return printJSON(ref)
	},
}

var snapshotsAsOfCmd = &cobra.Command{
	Use:   "asof",
	Short: "Show the snapshot effective on a given date",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := initSnapshots()
		if err != nil {
			return err
		}
		date, err := parseAsOf(snapDate)
		if err != nil {
			return err
		}
		ref, err := store.AsOf(cmd.Context(), snapProvider, snapDataset, date)
		if err != nil {
			return eris.Wrap(err, "snapshot as of")
		}
		if ref == nil {
			return eris.Errorf("no snapshot for %s/%s on or before %s", snapProvider, snapDataset, date.Format("2006-01-02"))
		}
		return printJSON(ref)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	snapshotsCmd.PersistentFlags().StringVar(&snapProvider, "provider", "", "provider slug (required)")
	snapshotsCmd.PersistentFlags().StringVar(&snapDataset, "dataset", "", "dataset slug (required)")
	_ = snapshotsCmd.MarkPersistentFlagRequired("provider")
	_ = snapshotsCmd.MarkPersistentFlagRequired("dataset")

	snapshotsAsOfCmd.Flags().StringVar(&snapDate, "date", "", "effective date YYYY-MM-DD (required)")
	_ = snapshotsAsOfCmd.MarkFlagRequired("date")

	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsLatestCmd, snapshotsAsOfCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
