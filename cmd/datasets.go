package main

import (
	"github.com/spf13/cobra"

	"github.com/draftroom/stats-cli/internal/registry"
)

var datasetsProvider string

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List registered dataset contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		contracts, err := registry.Default().Select(datasetsProvider, nil)
		if err != nil {
			return err
		}

		type summary struct {
			Provider   string   `json:"provider"`
			Dataset    string   `json:"dataset"`
			LoaderPath string   `json:"loader_path"`
			PrimaryKey []string `json:"primary_key"`
			Columns    []string `json:"columns"`
			Cadence    string   `json:"cadence"`
		}
		out := make([]summary, 0, len(contracts))
		for _, c := range contracts {
			out = append(out, summary{
				Provider:   c.Provider,
				Dataset:    c.Dataset,
				LoaderPath: c.LoaderPath,
				PrimaryKey: c.PrimaryKey,
				Columns:    c.ColumnNames(),
				Cadence:    string(c.Cadence),
			})
		}
		return printJSON(out)
	},
}

func init() {
	datasetsCmd.Flags().StringVar(&datasetsProvider, "provider", "", "filter by provider")
	rootCmd.AddCommand(datasetsCmd)
}
