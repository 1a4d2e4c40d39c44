package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/draftroom/stats-cli/internal/crosswalk"
)

var (
	xwalkProvider  string
	xwalkNativeID  string
	xwalkCanonical string
	xwalkOverride  bool
	xwalkSource    string
	xwalkLimit     int
)

var crosswalkCmd = &cobra.Command{
	Use:   "crosswalk",
	Short: "Inspect and curate the entity crosswalk",
}

var crosswalkResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a provider-native identifier",
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

		resolver, err := crosswalk.NewResolver(ctx, st)
		if err != nil {
			return err
		}

		res := resolver.Resolve(xwalkProvider, xwalkNativeID)
		out := map[string]any{
			"provider":  xwalkProvider,
			"native_id": xwalkNativeID,
			"outcome":   res.Outcome,
		}
		if res.CanonicalID != "" {
			out["canonical_id"] = res.CanonicalID
			if entity, ok := resolver.Entity(res.CanonicalID); ok {
				out["entity"] = entity
			}
			if alias, err := st.GetAlias(ctx, xwalkProvider, xwalkNativeID); err == nil && alias != nil {
				out["alias"] = alias
			}
		}
		if len(res.Candidates) > 0 {
			out["candidates"] = res.Candidates
		}
		return printJSON(out)
	},
}

var crosswalkProposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose an alias mapping to a canonical entity",
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

		resolver, err := crosswalk.NewResolver(ctx, st)
		if err != nil {
			return err
		}

		err = resolver.ProposeAlias(ctx, xwalkProvider, xwalkNativeID, xwalkCanonical, crosswalk.ProposalOptions{
			Override: xwalkOverride,
			Source:   xwalkSource,
		})
		if err != nil {
			return eris.Wrap(err, "propose alias")
		}
		return printJSON(map[string]string{
			"provider":     xwalkProvider,
			"native_id":    xwalkNativeID,
			"canonical_id": xwalkCanonical,
			"result":       "accepted",
		})
	},
}

var crosswalkUnresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "List native identifiers awaiting curation",
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

		keys, err := st.ListUnresolved(ctx, xwalkProvider, xwalkLimit)
		if err != nil {
			return eris.Wrap(err, "list unresolved")
		}
		return printJSON(keys)
	},
}

func init() {
	crosswalkResolveCmd.Flags().StringVar(&xwalkProvider, "provider", "", "provider slug (required)")
	crosswalkResolveCmd.Flags().StringVar(&xwalkNativeID, "native-id", "", "provider-native identifier (required)")
	_ = crosswalkResolveCmd.MarkFlagRequired("provider")
	_ = crosswalkResolveCmd.MarkFlagRequired("native-id")

	crosswalkProposeCmd.Flags().StringVar(&xwalkProvider, "provider", "", "provider slug (required)")
	crosswalkProposeCmd.Flags().StringVar(&xwalkNativeID, "native-id", "", "provider-native identifier (required)")
	crosswalkProposeCmd.Flags().StringVar(&xwalkCanonical, "canonical-id", "", "canonical entity identifier (required)")
	crosswalkProposeCmd.Flags().BoolVar(&xwalkOverride, "override", false, "accept even if it contradicts an existing mapping")
	crosswalkProposeCmd.Flags().StringVar(&xwalkSource, "source", "manual", "curation provenance")
	_ = crosswalkProposeCmd.MarkFlagRequired("provider")
	_ = crosswalkProposeCmd.MarkFlagRequired("native-id")
	_ = crosswalkProposeCmd.MarkFlagRequired("canonical-id")

	crosswalkUnresolvedCmd.Flags().StringVar(&xwalkProvider, "provider", "", "filter by provider")
	crosswalkUnresolvedCmd.Flags().IntVar(&xwalkLimit, "limit", 50, "maximum rows")

	crosswalkCmd.AddCommand(crosswalkResolveCmd, crosswalkProposeCmd, crosswalkUnresolvedCmd)
	rootCmd.AddCommand(crosswalkCmd)
}
