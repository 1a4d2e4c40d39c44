package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/draftroom/stats-cli/internal/crosswalk"
	"github.com/draftroom/stats-cli/internal/model"
	"github.com/draftroom/stats-cli/internal/registry"
)

// Columns probed, in order, to build the composite fallback key for rows
// whose native identifier has no curated alias yet.
var (
	nameColumns = []string{"full_name", "player_name", "asset_name", "franchise_name"}
	teamColumns = []string{"team", "franchise"}
)

func rowString(row model.Row, candidates []string) string {
	for _, col := range candidates {
		if v, ok := row[col].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func compositeHint(row model.Row) string {
	name := rowString(row, nameColumns)
	if name == "" {
		return ""
	}
	team := rowString(row, teamColumns)
	position, _ := row["position"].(string)
	return crosswalk.CompositeKey(name, team, position)
}

// annotate resolves each row's native identifier against the crosswalk and
// appends canonical_id and resolved columns. Unresolved keys are nominated
// to the curation queue; neither unresolved nor ambiguous rows block
// publication, they warn.
func (r *Runner) annotate(ctx context.Context, log *zap.Logger, contract *registry.Contract, batch *model.RawBatch, findings *model.Findings) {
	if contract.NativeIDColumn == "" || r.opts.Resolver == nil {
		return
	}

	var unresolved, ambiguous int
	nominated := make(map[string]bool)

	for _, row := range batch.Rows {
		nativeID := fmt.Sprint(row[contract.NativeIDColumn])
		if row[contract.NativeIDColumn] == nil || nativeID == "" {
			row["canonical_id"] = nil
			row["resolved"] = false
			continue
		}

		hint := compositeHint(row)
		res := r.opts.Resolver.ResolveWithHint(contract.Provider, nativeID, hint)
		switch res.Outcome {
		case crosswalk.OutcomeResolved:
			row["canonical_id"] = res.CanonicalID
			row["resolved"] = true
		case crosswalk.OutcomeAmbiguous:
			ambiguous++
			row["canonical_id"] = nil
			row["resolved"] = false
		default:
			unresolved++
			row["canonical_id"] = nil
			row["resolved"] = false
		}

		if res.Outcome != crosswalk.OutcomeResolved && !nominated[nativeID] {
			nominated[nativeID] = true
			if err := r.opts.RunLog.RecordUnresolved(ctx, model.UnresolvedKey{
				Provider:     contract.Provider,
				Dataset:      contract.Dataset,
				NativeID:     nativeID,
				CompositeKey: hint,
			}); err != nil {
				log.Warn("failed to nominate unresolved key",
					zap.String("native_id", nativeID), zap.Error(err))
			}
		}
	}

	batch.AddColumn("canonical_id")
	batch.AddColumn("resolved")

	if unresolved > 0 {
		*findings = append(*findings, model.Finding{
			Check:       "crosswalk_unresolved",
			Severity:    model.SeverityWarn,
			Description: "rows with no curated canonical identity",
			Rows:        unresolved,
		})
	}
	if ambiguous > 0 {
		*findings = append(*findings, model.Finding{
			Check:       "crosswalk_ambiguous",
			Severity:    model.SeverityWarn,
			Description: "rows matching multiple canonical candidates; curation required",
			Rows:        ambiguous,
		})
	}
	if unresolved > 0 || ambiguous > 0 {
		log.Warn("crosswalk annotation incomplete",
			zap.Int("unresolved", unresolved),
			zap.Int("ambiguous", ambiguous),
		)
	}
}
