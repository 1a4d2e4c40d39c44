// Package quality validates raw batches against their dataset contracts
// before publication. Any fail finding blocks the batch.
package quality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/draftroom/stats-cli/internal/model"
	"github.com/draftroom/stats-cli/internal/registry"
)

// Options holds the gate's operational knobs, injected from configuration.
type Options struct {
	// Strict turns unknown-column findings from warn into fail.
	Strict bool
	// MinKeyCoverage is the minimum fraction of rows whose primary-key
	// columns are all non-null.
	MinKeyCoverage float64
}

// Checks run in a fixed order: schema compliance first because the key
// checks assume column presence, then primary-key uniqueness, then key
// coverage.
const (
	CheckSchema      = "schema_compliance"
	CheckKeyUnique   = "primary_key_uniqueness"
	CheckKeyCoverage = "key_coverage"
)

// pkSep joins primary-key values into a tuple key. A unit separator keeps
// composite tuples unambiguous for values containing common punctuation.
const pkSep = "\x1f"

// Validate runs all checks against the batch and returns findings in check
// order. Publication must be aborted when Findings.Failed() is true.
func Validate(batch *model.RawBatch, contract *registry.Contract, opts Options) model.Findings {
	findings := model.Findings{}
	findings = append(findings, checkSchema(batch, contract, opts)...)
	findings = append(findings, checkKeyUniqueness(batch, contract))
	findings = append(findings, checkKeyCoverage(batch, contract, opts))
	return findings
}

func checkSchema(batch *model.RawBatch, contract *registry.Contract, opts Options) model.Findings {
	var findings model.Findings

	// Every contract column must be present.
	var missing []string
	for _, col := range contract.Columns {
		if !batch.HasColumn(col.Name) {
			missing = append(missing, col.Name)
		}
	}
	if len(missing) > 0 {
		findings = append(findings, model.Finding{
			Check:       CheckSchema,
			Severity:    model.SeverityFail,
			Description: fmt.Sprintf("missing contract columns: %s", strings.Join(missing, ", ")),
		})
	}

	// Unknown columns are schema evolution: tolerated and flagged, unless strict.
	var unknown []string
	for _, name := range batch.Columns {
		if _, ok := contract.ColumnType(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sev := model.SeverityWarn
		if opts.Strict {
			sev = model.SeverityFail
		}
		findings = append(findings, model.Finding{
			Check:       CheckSchema,
			Severity:    sev,
			Description: fmt.Sprintf("columns outside contract: %s", strings.Join(unknown, ", ")),
		})
	}

	// Value types must be compatible with the declared semantic type.
	badValues := 0
	badCols := map[string]bool{}
	for _, row := range batch.Rows {
		for _, col := range contract.Columns {
			v, ok := row[col.Name]
			if !ok {
				continue
			}
			if !col.Type.Compatible(v) {
				badValues++
				badCols[col.Name] = true
			}
		}
	}
	if badValues > 0 {
		cols := make([]string, 0, len(badCols))
		for c := range badCols {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		findings = append(findings, model.Finding{
			Check:       CheckSchema,
			Severity:    model.SeverityFail,
			Description: fmt.Sprintf("type-incompatible values in columns: %s", strings.Join(cols, ", ")),
			Rows:        badValues,
		})
	}

	if len(findings) == 0 {
		findings = append(findings, model.Finding{
			Check:       CheckSchema,
			Severity:    model.SeverityPass,
			Description: "all contract columns present with compatible types",
		})
	}
	return findings
}

func checkKeyUniqueness(batch *model.RawBatch, contract *registry.Contract) model.Finding {
	seen := make(map[string]bool, len(batch.Rows))
	dupes := 0
	for _, row := range batch.Rows {
		key := pkTuple(row, contract.PrimaryKey)
		if seen[key] {
			dupes++
			continue
		}
		seen[key] = true
	}

	if dupes > 0 {
		return model.Finding{
			Check:       CheckKeyUnique,
			Severity:    model.SeverityFail,
			Description: fmt.Sprintf("duplicate primary-key tuples on (%s)", strings.Join(contract.PrimaryKey, ", ")),
			Rows:        dupes,
		}
	}
	return model.Finding{
		Check:       CheckKeyUnique,
		Severity:    model.SeverityPass,
		Description: "primary-key tuples unique",
	}
}

func checkKeyCoverage(batch *model.RawBatch, contract *registry.Contract, opts Options) model.Finding {
	if len(batch.Rows) == 0 {
		return model.Finding{
			Check:       CheckKeyCoverage,
			Severity:    model.SeverityWarn,
			Description: "empty batch",
		}
	}

	covered := 0
	for _, row := range batch.Rows {
		if pkComplete(row, contract.PrimaryKey) {
			covered++
		}
	}
	coverage := float64(covered) / float64(len(batch.Rows))

	if coverage < opts.MinKeyCoverage {
		return model.Finding{
			Check:       CheckKeyCoverage,
			Severity:    model.SeverityFail,
			Description: fmt.Sprintf("key coverage %.3f below threshold %.3f", coverage, opts.MinKeyCoverage),
			Rows:        len(batch.Rows) - covered,
		}
	}
	return model.Finding{
		Check:       CheckKeyCoverage,
		Severity:    model.SeverityPass,
		Description: fmt.Sprintf("key coverage %.3f", coverage),
	}
}

func pkTuple(row model.Row, pk []string) string {
	parts := make([]string, len(pk))
	for i, col := range pk {
		parts[i] = fmt.Sprint(row[col])
	}
	return strings.Join(parts, pkSep)
}

func pkComplete(row model.Row, pk []string) bool {
	for _, col := range pk {
		v, ok := row[col]
		if !ok || v == nil {
			return false
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}
