// Package loader implements the per-provider fetch and normalize step. Each
// loader performs a single fetch attempt and shapes the provider payload into
// a RawBatch matching its dataset contract; retry and fallback policy live in
// the engine, not here.
package loader

import (
	"context"

	"github.com/draftroom/stats-cli/internal/model"
)

// Params are the caller-supplied run parameters, such as season or week.
type Params map[string]string

// Get returns the named parameter or def when unset.
func (p Params) Get(name, def string) string {
	if v, ok := p[name]; ok && v != "" {
		return v
	}
	return def
}

// Loader fetches one dataset from one provider. Implementations make exactly
// one attempt per Fetch call and surface transient source failures with
// resilience.TransientError so the engine's retry ceiling governs
// re-attempts.
type Loader interface {
	// Provider is the provider slug, e.g. "statsfeed".
	Provider() string

	// Dataset is the dataset slug, e.g. "weekly_stats".
	Dataset() string

	// LoaderPath is the stable dotted identifier recorded in snapshot
	// sidecars, e.g. "statsfeed.weekly_stats".
	LoaderPath() string

	// SourceName identifies the upstream source for provenance.
	SourceName() string

	// Params lists the parameter names this loader recognizes.
	Params() []string

	// Fetch downloads and normalizes one batch.
	Fetch(ctx context.Context, params Params) (*model.RawBatch, error)
}

// ValidateParams rejects parameters the loader does not declare. This runs
// before any network work so a typo never costs a fetch.
func ValidateParams(l Loader, params Params) error {
	recognized := l.Params()
	ok := make(map[string]bool, len(recognized))
	for _, name := range recognized {
		ok[name] = true
	}
	for name := range params {
		if !ok[name] {
			return &InvalidParameterError{
				Provider:   l.Provider(),
				Dataset:    l.Dataset(),
				Name:       name,
				Recognized: recognized,
			}
		}
	}
	return nil
}
