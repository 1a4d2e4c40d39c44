package main

import (
	"context"

	"github.com/draftroom/stats-cli/internal/crosswalk"
	"github.com/draftroom/stats-cli/internal/engine"
	"github.com/draftroom/stats-cli/internal/loader"
	"github.com/draftroom/stats-cli/internal/quality"
	"github.com/draftroom/stats-cli/internal/registry"
	"github.com/draftroom/stats-cli/internal/snapshot"
	"github.com/draftroom/stats-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

func initSnapshots() (*snapshot.Store, error) {
	backend, err := snapshot.Open(cfg.Snapshots.Root, cfg.Snapshots.S3Region)
	if err != nil {
		return nil, err
	}
	return snapshot.New(backend), nil
}

// initRunner wires the full ingestion stack. The caller closes the returned
// store.
func initRunner(ctx context.Context) (*engine.Runner, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}

	snapshots, err := initSnapshots()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	resolver, err := crosswalk.NewResolver(ctx, st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	runner := engine.New(engine.Options{
		Registry:  registry.Default(),
		Loaders:   loader.DefaultSet(cfg),
		Snapshots: snapshots,
		RunLog:    st,
		Resolver:  resolver,
		Gate: quality.Options{
			Strict:         cfg.Quality.Strict,
			MinKeyCoverage: cfg.Quality.MinKeyCoverage,
		},
		Retry:       cfg.Retry.Resilience(),
		Concurrency: cfg.Batch.Concurrency,
	})
	return runner, st, nil
}
