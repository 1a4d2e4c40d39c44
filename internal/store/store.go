// Package store persists the run log and the crosswalk reference data in a
// relational database. Two backends exist: postgres for shared deployments
// and sqlite for local/single-operator use, selected by configuration.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/draftroom/stats-cli/internal/config"
	"github.com/draftroom/stats-cli/internal/model"
)

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Provider string
	Dataset  string
	Status   string
	Limit    int
}

// Store is the persistence seam shared by the engine (run log), the
// crosswalk resolver (reference data), and the curation commands.
type Store interface {
	// Run log
	StartRun(ctx context.Context, provider, dataset string, asOf time.Time) (string, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, rowCount int64) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	LastSuccess(ctx context.Context, provider, dataset string) (*time.Time, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error)

	// Crosswalk reference data
	GetAlias(ctx context.Context, provider, nativeID string) (*model.Alias, error)
	ListAliases(ctx context.Context) ([]model.Alias, error)
	InsertAlias(ctx context.Context, alias model.Alias) error
	ListEntities(ctx context.Context) ([]model.Entity, error)
	UpsertEntity(ctx context.Context, entity model.Entity) error
	RecordUnresolved(ctx context.Context, key model.UnresolvedKey) error
	ListUnresolved(ctx context.Context, provider string, limit int) ([]model.UnresolvedKey, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the store selected by configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	case "sqlite", "":
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
