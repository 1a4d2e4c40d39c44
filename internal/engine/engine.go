// Package engine orchestrates ingestion runs: parameter validation, retried
// fetch, quality gate, crosswalk annotation, and snapshot publication, with
// the run log as the system of record for outcomes.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/draftroom/stats-cli/internal/crosswalk"
	"github.com/draftroom/stats-cli/internal/loader"
	"github.com/draftroom/stats-cli/internal/model"
	"github.com/draftroom/stats-cli/internal/quality"
	"github.com/draftroom/stats-cli/internal/registry"
	"github.com/draftroom/stats-cli/internal/resilience"
	"github.com/draftroom/stats-cli/internal/snapshot"
)

// RunLog is the slice of the relational store the engine needs.
type RunLog interface {
	StartRun(ctx context.Context, provider, dataset string, asOf time.Time) (string, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, rowCount int64) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	LastSuccess(ctx context.Context, provider, dataset string) (*time.Time, error)
	RecordUnresolved(ctx context.Context, key model.UnresolvedKey) error
}

// Resolver is the crosswalk surface the engine consumes.
type Resolver interface {
	ResolveWithHint(provider, nativeID, compositeKey string) crosswalk.Resolution
}

// Options configures a Runner.
type Options struct {
	Registry    *registry.Registry
	Loaders     *loader.Set
	Snapshots   *snapshot.Store
	RunLog      RunLog
	Resolver    Resolver
	Gate        quality.Options
	Retry       resilience.RetryConfig
	Concurrency int
}

// Runner executes ingestion runs. Safe for concurrent use; runs for the same
// (provider, dataset) are serialized so identical triggers converge instead
// of racing.
type Runner struct {
	opts Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Runner{opts: opts, locks: make(map[string]*sync.Mutex)}
}

func (r *Runner) lockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// Run executes one ingestion run end to end and always returns a RunResult;
// failures are encoded in the result, never panics or bare errors.
func (r *Runner) Run(ctx context.Context, provider, dataset string, asOf time.Time, params loader.Params, correction bool) *model.RunResult {
	started := time.Now().UTC()
	result := &model.RunResult{
		Provider:  provider,
		Dataset:   dataset,
		AsOf:      asOf.UTC(),
		StartedAt: started,
	}
	finish := func(status model.RunStatus) *model.RunResult {
		result.Status = status
		result.CompletedAt = time.Now().UTC()
		return result
	}

	contract, err := r.opts.Registry.Resolve(provider, dataset)
	if err != nil {
		result.Error = err.Error()
		return finish(model.RunFailed)
	}
	l, ok := r.opts.Loaders.Get(contract.LoaderPath)
	if !ok {
		result.Error = fmt.Sprintf("engine: no loader registered at %q", contract.LoaderPath)
		return finish(model.RunFailed)
	}

	// Reject bad parameters before any run-log or network work.
	if err := loader.ValidateParams(l, params); err != nil {
		result.Error = err.Error()
		return finish(model.RunFailed)
	}

	// Serialize runs for the same identity; a duplicate trigger waits and
	// then converges via snapshot idempotence.
	lock := r.lockFor(contract.Key())
	lock.Lock()
	defer lock.Unlock()

	runID, err := r.opts.RunLog.StartRun(ctx, provider, dataset, asOf)
	if err != nil {
		result.Error = err.Error()
		return finish(model.RunFailed)
	}
	result.RunID = runID

	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("provider", provider),
		zap.String("dataset", dataset),
	)
	log.Info("run started", zap.Time("as_of", asOf))

	batch, err := r.fetch(ctx, l, params)
	if err != nil {
		if loader.IsSourceUnavailable(err) {
			return r.fallback(ctx, log, contract, result, err, finish)
		}
		log.Error("fetch failed", zap.Error(err))
		result.Error = err.Error()
		_ = r.opts.RunLog.FailRun(ctx, runID, result.Error)
		return finish(model.RunFailed)
	}
	result.RowCount = int64(len(batch.Rows))

	findings := quality.Validate(batch, contract, r.opts.Gate)
	result.Findings = findings
	if findings.Failed() {
		log.Error("quality gate failed", zap.Int("findings", len(findings)))
		result.Error = "quality gate failed"
		_ = r.opts.RunLog.FailRun(ctx, runID, result.Error)
		return finish(model.RunFailed)
	}

	r.annotate(ctx, log, contract, batch, &result.Findings)

	ref, err := r.opts.Snapshots.Publish(ctx, snapshot.PublishRequest{
		Provider:      provider,
		Dataset:       dataset,
		AsOf:          asOf,
		Fields:        publishFields(contract, batch),
		Rows:          batch.Rows,
		LoaderPath:    batch.LoaderPath,
		SourceName:    batch.SourceName,
		SourceVersion: batch.SourceVersion,
		CapturedAt:    batch.CapturedAt,
		Correction:    correction,
	})
	if err != nil {
		log.Error("publish failed", zap.Error(err))
		result.Error = err.Error()
		_ = r.opts.RunLog.FailRun(ctx, runID, result.Error)
		return finish(model.RunFailed)
	}
	result.Snapshot = ref

	status := model.RunPublished
	if result.Findings.Warned() {
		status = model.RunPublishedWarn
	}
	if err := r.opts.RunLog.CompleteRun(ctx, runID, status, result.RowCount); err != nil {
		log.Warn("run log update failed", zap.Error(err))
	}
	log.Info("run complete",
		zap.String("status", string(status)),
		zap.Int64("rows", result.RowCount),
		zap.String("content_id", ref.ContentID),
	)
	return finish(status)
}

// fetch performs the retried download. Transient exhaustion is converted to
// SourceUnavailableError; non-transient errors pass through untouched.
func (r *Runner) fetch(ctx context.Context, l loader.Loader, params loader.Params) (*model.RawBatch, error) {
	cfg := r.opts.Retry
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = resilience.Defaults().MaxAttempts
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.Logger(l.Provider(), l.Dataset())
	}
	batch, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.RawBatch, error) {
		return l.Fetch(ctx, params)
	})
	if err != nil && resilience.IsTransient(err) {
		return nil, &loader.SourceUnavailableError{
			Provider: l.Provider(),
			Dataset:  l.Dataset(),
			Attempts: cfg.MaxAttempts,
			Err:      err,
		}
	}
	return batch, err
}

// fallback serves the last known good snapshot when the source is down. The
// store is left untouched; the stale serve is flagged in the result and the
// run log so it is never mistaken for a fresh publish.
func (r *Runner) fallback(ctx context.Context, log *zap.Logger, contract *registry.Contract, result *model.RunResult, fetchErr error, finish func(model.RunStatus) *model.RunResult) *model.RunResult {
	latest, err := r.opts.Snapshots.Latest(ctx, contract.Provider, contract.Dataset)
	if err != nil || latest == nil {
		log.Error("source unavailable and no prior snapshot", zap.Error(fetchErr))
		result.Error = fetchErr.Error()
		_ = r.opts.RunLog.FailRun(ctx, result.RunID, result.Error)
		return finish(model.RunFailed)
	}

	log.Warn("source unavailable, serving last known good",
		zap.Error(fetchErr),
		zap.String("fallback_date", latest.Date()),
		zap.String("content_id", latest.ContentID),
	)
	result.Snapshot = latest
	result.RowCount = latest.Meta.RowCount
	result.Error = fetchErr.Error()
	result.Findings = append(result.Findings, model.Finding{
		Check:       "stale_data",
		Severity:    model.SeverityWarn,
		Description: fmt.Sprintf("source unavailable; serving snapshot from %s", latest.Date()),
	})
	if err := r.opts.RunLog.CompleteRun(ctx, result.RunID, model.RunLKGFallback, result.RowCount); err != nil {
		log.Warn("run log update failed", zap.Error(err))
	}
	return finish(model.RunLKGFallback)
}

// publishFields appends the crosswalk annotation columns to the contract
// schema.
func publishFields(contract *registry.Contract, batch *model.RawBatch) []snapshot.Field {
	fields := make([]snapshot.Field, 0, len(contract.Columns)+2)
	for _, col := range contract.Columns {
		fields = append(fields, snapshot.Field{Name: col.Name, Type: col.Type})
	}
	if batch.HasColumn("canonical_id") {
		fields = append(fields,
			snapshot.Field{Name: "canonical_id", Type: registry.TypeString},
			snapshot.Field{Name: "resolved", Type: registry.TypeBool},
		)
	}
	return fields
}

// ScheduleDecision explains whether a dataset is due.
type ScheduleDecision struct {
	Contract *registry.Contract
	Due      bool
	LastRun  *time.Time
}

// Due checks every registered contract against its cadence and the run log.
func (r *Runner) Due(ctx context.Context, now time.Time) ([]ScheduleDecision, error) {
	var out []ScheduleDecision
	for _, contract := range r.opts.Registry.All() {
		last, err := r.opts.RunLog.LastSuccess(ctx, contract.Provider, contract.Dataset)
		if err != nil {
			return nil, err
		}
		due := last == nil || now.Sub(*last) >= contract.Cadence.Interval()
		out = append(out, ScheduleDecision{Contract: contract, Due: due, LastRun: last})
	}
	return out, nil
}

// RunAll triggers runs for every registered dataset, bounded by the
// configured concurrency. With force false, datasets not yet due per their
// cadence are skipped. One dataset's failure never stops the others.
func (r *Runner) RunAll(ctx context.Context, asOf time.Time, force bool) ([]*model.RunResult, error) {
	decisions, err := r.Due(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	results := make([]*model.RunResult, len(decisions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, d := range decisions {
		if !force && !d.Due {
			zap.L().Debug("dataset not due, skipping",
				zap.String("provider", d.Contract.Provider),
				zap.String("dataset", d.Contract.Dataset),
			)
			continue
		}
		i, contract := i, d.Contract
		g.Go(func() error {
			results[i] = r.Run(gctx, contract.Provider, contract.Dataset, asOf, nil, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out, nil
}
