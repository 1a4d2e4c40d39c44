package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftroom/stats-cli/internal/crosswalk"
	"github.com/draftroom/stats-cli/internal/loader"
	"github.com/draftroom/stats-cli/internal/model"
	"github.com/draftroom/stats-cli/internal/quality"
	"github.com/draftroom/stats-cli/internal/registry"
	"github.com/draftroom/stats-cli/internal/resilience"
	"github.com/draftroom/stats-cli/internal/snapshot"
)

// fakeLoader returns a scripted sequence of batches and errors.
type fakeLoader struct {
	provider string
	dataset  string
	params   []string

	mu      sync.Mutex
	calls   int
	results []func() (*model.RawBatch, error)
}

func (f *fakeLoader) Provider() string   { return f.provider }
func (f *fakeLoader) Dataset() string    { return f.dataset }
func (f *fakeLoader) LoaderPath() string { return f.provider + "." + f.dataset }
func (f *fakeLoader) SourceName() string { return f.provider + "-test" }
func (f *fakeLoader) Params() []string   { return f.params }

func (f *fakeLoader) Fetch(ctx context.Context, params loader.Params) (*model.RawBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i]()
}

// fakeRunLog records run-log calls in memory.
type fakeRunLog struct {
	mu         sync.Mutex
	started    int
	completed  map[string]model.RunStatus
	failed     map[string]string
	last       map[string]*time.Time
	unresolved []model.UnresolvedKey
}

func newFakeRunLog() *fakeRunLog {
	return &fakeRunLog{
		completed: make(map[string]model.RunStatus),
		failed:    make(map[string]string),
		last:      make(map[string]*time.Time),
	}
}

func (f *fakeRunLog) StartRun(ctx context.Context, provider, dataset string, asOf time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return provider + "/" + dataset + "/run", nil
}

func (f *fakeRunLog) CompleteRun(ctx context.Context, runID string, status model.RunStatus, rowCount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[runID] = status
	return nil
}

func (f *fakeRunLog) FailRun(ctx context.Context, runID string, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[runID] = errMsg
	return nil
}

func (f *fakeRunLog) LastSuccess(ctx context.Context, provider, dataset string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[provider+"/"+dataset], nil
}

func (f *fakeRunLog) RecordUnresolved(ctx context.Context, key model.UnresolvedKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unresolved = append(f.unresolved, key)
	return nil
}

// fakeResolver resolves a fixed alias map.
type fakeResolver struct {
	known map[string]string // nativeID -> canonicalID
}

func (f *fakeResolver) ResolveWithHint(provider, nativeID, compositeKey string) crosswalk.Resolution {
	if id, ok := f.known[nativeID]; ok {
		return crosswalk.Resolution{Outcome: crosswalk.OutcomeResolved, CanonicalID: id}
	}
	return crosswalk.Resolution{Outcome: crosswalk.OutcomeUnresolved}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.Register(&registry.Contract{
		Provider:   "statsfeed",
		Dataset:    "weekly_stats",
		LoaderPath: "statsfeed.weekly_stats",
		PrimaryKey: []string{"player_id", "week"},
		Columns: []registry.Column{
			{Name: "player_id", Type: registry.TypeString},
			{Name: "week", Type: registry.TypeInt},
			{Name: "points", Type: registry.TypeFloat},
		},
		Cadence:        registry.Daily,
		NativeIDColumn: "player_id",
		Entity:         model.EntityPlayer,
	}))
	return r
}

func goodBatch(rows ...model.Row) *model.RawBatch {
	if rows == nil {
		rows = []model.Row{
			{"player_id": "sf-1", "week": int64(1), "points": 10.5},
			{"player_id": "sf-2", "week": int64(1), "points": 4.0},
		}
	}
	return &model.RawBatch{
		Provider:   "statsfeed",
		Dataset:    "weekly_stats",
		CapturedAt: time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC),
		SourceName: "statsfeed-test",
		LoaderPath: "statsfeed.weekly_stats",
		Columns:    []string{"player_id", "week", "points"},
		Rows:       rows,
	}
}

type harness struct {
	runner *Runner
	runlog *fakeRunLog
	snaps  *snapshot.Store
	loader *fakeLoader
}

func newHarness(t *testing.T, results ...func() (*model.RawBatch, error)) *harness {
	t.Helper()
	if len(results) == 0 {
		results = []func() (*model.RawBatch, error){
			func() (*model.RawBatch, error) { return goodBatch(), nil },
		}
	}
	fl := &fakeLoader{provider: "statsfeed", dataset: "weekly_stats", params: []string{"season", "week"}, results: results}
	loaders := loader.NewSet()
	loaders.Add(fl)

	runlog := newFakeRunLog()
	snaps := snapshot.New(snapshot.NewLocal(t.TempDir()))

	runner := New(Options{
		Registry:  testRegistry(t),
		Loaders:   loaders,
		Snapshots: snaps,
		RunLog:    runlog,
		Resolver:  &fakeResolver{known: map[string]string{"sf-1": "player:1", "sf-2": "player:2"}},
		Gate:      quality.Options{MinKeyCoverage: 0.95},
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1.0,
		},
	})
	return &harness{runner: runner, runlog: runlog, snaps: snaps, loader: fl}
}

var testAsOf = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func TestRun_Publishes(t *testing.T) {
	h := newHarness(t)

	result := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	assert.Equal(t, model.RunPublished, result.Status)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, int64(2), result.RowCount)
	assert.Empty(t, result.Error)
	assert.Equal(t, model.RunPublished, h.runlog.completed[result.RunID])

	// Crosswalk annotation lands in the published file.
	cols, rows, err := h.snaps.Read(context.Background(), result.Snapshot)
	require.NoError(t, err)
	assert.Contains(t, cols, "canonical_id")
	assert.Contains(t, cols, "resolved")
	assert.Equal(t, "player:1", rows[0]["canonical_id"])
	assert.Equal(t, true, rows[0]["resolved"])
}

func TestRun_UnresolvedRowsWarnAndNominate(t *testing.T) {
	h := newHarness(t, func() (*model.RawBatch, error) {
		return goodBatch(
			model.Row{"player_id": "sf-1", "week": int64(1), "points": 10.5},
			model.Row{"player_id": "sf-unknown", "week": int64(1), "points": 2.0},
		), nil
	})

	result := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	assert.Equal(t, model.RunPublishedWarn, result.Status)
	require.NotNil(t, result.Snapshot)

	var warned bool
	for _, f := range result.Findings {
		if f.Check == "crosswalk_unresolved" {
			warned = true
			assert.Equal(t, 1, f.Rows)
		}
	}
	assert.True(t, warned)

	require.Len(t, h.runlog.unresolved, 1)
	assert.Equal(t, "sf-unknown", h.runlog.unresolved[0].NativeID)
}

func TestRun_QualityGateBlocksPublication(t *testing.T) {
	h := newHarness(t, func() (*model.RawBatch, error) {
		return goodBatch(
			model.Row{"player_id": "sf-1", "week": int64(1), "points": 10.5},
			model.Row{"player_id": "sf-1", "week": int64(1), "points": 99.0},
		), nil
	})

	result := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	assert.Equal(t, model.RunFailed, result.Status)
	assert.Nil(t, result.Snapshot)
	assert.NotEmpty(t, h.runlog.failed[result.RunID])

	// Nothing was written.
	latest, err := h.snaps.Latest(context.Background(), "statsfeed", "weekly_stats")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func transientErr() (*model.RawBatch, error) {
	return nil, resilience.NewTransientError(errors.New("connect timeout"), 0)
}

func TestRun_TransientExhaustionFallsBackToLKG(t *testing.T) {
	h := newHarness(t)

	// Seed a good snapshot, then make the source unreachable.
	seeded := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	require.Equal(t, model.RunPublished, seeded.Status)

	h.loader.mu.Lock()
	h.loader.results = []func() (*model.RawBatch, error){transientErr}
	h.loader.mu.Unlock()

	nextDay := testAsOf.AddDate(0, 0, 1)
	result := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", nextDay, nil, false)
	assert.Equal(t, model.RunLKGFallback, result.Status)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, seeded.Snapshot.ContentID, result.Snapshot.ContentID)
	assert.NotEmpty(t, result.Error)

	var stale bool
	for _, f := range result.Findings {
		if f.Check == "stale_data" && f.Severity == model.SeverityWarn {
			stale = true
		}
	}
	assert.True(t, stale, "fallback must be flagged")

	// The store gained nothing on the fallback date.
	refs, err := h.snaps.List(context.Background(), "statsfeed", "weekly_stats")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	assert.Equal(t, model.RunLKGFallback, h.runlog.completed[result.RunID])

	// Two fetch attempts were made before giving up.
	assert.Equal(t, 3, h.loader.calls)
}

func TestRun_TransientExhaustionWithoutPriorFails(t *testing.T) {
	h := newHarness(t, transientErr)

	result := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	assert.Equal(t, model.RunFailed, result.Status)
	assert.Nil(t, result.Snapshot)
}

func TestRun_NonTransientFetchFailsWithoutRetry(t *testing.T) {
	h := newHarness(t, func() (*model.RawBatch, error) {
		return nil, errors.New("malformed payload")
	})

	result := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	assert.Equal(t, model.RunFailed, result.Status)
	assert.Equal(t, 1, h.loader.calls)
}

func TestRun_InvalidParameterRejectedBeforeFetch(t *testing.T) {
	h := newHarness(t)

	result := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, loader.Params{"weke": "1"}, false)
	assert.Equal(t, model.RunFailed, result.Status)
	assert.Contains(t, result.Error, "weke")
	assert.Zero(t, h.loader.calls)
	assert.Zero(t, h.runlog.started, "no run is logged for a rejected trigger")
}

func TestRun_UnknownDataset(t *testing.T) {
	h := newHarness(t)
	result := h.runner.Run(context.Background(), "statsfeed", "nope", testAsOf, nil, false)
	assert.Equal(t, model.RunFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestRun_RepublishSamePartitionIsIdempotent(t *testing.T) {
	h := newHarness(t)

	first := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	require.Equal(t, model.RunPublished, first.Status)

	second := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	assert.Equal(t, model.RunPublished, second.Status)
	assert.Equal(t, first.Snapshot.ContentID, second.Snapshot.ContentID)

	refs, err := h.snaps.List(context.Background(), "statsfeed", "weekly_stats")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestRun_ChangedContentNeedsCorrection(t *testing.T) {
	h := newHarness(t)

	first := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	require.Equal(t, model.RunPublished, first.Status)

	h.loader.mu.Lock()
	h.loader.results = []func() (*model.RawBatch, error){func() (*model.RawBatch, error) {
		return goodBatch(
			model.Row{"player_id": "sf-1", "week": int64(1), "points": 77.7},
			model.Row{"player_id": "sf-2", "week": int64(1), "points": 4.0},
		), nil
	}}
	h.loader.mu.Unlock()

	blocked := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, false)
	assert.Equal(t, model.RunFailed, blocked.Status)

	corrected := h.runner.Run(context.Background(), "statsfeed", "weekly_stats", testAsOf, nil, true)
	assert.Equal(t, model.RunPublished, corrected.Status)
	assert.NotEqual(t, first.Snapshot.ContentID, corrected.Snapshot.ContentID)
}

func TestDue_RespectsCadence(t *testing.T) {
	h := newHarness(t)
	now := time.Now().UTC()

	decisions, err := h.runner.Due(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Due, "never-run dataset is due")

	recent := now.Add(-time.Hour)
	h.runlog.last["statsfeed/weekly_stats"] = &recent
	decisions, err = h.runner.Due(context.Background(), now)
	require.NoError(t, err)
	assert.False(t, decisions[0].Due, "daily dataset ran an hour ago")

	stale := now.Add(-25 * time.Hour)
	h.runlog.last["statsfeed/weekly_stats"] = &stale
	decisions, err = h.runner.Due(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, decisions[0].Due)
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	h := newHarness(t, transientErr)

	results, err := h.runner.RunAll(context.Background(), testAsOf, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.RunFailed, results[0].Status)
}

func TestRunAll_SkipsNotDue(t *testing.T) {
	h := newHarness(t)
	recent := time.Now().UTC().Add(-time.Hour)
	h.runlog.last["statsfeed/weekly_stats"] = &recent

	results, err := h.runner.RunAll(context.Background(), testAsOf, false)
	require.NoError(t, err)
	assert.Empty(t, results)

	forced, err := h.runner.RunAll(context.Background(), testAsOf, true)
	require.NoError(t, err)
	assert.Len(t, forced, 1)
}
