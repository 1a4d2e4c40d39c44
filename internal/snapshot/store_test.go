package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftroom/stats-cli/internal/model"
	"github.com/draftroom/stats-cli/internal/registry"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(NewLocal(dir)), dir
}

func testFields() []Field {
	return []Field{
		{Name: "player_id", Type: registry.TypeString},
		{Name: "week", Type: registry.TypeInt},
		{Name: "points", Type: registry.TypeFloat},
		{Name: "active", Type: registry.TypeBool},
		{Name: "game_date", Type: registry.TypeDate},
	}
}

func testRows() []model.Row {
	gameDay := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)
	return []model.Row{
		{"player_id": "p1", "week": int64(1), "points": 22.4, "active": true, "game_date": gameDay},
		{"player_id": "p2", "week": int64(1), "points": nil, "active": false, "game_date": gameDay},
	}
}

func publishReq(rows []model.Row) PublishRequest {
	return PublishRequest{
		Provider:      "statsfeed",
		Dataset:       "weekly_stats",
		AsOf:          time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		Fields:        testFields(),
		Rows:          rows,
		LoaderPath:    "statsfeed.weekly_stats",
		SourceName:    "statsfeed-api",
		SourceVersion: "2026.1",
		CapturedAt:    time.Date(2026, 9, 7, 6, 30, 0, 0, time.UTC),
	}
}

func TestPublish_RoundTrip(t *testing.T) {
	store, dir := testStore(t)
	ctx := context.Background()

	ref, err := store.Publish(ctx, publishReq(testRows()))
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "statsfeed", ref.Provider)
	assert.Equal(t, "2026-09-07", ref.Date())
	assert.NotEmpty(t, ref.ContentID)

	// Partition layout on disk.
	dataPath := filepath.Join(dir, "statsfeed", "weekly_stats", "dt=2026-09-07",
		"weekly_stats_"+ref.ContentID+".arrow")
	_, err = os.Stat(dataPath)
	require.NoError(t, err)

	// Sidecar carries full provenance.
	metaPath := filepath.Join(dir, "statsfeed", "weekly_stats", "dt=2026-09-07",
		"weekly_stats_"+ref.ContentID+"_meta.json")
	raw, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	var meta model.Meta
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "weekly_stats", meta.Dataset)
	assert.Equal(t, "statsfeed.weekly_stats", meta.LoaderPath)
	assert.Equal(t, "statsfeed-api", meta.SourceName)
	assert.Equal(t, "2026.1", meta.SourceVersion)
	assert.Equal(t, int64(2), meta.RowCount)
	assert.Equal(t, ref.DataKey, meta.OutputPath)

	// Decode returns the published rows, nulls intact.
	cols, rows, err := store.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"player_id", "week", "points", "active", "game_date"}, cols)
	require.Len(t, rows, 2)
	assert.Equal(t, "p1", rows[0]["player_id"])
	assert.Equal(t, int64(1), rows[0]["week"])
	assert.InDelta(t, 22.4, rows[0]["points"].(float64), 1e-9)
	assert.Equal(t, true, rows[0]["active"])
	assert.Nil(t, rows[1]["points"])
}

func TestPublish_IdenticalContentIsNoOp(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	first, err := store.Publish(ctx, publishReq(testRows()))
	require.NoError(t, err)

	second, err := store.Publish(ctx, publishReq(testRows()))
	require.NoError(t, err)
	assert.Equal(t, first.ContentID, second.ContentID)
	assert.Equal(t, first.DataKey, second.DataKey)

	refs, err := store.List(ctx, "statsfeed", "weekly_stats")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestPublish_DifferingContentRejectedWithoutCorrection(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	_, err := store.Publish(ctx, publishReq(testRows()))
	require.NoError(t, err)

	changed := testRows()
	changed[0]["points"] = 99.9
	_, err = store.Publish(ctx, publishReq(changed))
	var exists *AlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "2026-09-07", exists.Date)
}

func TestPublish_CorrectionSupersedes(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	orig, err := store.Publish(ctx, publishReq(testRows()))
	require.NoError(t, err)

	changed := testRows()
	changed[0]["points"] = 99.9
	req := publishReq(changed)
	req.Correction = true
	req.CapturedAt = req.CapturedAt.Add(time.Hour)
	corrected, err := store.Publish(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, orig.ContentID, corrected.ContentID)

	// Both versions remain; the correction becomes latest.
	refs, err := store.List(ctx, "statsfeed", "weekly_stats")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	latest, err := store.Latest(ctx, "statsfeed", "weekly_stats")
	require.NoError(t, err)
	assert.Equal(t, corrected.ContentID, latest.ContentID)
}

func TestLatestAndAsOf(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		req := publishReq(testRows())
		req.AsOf = time.Date(2026, 9, day, 0, 0, 0, 0, time.UTC)
		// Rows must differ per day or publishes collapse by content.
		req.Rows[0]["week"] = int64(day)
		_, err := store.Publish(ctx, req)
		require.NoError(t, err)
	}

	latest, err := store.Latest(ctx, "statsfeed", "weekly_stats")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-09-03", latest.Date())

	asOf, err := store.AsOf(ctx, "statsfeed", "weekly_stats", time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, asOf)
	assert.Equal(t, "2026-09-02", asOf.Date())

	before, err := store.AsOf(ctx, "statsfeed", "weekly_stats", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, before)
}

func TestLatest_EmptyDataset(t *testing.T) {
	store, _ := testStore(t)
	latest, err := store.Latest(context.Background(), "statsfeed", "weekly_stats")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestContentID_Deterministic(t *testing.T) {
	data := []byte("payload")
	assert.Equal(t, ContentID(data), ContentID(data))
	assert.NotEqual(t, ContentID(data), ContentID([]byte("other")))
	assert.Len(t, ContentID(data), 16)
}
