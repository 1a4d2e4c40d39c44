package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftroom/stats-cli/internal/config"
	"github.com/draftroom/stats-cli/internal/fetcher"
	"github.com/draftroom/stats-cli/internal/model"
)

// statsfeedBase carries the shared pieces of the two statsfeed loaders.
type statsfeedBase struct {
	cfg   config.StatsfeedConfig
	fetch fetcher.Fetcher
}

func (b *statsfeedBase) endpoint(path string, query url.Values) string {
	if b.cfg.APIKey != "" {
		query.Set("api_key", b.cfg.APIKey)
	}
	return fmt.Sprintf("%s%s?%s", b.cfg.BaseURL, path, query.Encode())
}

// StatsfeedWeeklyStats loads per-player weekly statistics from the stats
// feed. Accepts season and week parameters; both default to the current
// period server-side when omitted.
type StatsfeedWeeklyStats struct {
	statsfeedBase
}

// NewStatsfeedWeeklyStats creates the weekly stats loader.
func NewStatsfeedWeeklyStats(cfg config.StatsfeedConfig, f fetcher.Fetcher) *StatsfeedWeeklyStats {
	return &StatsfeedWeeklyStats{statsfeedBase{cfg: cfg, fetch: f}}
}

func (l *StatsfeedWeeklyStats) Provider() string   { return "statsfeed" }
func (l *StatsfeedWeeklyStats) Dataset() string    { return "weekly_stats" }
func (l *StatsfeedWeeklyStats) LoaderPath() string { return "statsfeed.weekly_stats" }
func (l *StatsfeedWeeklyStats) SourceName() string { return "statsfeed-api" }
func (l *StatsfeedWeeklyStats) Params() []string   { return []string{"season", "week"} }

type statsfeedWeeklyPayload struct {
	SourceVersion string `json:"source_version"`
	Stats         []struct {
		PlayerID      string  `json:"player_id"`
		Season        int64   `json:"season"`
		Week          int64   `json:"week"`
		Team          string  `json:"team"`
		Position      string  `json:"position"`
		PassYards     float64 `json:"pass_yards"`
		RushYards     float64 `json:"rush_yards"`
		RecYards      float64 `json:"rec_yards"`
		Touchdowns    int64   `json:"touchdowns"`
		FantasyPoints float64 `json:"fantasy_points"`
	} `json:"stats"`
}

func (l *StatsfeedWeeklyStats) Fetch(ctx context.Context, params Params) (*model.RawBatch, error) {
	query := url.Values{}
	if season := params.Get("season", ""); season != "" {
		query.Set("season", season)
	}
	if week := params.Get("week", ""); week != "" {
		query.Set("week", week)
	}

	body, err := l.fetch.Download(ctx, l.endpoint("/v2/stats/weekly", query))
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var payload statsfeedWeeklyPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "statsfeed: decode weekly stats")
	}

	batch := &model.RawBatch{
		Provider:      l.Provider(),
		Dataset:       l.Dataset(),
		CapturedAt:    time.Now().UTC(),
		SourceName:    l.SourceName(),
		SourceVersion: payload.SourceVersion,
		LoaderPath:    l.LoaderPath(),
		Columns: []string{
			"player_id", "season", "week", "team", "position",
			"pass_yards", "rush_yards", "rec_yards", "touchdowns", "fantasy_points",
		},
		Rows: make([]model.Row, 0, len(payload.Stats)),
	}
	for _, s := range payload.Stats {
		batch.Rows = append(batch.Rows, model.Row{
			"player_id":      s.PlayerID,
			"season":         s.Season,
			"week":           s.Week,
			"team":           s.Team,
			"position":       s.Position,
			"pass_yards":     s.PassYards,
			"rush_yards":     s.RushYards,
			"rec_yards":      s.RecYards,
			"touchdowns":     s.Touchdowns,
			"fantasy_points": s.FantasyPoints,
		})
	}

	zap.L().Debug("statsfeed: fetched weekly stats",
		zap.Int("rows", len(batch.Rows)),
		zap.String("source_version", payload.SourceVersion))

	return batch, nil
}

// StatsfeedPlayers loads the player reference table from the stats feed.
type StatsfeedPlayers struct {
	statsfeedBase
}

// NewStatsfeedPlayers creates the player reference loader.
func NewStatsfeedPlayers(cfg config.StatsfeedConfig, f fetcher.Fetcher) *StatsfeedPlayers {
	return &StatsfeedPlayers{statsfeedBase{cfg: cfg, fetch: f}}
}

func (l *StatsfeedPlayers) Provider() string   { return "statsfeed" }
func (l *StatsfeedPlayers) Dataset() string    { return "players" }
func (l *StatsfeedPlayers) LoaderPath() string { return "statsfeed.players" }
func (l *StatsfeedPlayers) SourceName() string { return "statsfeed-api" }
func (l *StatsfeedPlayers) Params() []string   { return nil }

type statsfeedPlayersPayload struct {
	SourceVersion string `json:"source_version"`
	Players       []struct {
		PlayerID  string `json:"player_id"`
		FullName  string `json:"full_name"`
		Team      string `json:"team"`
		Position  string `json:"position"`
		Status    string `json:"status"`
		BirthDate string `json:"birth_date"` // YYYY-MM-DD, may be empty
	} `json:"players"`
}

func (l *StatsfeedPlayers) Fetch(ctx context.Context, params Params) (*model.RawBatch, error) {
	body, err := l.fetch.Download(ctx, l.endpoint("/v2/players", url.Values{}))
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var payload statsfeedPlayersPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "statsfeed: decode players")
	}

	batch := &model.RawBatch{
		Provider:      l.Provider(),
		Dataset:       l.Dataset(),
		CapturedAt:    time.Now().UTC(),
		SourceName:    l.SourceName(),
		SourceVersion: payload.SourceVersion,
		LoaderPath:    l.LoaderPath(),
		Columns:       []string{"player_id", "full_name", "team", "position", "status", "birth_date"},
		Rows:          make([]model.Row, 0, len(payload.Players)),
	}
	for _, p := range payload.Players {
		row := model.Row{
			"player_id":  p.PlayerID,
			"full_name":  p.FullName,
			"team":       p.Team,
			"position":   p.Position,
			"status":     p.Status,
			"birth_date": nil,
		}
		if p.BirthDate != "" {
			bd, err := time.Parse(model.DateFormat, p.BirthDate)
			if err != nil {
				return nil, eris.Wrapf(err, "statsfeed: bad birth_date %q for player %s", p.BirthDate, p.PlayerID)
			}
			row["birth_date"] = bd
		}
		batch.Rows = append(batch.Rows, row)
	}

	zap.L().Debug("statsfeed: fetched players", zap.Int("rows", len(batch.Rows)))

	return batch, nil
}

// parseIntParam is shared by loaders taking numeric parameters.
func parseIntParam(params Params, name string) (int64, bool, error) {
	raw := params.Get(name, "")
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, eris.Wrapf(err, "loader: parameter %s must be an integer", name)
	}
	return n, true, nil
}
