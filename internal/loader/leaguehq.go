package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftroom/stats-cli/internal/config"
	"github.com/draftroom/stats-cli/internal/fetcher"
	"github.com/draftroom/stats-cli/internal/model"
)

type leagueHQBase struct {
	cfg   config.LeagueHQConfig
	fetch fetcher.Fetcher
}

func (b *leagueHQBase) leagueID(params Params) string {
	return params.Get("league_id", b.cfg.LeagueID)
}

// LeagueHQRosters loads franchise rosters for one league.
type LeagueHQRosters struct {
	leagueHQBase
}

// NewLeagueHQRosters creates the roster loader.
func NewLeagueHQRosters(cfg config.LeagueHQConfig, f fetcher.Fetcher) *LeagueHQRosters {
	return &LeagueHQRosters{leagueHQBase{cfg: cfg, fetch: f}}
}

func (l *LeagueHQRosters) Provider() string   { return "leaguehq" }
func (l *LeagueHQRosters) Dataset() string    { return "rosters" }
func (l *LeagueHQRosters) LoaderPath() string { return "leaguehq.rosters" }
func (l *LeagueHQRosters) SourceName() string { return "leaguehq-api" }
func (l *LeagueHQRosters) Params() []string   { return []string{"league_id"} }

type leagueHQRostersPayload struct {
	Version    string `json:"version"`
	Franchises []struct {
		ID      string `json:"id"`
		Players []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Slot     string `json:"slot"`
			Acquired string `json:"acquired"`
		} `json:"players"`
	} `json:"franchises"`
}

func (l *LeagueHQRosters) Fetch(ctx context.Context, params Params) (*model.RawBatch, error) {
	leagueID := l.leagueID(params)
	if leagueID == "" {
		return nil, eris.New("leaguehq: no league_id configured or supplied")
	}

	body, err := l.fetch.Download(ctx, fmt.Sprintf("%s/leagues/%s/rosters", l.cfg.BaseURL, leagueID))
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var payload leagueHQRostersPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "leaguehq: decode rosters")
	}

	batch := &model.RawBatch{
		Provider:      l.Provider(),
		Dataset:       l.Dataset(),
		CapturedAt:    time.Now().UTC(),
		SourceName:    l.SourceName(),
		SourceVersion: payload.Version,
		LoaderPath:    l.LoaderPath(),
		Columns:       []string{"league_id", "franchise_id", "player_id", "player_name", "roster_slot", "acquired"},
	}
	for _, fr := range payload.Franchises {
		for _, p := range fr.Players {
			batch.Rows = append(batch.Rows, model.Row{
				"league_id":    leagueID,
				"franchise_id": fr.ID,
				"player_id":    p.ID,
				"player_name":  p.Name,
				"roster_slot":  p.Slot,
				"acquired":     p.Acquired,
			})
		}
	}

	zap.L().Debug("leaguehq: fetched rosters",
		zap.String("league_id", leagueID),
		zap.Int("franchises", len(payload.Franchises)),
		zap.Int("rows", len(batch.Rows)))

	return batch, nil
}

// LeagueHQTeams loads the franchise reference table for one league.
type LeagueHQTeams struct {
	leagueHQBase
}

// NewLeagueHQTeams creates the franchise loader.
func NewLeagueHQTeams(cfg config.LeagueHQConfig, f fetcher.Fetcher) *LeagueHQTeams {
	return &LeagueHQTeams{leagueHQBase{cfg: cfg, fetch: f}}
}

func (l *LeagueHQTeams) Provider() string   { return "leaguehq" }
func (l *LeagueHQTeams) Dataset() string    { return "teams" }
func (l *LeagueHQTeams) LoaderPath() string { return "leaguehq.teams" }
func (l *LeagueHQTeams) SourceName() string { return "leaguehq-api" }
func (l *LeagueHQTeams) Params() []string   { return []string{"league_id"} }

type leagueHQTeamsPayload struct {
	Version    string `json:"version"`
	Franchises []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Owner    string `json:"owner"`
		Division string `json:"division"`
	} `json:"franchises"`
}

func (l *LeagueHQTeams) Fetch(ctx context.Context, params Params) (*model.RawBatch, error) {
	leagueID := l.leagueID(params)
	if leagueID == "" {
		return nil, eris.New("leaguehq: no league_id configured or supplied")
	}

	body, err := l.fetch.Download(ctx, fmt.Sprintf("%s/leagues/%s/franchises", l.cfg.BaseURL, leagueID))
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var payload leagueHQTeamsPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "leaguehq: decode franchises")
	}

	batch := &model.RawBatch{
		Provider:      l.Provider(),
		Dataset:       l.Dataset(),
		CapturedAt:    time.Now().UTC(),
		SourceName:    l.SourceName(),
		SourceVersion: payload.Version,
		LoaderPath:    l.LoaderPath(),
		Columns:       []string{"league_id", "franchise_id", "franchise_name", "owner", "division"},
		Rows:          make([]model.Row, 0, len(payload.Franchises)),
	}
	for _, fr := range payload.Franchises {
		batch.Rows = append(batch.Rows, model.Row{
			"league_id":      leagueID,
			"franchise_id":   fr.ID,
			"franchise_name": fr.Name,
			"owner":          fr.Owner,
			"division":       fr.Division,
		})
	}

	zap.L().Debug("leaguehq: fetched franchises",
		zap.String("league_id", leagueID),
		zap.Int("rows", len(batch.Rows)))

	return batch, nil
}
