package loader

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftroom/stats-cli/internal/config"
	"github.com/draftroom/stats-cli/internal/fetcher"
	"github.com/draftroom/stats-cli/internal/model"
)

// CommishDraftPicks loads draft results from the commissioner's workbook,
// published on an FTP drop. The workbook is small; it is downloaded whole
// to a scratch file before parsing.
type CommishDraftPicks struct {
	cfg     config.CommishConfig
	fetch   fetcher.Fetcher
	tempDir string
}

// NewCommishDraftPicks creates the draft-pick loader.
func NewCommishDraftPicks(cfg config.CommishConfig, f fetcher.Fetcher, tempDir string) *CommishDraftPicks {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &CommishDraftPicks{cfg: cfg, fetch: f, tempDir: tempDir}
}

func (l *CommishDraftPicks) Provider() string   { return "commish" }
func (l *CommishDraftPicks) Dataset() string    { return "draft_picks" }
func (l *CommishDraftPicks) LoaderPath() string { return "commish.draft_picks" }
func (l *CommishDraftPicks) SourceName() string { return "commish-workbook" }
func (l *CommishDraftPicks) Params() []string   { return []string{"season"} }

func (l *CommishDraftPicks) Fetch(ctx context.Context, params Params) (*model.RawBatch, error) {
	if l.cfg.URL == "" {
		return nil, eris.New("commish: no workbook url configured")
	}

	wantSeason, haveSeason, err := parseIntParam(params, "season")
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(l.tempDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "commish: create temp dir")
	}
	path := filepath.Join(l.tempDir, "commish-draft.xlsx")
	defer os.Remove(path) //nolint:errcheck

	if _, err := l.fetch.DownloadToFile(ctx, l.cfg.URL, path); err != nil {
		return nil, err
	}

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{
		SheetName: l.cfg.Sheet,
		SkipRows:  1, // header row
	})
	if err != nil {
		return nil, eris.Wrap(err, "commish: parse workbook")
	}

	batch := &model.RawBatch{
		Provider:      l.Provider(),
		Dataset:       l.Dataset(),
		CapturedAt:    time.Now().UTC(),
		SourceName:    l.SourceName(),
		SourceVersion: l.cfg.Sheet,
		LoaderPath:    l.LoaderPath(),
		Columns:       []string{"season", "round", "pick", "franchise", "player_name", "traded"},
	}
	for i, cells := range rows {
		if isBlankRow(cells) {
			continue
		}
		row, err := commishRow(cells)
		if err != nil {
			return nil, eris.Wrapf(err, "commish: sheet row %d", i+2)
		}
		if haveSeason && row["season"] != wantSeason {
			continue
		}
		batch.Rows = append(batch.Rows, row)
	}

	zap.L().Debug("commish: fetched draft picks",
		zap.String("sheet", l.cfg.Sheet),
		zap.Int("rows", len(batch.Rows)))

	return batch, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func commishRow(cells []string) (model.Row, error) {
	if len(cells) < 5 {
		return nil, eris.Errorf("short row (%d cells)", len(cells))
	}
	season, err := strconv.ParseInt(strings.TrimSpace(cells[0]), 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "bad season %q", cells[0])
	}
	round, err := strconv.ParseInt(strings.TrimSpace(cells[1]), 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "bad round %q", cells[1])
	}
	pick, err := strconv.ParseInt(strings.TrimSpace(cells[2]), 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "bad pick %q", cells[2])
	}

	// Trade column is hand-entered; accept yes/y/true/1 and blank.
	traded := false
	if len(cells) >= 6 {
		switch strings.ToLower(strings.TrimSpace(cells[5])) {
		case "", "no", "n", "false", "0":
		case "yes", "y", "true", "1":
			traded = true
		default:
			return nil, eris.Errorf("bad traded flag %q", cells[5])
		}
	}

	return model.Row{
		"season":      season,
		"round":       round,
		"pick":        pick,
		"franchise":   strings.TrimSpace(cells[3]),
		"player_name": strings.TrimSpace(cells[4]),
		"traded":      traded,
	}, nil
}
