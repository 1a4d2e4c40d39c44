package loader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftroom/stats-cli/internal/config"
	"github.com/draftroom/stats-cli/internal/fetcher"
	"github.com/draftroom/stats-cli/internal/model"
)

// ValuatorPlayerValues loads the daily market-valuation CSV feed. The feed
// covers players and draft picks under a single asset_id namespace.
type ValuatorPlayerValues struct {
	cfg   config.ValuatorConfig
	fetch fetcher.Fetcher
}

// NewValuatorPlayerValues creates the valuation loader.
func NewValuatorPlayerValues(cfg config.ValuatorConfig, f fetcher.Fetcher) *ValuatorPlayerValues {
	return &ValuatorPlayerValues{cfg: cfg, fetch: f}
}

func (l *ValuatorPlayerValues) Provider() string   { return "valuator" }
func (l *ValuatorPlayerValues) Dataset() string    { return "player_values" }
func (l *ValuatorPlayerValues) LoaderPath() string { return "valuator.player_values" }
func (l *ValuatorPlayerValues) SourceName() string { return "valuator-csv" }
func (l *ValuatorPlayerValues) Params() []string   { return []string{"date"} }

// Columns of the upstream CSV, in the order the feed publishes them.
var valuatorHeader = []string{"asset_id", "asset_name", "value_date", "market_value", "trend_30d", "is_pick"}

func (l *ValuatorPlayerValues) Fetch(ctx context.Context, params Params) (*model.RawBatch, error) {
	feedURL := fmt.Sprintf("%s/values/latest.csv", l.cfg.BaseURL)
	if date := params.Get("date", ""); date != "" {
		if _, err := time.Parse(model.DateFormat, date); err != nil {
			return nil, eris.Wrapf(err, "valuator: parameter date must be YYYY-MM-DD, got %q", date)
		}
		feedURL = fmt.Sprintf("%s/values/%s.csv", l.cfg.BaseURL, date)
	}

	body, err := l.fetch.Download(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	batch := &model.RawBatch{
		Provider:   l.Provider(),
		Dataset:    l.Dataset(),
		CapturedAt: time.Now().UTC(),
		SourceName: l.SourceName(),
		LoaderPath: l.LoaderPath(),
		Columns:    valuatorHeader,
	}

	var header []string
	for record := range rowCh {
		if header == nil {
			select {
			case header = <-headerCh:
				if err := checkValuatorHeader(header); err != nil {
					return nil, err
				}
			default:
				return nil, eris.New("valuator: feed missing header row")
			}
		}
		row, err := valuatorRow(header, record)
		if err != nil {
			return nil, err
		}
		batch.Rows = append(batch.Rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "valuator: stream feed")
	}

	zap.L().Debug("valuator: fetched values", zap.Int("rows", len(batch.Rows)))

	return batch, nil
}

func checkValuatorHeader(header []string) error {
	if len(header) < len(valuatorHeader) {
		return eris.Errorf("valuator: feed header has %d columns, want %d", len(header), len(valuatorHeader))
	}
	for i, want := range valuatorHeader {
		if !strings.EqualFold(header[i], want) {
			return eris.Errorf("valuator: feed column %d is %q, want %q", i, header[i], want)
		}
	}
	return nil
}

func valuatorRow(header, record []string) (model.Row, error) {
	if len(record) < len(valuatorHeader) {
		return nil, eris.Errorf("valuator: short row (%d fields)", len(record))
	}

	valueDate, err := time.Parse(model.DateFormat, record[2])
	if err != nil {
		return nil, eris.Wrapf(err, "valuator: bad value_date %q for asset %s", record[2], record[0])
	}
	marketValue, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return nil, eris.Wrapf(err, "valuator: bad market_value %q for asset %s", record[3], record[0])
	}

	row := model.Row{
		"asset_id":     record[0],
		"asset_name":   record[1],
		"value_date":   valueDate,
		"market_value": marketValue,
		"trend_30d":    nil,
		"is_pick":      false,
	}
	// trend_30d is blank for assets without 30 days of history.
	if record[4] != "" {
		trend, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "valuator: bad trend_30d %q for asset %s", record[4], record[0])
		}
		row["trend_30d"] = trend
	}
	if record[5] != "" {
		isPick, err := strconv.ParseBool(strings.ToLower(record[5]))
		if err != nil {
			return nil, eris.Wrapf(err, "valuator: bad is_pick %q for asset %s", record[5], record[0])
		}
		row["is_pick"] = isPick
	}
	return row, nil
}
