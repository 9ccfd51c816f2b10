package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"MarketForecaster/internal/logging"
	"MarketForecaster/internal/model"
)

// BarsAPIFetcher implements Fetcher against a REST bars service exposing
// /api/v1/bars/{daily,weekly}.
type BarsAPIFetcher struct {
	BaseURL string
	APIKey  string
	http    *httpClient
	logger  zerolog.Logger
}

// NewBarsAPIFetcher creates a new fetcher with optional proxy support.
func NewBarsAPIFetcher(baseURL, apiKey, proxyURL string) *BarsAPIFetcher {
	return &BarsAPIFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		http:    newHTTPClient(proxyURL, 5),
		logger:  logging.Component("bars_api"),
	}
}

func (f *BarsAPIFetcher) Name() string { return "bars_api" }

// apiBar is the JSON shape served by the bars API.
type apiBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *BarsAPIFetcher) FetchBars(ctx context.Context, req Request) ([]model.PriceBar, error) {
	if IsIntraday(req.Interval) {
		return nil, fmt.Errorf("bars API serves daily and weekly bars only, not %s", req.Interval)
	}
	if req.Interval == IntervalDaily {
		return f.fetchBars(ctx, "daily", req)
	}
	// Not every deployment serves weekly bars; aggregate daily ones when it doesn't.
	bars, err := f.fetchBars(ctx, "weekly", req)
	if err != nil {
		var status *StatusError
		if !errors.As(err, &status) || status.StatusCode != http.StatusNotFound {
			return nil, err
		}
		f.logger.Debug().Str("symbol", req.Symbol).Msg("weekly endpoint unavailable, aggregating daily bars")
		daily, dailyErr := f.fetchBars(ctx, "daily", req)
		if dailyErr != nil {
			return nil, fmt.Errorf("weekly fetch failed: %w; daily fallback also failed: %w", err, dailyErr)
		}
		return AggregateWeekly(daily), nil
	}
	return bars, nil
}

func (f *BarsAPIFetcher) fetchBars(ctx context.Context, kind string, req Request) ([]model.PriceBar, error) {
	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("from", fmt.Sprint(req.From.Unix()))
	q.Set("to", fmt.Sprint(req.To.Unix()))
	endpoint := fmt.Sprintf("%s/api/v1/bars/%s?%s", f.BaseURL, kind, q.Encode())

	header := http.Header{}
	if f.APIKey != "" {
		header.Set("Authorization", "Bearer "+f.APIKey)
	}
	body, err := f.http.get(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("fetch %s bars: %w", kind, err)
	}
	var raw []apiBar
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make([]model.PriceBar, len(raw))
	for i, b := range raw {
		bars[i] = model.PriceBar{
			Time:   time.Unix(b.Timestamp, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// AggregateWeekly folds daily bars into ISO-week bars. Each weekly bar is stamped with
// its first trading day.
func AggregateWeekly(daily []model.PriceBar) []model.PriceBar {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.PriceBar
	week := daily[0]
	wy, ww := week.Time.ISOWeek()

	for _, d := range daily[1:] {
		y, w := d.Time.ISOWeek()
		if y != wy || w != ww {
			weekly = append(weekly, week)
			week = d
			wy, ww = y, w
			continue
		}
		week.High = max(week.High, d.High)
		week.Low = min(week.Low, d.Low)
		week.Close = d.Close
		week.Volume += d.Volume
	}
	return append(weekly, week)
}
