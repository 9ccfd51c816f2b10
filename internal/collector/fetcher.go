package collector

import (
	"context"
	"fmt"
	"time"

	"MarketForecaster/internal/model"
)

const (
	IntervalDaily  = "1d"
	IntervalWeekly = "1wk"
)

// intraday lists the sub-daily bar sizes the chart endpoint serves.
var intraday = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true, "1h": true,
}

// IsIntraday reports whether interval is a supported sub-daily bar size.
func IsIntraday(interval string) bool { return intraday[interval] }

// ValidInterval reports whether interval is daily, weekly or a supported intraday size.
func ValidInterval(interval string) bool {
	return interval == IntervalDaily || interval == IntervalWeekly || IsIntraday(interval)
}

// Request selects the bars to fetch. From and To are inclusive.
type Request struct {
	Symbol   string
	Interval string
	From     time.Time
	To       time.Time
}

// NewRequest asks for the last days calendar days of interval bars up to now.
func NewRequest(symbol, interval string, days int) Request {
	now := time.Now().UTC()
	return Request{Symbol: symbol, Interval: interval, From: now.AddDate(0, 0, -days), To: now}
}

func (r Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !ValidInterval(r.Interval) {
		return fmt.Errorf("unsupported interval %q (use %s, %s or an intraday size like 1h)", r.Interval, IntervalDaily, IntervalWeekly)
	}
	if !r.From.Before(r.To) {
		return fmt.Errorf("empty date range %s..%s", r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	}
	return nil
}

// Fetcher retrieves raw bars from one market-data source.
type Fetcher interface {
	FetchBars(ctx context.Context, req Request) ([]model.PriceBar, error)
	Name() string
}

// NewFetcher builds the fetcher for a data_source.source value.
func NewFetcher(source, baseURL, apiKey, filePath, proxyURL string) (Fetcher, error) {
	switch source {
	case "yahoo":
		return NewYahooFetcher(proxyURL), nil
	case "bars_api":
		return NewBarsAPIFetcher(baseURL, apiKey, proxyURL), nil
	case "file":
		return NewFileFetcher(filePath), nil
	case "mock":
		return &MockFetcher{}, nil
	default:
		return nil, fmt.Errorf("unknown data source %q", source)
	}
}
