package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"MarketForecaster/internal/logging"
	"MarketForecaster/internal/model"
)

// Collector fetches bars and normalises them into a validated PriceSeries.
type Collector struct {
	Fetcher Fetcher
	logger  zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher, logger: logging.Component("collector")}
}

// Collect fetches the requested bars. Bars outside the range are dropped and duplicate
// timestamps keep the later bar. The result is validated before it is returned, so an
// empty answer surfaces as model.ErrEmptySeries.
func (c *Collector) Collect(ctx context.Context, req Request) (*model.PriceSeries, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	bars, err := c.Fetcher.FetchBars(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch bars: %w", c.Fetcher.Name(), err)
	}

	kept := make([]model.PriceBar, 0, len(bars))
	for _, b := range bars {
		if b.Time.Before(req.From) || b.Time.After(req.To) {
			continue
		}
		if n := len(kept); n > 0 && b.Time.Equal(kept[n-1].Time) {
			kept[n-1] = b
			continue
		}
		kept = append(kept, b)
	}
	if dropped := len(bars) - len(kept); dropped > 0 {
		c.logger.Debug().Int("dropped", dropped).Str("symbol", req.Symbol).Msg("dropped out-of-range or duplicate bars")
	}

	series := &model.PriceSeries{
		Symbol:    req.Symbol,
		Interval:  req.Interval,
		Bars:      kept,
		FetchedAt: time.Now().UTC(),
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Fetcher.Name(), err)
	}
	c.logger.Info().Str("source", c.Fetcher.Name()).Str("symbol", req.Symbol).
		Int("bars", series.Len()).Msg("series collected")
	return series, nil
}
