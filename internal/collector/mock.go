package collector

import (
	"context"
	"fmt"
	"time"

	"MarketForecaster/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  []model.PriceBar
	Err   error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, req Request) ([]model.PriceBar, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	if IsIntraday(req.Interval) {
		return nil, fmt.Errorf("mock source generates daily bars only, not %s", req.Interval)
	}
	bars := generateMockBars(m.Price, req.From, req.To)
	if req.Interval == IntervalWeekly {
		bars = AggregateWeekly(bars)
	}
	return bars, nil
}

// generateMockBars produces one bar per weekday in [from, to] on a gentle deterministic
// oscillation around basePrice.
func generateMockBars(basePrice float64, from, to time.Time) []model.PriceBar {
	if basePrice <= 0 {
		basePrice = 100
	}
	var bars []model.PriceBar
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; !day.After(to); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i%40-20)*0.002 + float64(i)*0.0005)
		bars = append(bars, model.PriceBar{
			Time:   day,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
		i++
	}
	return bars
}
