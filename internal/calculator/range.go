package calculator

import (
	"math"

	"MarketForecaster/internal/model"
)

// Range is the high/low envelope of the most recent bars and where the last close sits
// inside it.
type Range struct {
	High     float64
	Low      float64
	Position float64 // 0 at Low, 1 at High
}

// TradingDaysPerYear is the window of a 52-week range on daily bars.
const TradingDaysPerYear = 252

// RecentRange scans the last window bars. ok is false for an empty series or a
// non-positive window.
func RecentRange(series *model.PriceSeries, window int) (r Range, ok bool) {
	n := series.Len()
	if n == 0 || window <= 0 {
		return Range{}, false
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	r.High = math.Inf(-1)
	r.Low = math.Inf(1)
	for _, b := range series.Bars[start:] {
		r.High = math.Max(r.High, b.High)
		r.Low = math.Min(r.Low, b.Low)
	}
	r.Position = position(series.Bars[n-1].Close, r.High, r.Low)
	return r, true
}

func position(current, high, low float64) float64 {
	if high == low {
		return 0.5
	}
	return math.Min(1, math.Max(0, (current-low)/(high-low)))
}
