// Package testutil builds deterministic price series for tests.
package testutil

import (
	"math"
	"math/rand"
	"time"

	"MarketForecaster/internal/model"
)

// Start is the first bar date of every generated series.
var Start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// SeriesFromCloses wraps closes into daily bars starting at Start.
func SeriesFromCloses(closes []float64) *model.PriceSeries {
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = model.PriceBar{
			Time:   Start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.005,
			Low:    c * 0.995,
			Close:  c,
			Volume: 1000000,
		}
	}
	return &model.PriceSeries{Symbol: "TEST", Interval: "1d", Bars: bars, FetchedAt: Start}
}

// RisingCloses returns n closes growing by rate per bar from start.
func RisingCloses(n int, start, rate float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start * math.Pow(1+rate, float64(i))
	}
	return closes
}

// ConstantCloses returns n identical closes.
func ConstantCloses(n int, price float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return closes
}

// RandomWalkCloses returns a seeded multiplicative random walk that stays positive.
func RandomWalkCloses(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= 1 + (rng.Float64()-0.5)*0.04
		closes[i] = price
	}
	return closes
}
