package calculator

import (
	"errors"
	"math"
)

// RollingMean computes the simple moving average of values over period for every index.
// The first period-1 entries are NaN.
func RollingMean(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := nanSlice(len(values))
	for t := period - 1; t < len(values); t++ {
		sum := 0.0
		for i := t - period + 1; i <= t; i++ {
			sum += values[i]
		}
		out[t] = sum / float64(period)
	}
	return out, nil
}

// MARatio returns rolling_mean(close, period) / close[t]. The ratio keeps the feature
// comparable across instruments with different price levels.
func MARatio(closes []float64, period int) ([]float64, error) {
	means, err := RollingMean(closes, period)
	if err != nil {
		return nil, err
	}
	for t, m := range means {
		if math.IsNaN(m) {
			continue
		}
		means[t] = m / closes[t]
	}
	return means, nil
}

// PctChange returns close[t]/close[t-k] - 1, undefined for the first k entries.
func PctChange(closes []float64, k int) ([]float64, error) {
	if k <= 0 {
		return nil, errors.New("lag must be positive")
	}
	out := nanSlice(len(closes))
	for t := k; t < len(closes); t++ {
		out[t] = closes[t]/closes[t-k] - 1
	}
	return out, nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
