package calculator

import "errors"

// RSI computes the Relative Strength Index for every index using simple rolling means of
// gains and losses over the trailing period differences. The first period entries are NaN.
//
// A window with no losses and some gains is 100; a flat window (no gains, no losses) is 50.
func RSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := nanSlice(len(closes))
	for t := period; t < len(closes); t++ {
		var gains, losses float64
		for i := t - period + 1; i <= t; i++ {
			change := closes[i] - closes[i-1]
			if change > 0 {
				gains += change
			} else {
				losses -= change
			}
		}
		out[t] = rsiValue(gains/float64(period), losses/float64(period))
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50.0
	case avgLoss == 0:
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
