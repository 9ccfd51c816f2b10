// Package forecast turns a trained model and recent prices into point forecasts.
//
// Every function here is pure: the same model and inputs always give the same result.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"MarketForecaster/internal/calculator"
	"MarketForecaster/internal/dataset"
	"MarketForecaster/internal/model"
	"MarketForecaster/internal/trainer"
)

// Predict scores one indicator row. The bias feature, when the model uses one, is supplied
// here and must not be required of the caller; a row that carries it must hold 1.
func Predict(m *trainer.TrainedModel, row model.IndicatorRow, lastClose float64) (model.Forecast, error) {
	if !(lastClose > 0) || math.IsInf(lastClose, 0) {
		return model.Forecast{}, fmt.Errorf("invalid last close %v", lastClose)
	}
	expected := m.Schema.Without(model.BiasFeature)
	got := row.Schema().Without(model.BiasFeature)
	if !expected.SameSet(got) {
		return model.Forecast{}, model.NewSchemaMismatch(expected, got)
	}
	if m.Params.OrderSensitive() && !expected.Equal(got) {
		return model.Forecast{}, model.NewSchemaMismatch(expected, got)
	}

	if v, ok := row.Get(model.BiasFeature); ok && v != 1 {
		return model.Forecast{}, fmt.Errorf("bias feature %s must be 1, got %v", model.BiasFeature, v)
	}
	if m.RequiresBias() && !row.Schema().Contains(model.BiasFeature) {
		row = dataset.WithBias(row)
	}
	x, err := dataset.Vector(m.Schema, row)
	if err != nil {
		return model.Forecast{}, err
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Forecast{}, fmt.Errorf("feature %s is not finite", m.Schema[i])
		}
	}

	pct := m.Params.Predict(x)
	price := lastClose * (1 + pct)
	if math.IsNaN(pct) || math.IsInf(pct, 0) || price <= 0 {
		return model.Forecast{}, fmt.Errorf("model produced an unusable prediction %v", pct)
	}
	return model.Forecast{
		Anchor:             row.Time,
		Horizon:            m.Horizon,
		PredictedPctChange: pct,
		PredictedPrice:     price,
	}, nil
}

// Latest forecasts one horizon past the last bar of series.
func Latest(m *trainer.TrainedModel, series *model.PriceSeries) (model.Forecast, error) {
	if series.Len() == 0 {
		return model.Forecast{}, model.ErrEmptySeries
	}
	if need := calculator.Warmup(m.Indicators) + 1; series.Len() < need {
		return model.Forecast{}, &model.InsufficientHistoryError{Have: series.Len(), Need: need}
	}
	frame, err := calculator.Compute(series, m.Indicators)
	if err != nil {
		return model.Forecast{}, fmt.Errorf("compute indicators: %w", err)
	}
	return Predict(m, frame.Row(frame.Len()-1), series.Last().Close)
}

// Iterate produces k forecasts at horizons h, 2h, ... kh, all anchored at the last real bar.
//
// After each step the close series is extended with h synthetic closes on the geometric
// path from the step's anchor close to its predicted price, and indicators are recomputed
// over real plus synthetic closes. Later steps therefore consume earlier predictions as
// inputs, and their error compounds with k.
func Iterate(m *trainer.TrainedModel, series *model.PriceSeries, k int) ([]model.Forecast, error) {
	if k <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", k)
	}
	if m.Horizon <= 0 {
		return nil, fmt.Errorf("model has invalid horizon %d", m.Horizon)
	}
	if series.Len() == 0 {
		return nil, model.ErrEmptySeries
	}
	if need := calculator.Warmup(m.Indicators) + 1; series.Len() < need {
		return nil, &model.InsufficientHistoryError{Have: series.Len(), Need: need}
	}

	anchor := series.Last()
	times := series.Times()
	closes := series.Closes()
	step := barStep(times)

	out := make([]model.Forecast, 0, k)
	for j := 1; j <= k; j++ {
		frame, err := calculator.ComputeCloses(times, closes, m.Indicators)
		if err != nil {
			return nil, fmt.Errorf("step %d: compute indicators: %w", j, err)
		}
		last := len(closes) - 1
		f, err := Predict(m, frame.Row(last), closes[last])
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", j, err)
		}

		out = append(out, model.Forecast{
			Anchor:             anchor.Time,
			Horizon:            j * m.Horizon,
			PredictedPctChange: f.PredictedPrice/anchor.Close - 1,
			PredictedPrice:     f.PredictedPrice,
		})

		from, to := closes[last], f.PredictedPrice
		for i := 1; i <= m.Horizon; i++ {
			closes = append(closes, from*math.Pow(to/from, float64(i)/float64(m.Horizon)))
			times = append(times, times[len(times)-1].Add(step))
		}
	}
	return out, nil
}

// barStep is the spacing used for synthetic bar timestamps.
func barStep(times []time.Time) time.Duration {
	if n := len(times); n >= 2 {
		if d := times[n-1].Sub(times[n-2]); d > 0 {
			return d
		}
	}
	return 24 * time.Hour
}

// ErrNoModel is returned by a Holder that has not been loaded yet.
var ErrNoModel = errors.New("no model loaded")
