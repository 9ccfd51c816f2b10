// Package dataset turns indicator output into a leakage-free, chronologically split
// training set.
package dataset

import (
	"fmt"
	"math"
	"time"

	"MarketForecaster/internal/model"
)

const (
	DefaultHorizon       = 5
	DefaultTrainFraction = 0.85
)

// Options controls target construction and the train/test split.
type Options struct {
	Horizon       int     `json:"horizon" yaml:"horizon"`
	TrainFraction float64 `json:"train_fraction" yaml:"train_fraction"`
	// Bias appends model.BiasFeature (always 1) for families that need an intercept column.
	Bias bool `json:"-" yaml:"-"`
}

// DefaultOptions returns horizon 5 and an 85/15 split.
func DefaultOptions() Options {
	return Options{Horizon: DefaultHorizon, TrainFraction: DefaultTrainFraction}
}

// Validate checks horizon and fraction ranges.
func (o Options) Validate() error {
	if o.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", o.Horizon)
	}
	if !(o.TrainFraction > 0 && o.TrainFraction < 1) {
		return fmt.Errorf("train_fraction must be in (0,1), got %v", o.TrainFraction)
	}
	return nil
}

// Sample is one admitted feature row and its realised forward return.
type Sample struct {
	Row    model.IndicatorRow
	Target float64
}

// Dataset is a chronologically partitioned set of samples sharing one schema.
type Dataset struct {
	Schema model.FeatureSchema
	Train  []Sample
	Test   []Sample
}

// MinHistory is the shortest series that admits at least one row for the given warm-up
// and horizon.
func MinHistory(warmup, horizon int) int {
	return warmup + horizon + 1
}

// CheckHistory fails fast when a series of n bars cannot produce a single admitted row.
func CheckHistory(n, warmup, horizon int) error {
	if n == 0 {
		return model.ErrEmptySeries
	}
	if need := MinHistory(warmup, horizon); n < need {
		return &model.InsufficientHistoryError{Have: n, Need: need}
	}
	return nil
}

// Targets returns close[t+h]/close[t] - 1 for every index; the last h entries are NaN.
func Targets(closes []float64, horizon int) []float64 {
	out := make([]float64, len(closes))
	for t := range closes {
		if t+horizon >= len(closes) {
			out[t] = math.NaN()
			continue
		}
		out[t] = closes[t+horizon]/closes[t] - 1
	}
	return out
}

// Build aligns frame rows with forward targets, drops every row with an undefined feature
// or target, and splits the remainder by time.
func Build(series *model.PriceSeries, frame *model.IndicatorFrame, opts Options) (*Dataset, error) {
	if series.Len() == 0 {
		return nil, model.ErrEmptySeries
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if frame.Len() != series.Len() {
		return nil, fmt.Errorf("frame has %d rows, series has %d bars", frame.Len(), series.Len())
	}

	targets := Targets(series.Closes(), opts.Horizon)

	var admitted []Sample
	for i := 0; i < frame.Len(); i++ {
		if math.IsNaN(targets[i]) || !frame.Complete(i) {
			continue
		}
		row := frame.Row(i)
		if opts.Bias {
			row = WithBias(row)
		}
		admitted = append(admitted, Sample{Row: row, Target: targets[i]})
	}

	schema := append(model.FeatureSchema(nil), frame.Schema...)
	if opts.Bias {
		schema = append(schema, model.BiasFeature)
	}

	cut := int(math.Floor(opts.TrainFraction * float64(len(admitted))))
	return &Dataset{
		Schema: schema,
		Train:  admitted[:cut:cut],
		Test:   admitted[cut:],
	}, nil
}

// WithBias returns a copy of row with the bias feature appended.
func WithBias(row model.IndicatorRow) model.IndicatorRow {
	out := model.IndicatorRow{
		Time:   row.Time,
		Names:  make([]string, 0, len(row.Names)+1),
		Values: make([]float64, 0, len(row.Values)+1),
	}
	out.Names = append(append(out.Names, row.Names...), model.BiasFeature)
	out.Values = append(append(out.Values, row.Values...), 1.0)
	return out
}

// Matrix lays samples out as a feature matrix in schema order plus the target vector.
func Matrix(schema model.FeatureSchema, samples []Sample) ([][]float64, []float64, error) {
	x := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		vec, err := Vector(schema, s.Row)
		if err != nil {
			return nil, nil, err
		}
		x[i] = vec
		y[i] = s.Target
	}
	return x, y, nil
}

// Vector extracts row values in schema order. A missing feature is a schema mismatch.
func Vector(schema model.FeatureSchema, row model.IndicatorRow) ([]float64, error) {
	vec := make([]float64, len(schema))
	for j, name := range schema {
		v, ok := row.Get(name)
		if !ok {
			return nil, model.NewSchemaMismatch(schema, row.Schema())
		}
		vec[j] = v
	}
	return vec, nil
}

// TrainEnd returns the timestamp of the last training sample.
func (d *Dataset) TrainEnd() time.Time {
	if len(d.Train) == 0 {
		return time.Time{}
	}
	return d.Train[len(d.Train)-1].Row.Time
}

// TestStart returns the timestamp of the first test sample.
func (d *Dataset) TestStart() time.Time {
	if len(d.Test) == 0 {
		return time.Time{}
	}
	return d.Test[0].Row.Time
}
