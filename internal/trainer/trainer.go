// Package trainer fits a regression family on a built dataset and packages the result as
// an immutable TrainedModel.
package trainer

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"MarketForecaster/internal/calculator"
	"MarketForecaster/internal/dataset"
	"MarketForecaster/internal/model"
	"MarketForecaster/internal/regression"
)

// TrainedModel is a fitted regressor together with everything needed to rebuild its
// inputs. Retraining produces a new value; existing ones are never mutated.
type TrainedModel struct {
	ID         string
	Family     string
	Schema     model.FeatureSchema
	Params     regression.Params
	Indicators calculator.IndicatorConfig
	Horizon    int
	Meta       Meta
}

// Meta describes one fit.
type Meta struct {
	FittedAt  time.Time
	TrainMSE  float64
	TestMSE   float64
	TrainRows int
	TestRows  int
}

// RequiresBias reports whether the model's schema carries the bias feature.
func (m *TrainedModel) RequiresBias() bool {
	return len(m.Schema) > 0 && m.Schema[len(m.Schema)-1] == model.BiasFeature
}

// Options configures Train.
type Options struct {
	// MinTrainRows is a lower bound on training rows; the effective bound is never below
	// len(schema)+1.
	MinTrainRows int
	Indicators   calculator.IndicatorConfig
	Horizon      int
}

// Train fits reg on ds.Train and scores it on ds.Test.
func Train(ds *dataset.Dataset, reg regression.Regressor, opts Options) (*TrainedModel, error) {
	if len(ds.Schema) == 0 {
		return nil, fmt.Errorf("dataset has an empty schema")
	}
	hasBias := ds.Schema[len(ds.Schema)-1] == model.BiasFeature
	if reg.RequiresBias() && !hasBias {
		return nil, fmt.Errorf("family %s needs the %q feature", reg.Family(), model.BiasFeature)
	}

	need := max(opts.MinTrainRows, len(ds.Schema)+1)
	if len(ds.Train) < need {
		return nil, &model.InsufficientDataError{Partition: "train", Rows: len(ds.Train), Need: need}
	}
	if len(ds.Test) == 0 {
		return nil, &model.InsufficientDataError{Partition: "test", Rows: 0, Need: 1}
	}

	xTrain, yTrain, err := dataset.Matrix(ds.Schema, ds.Train)
	if err != nil {
		return nil, err
	}
	xTest, yTest, err := dataset.Matrix(ds.Schema, ds.Test)
	if err != nil {
		return nil, err
	}

	params, err := reg.Fit(xTrain, yTrain)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", reg.Family(), err)
	}

	return &TrainedModel{
		ID:         uuid.NewString(),
		Family:     reg.Family(),
		Schema:     append(model.FeatureSchema(nil), ds.Schema...),
		Params:     params,
		Indicators: opts.Indicators,
		Horizon:    opts.Horizon,
		Meta: Meta{
			FittedAt:  time.Now().UTC().Truncate(time.Second),
			TrainMSE:  MSE(regression.PredictAll(params, xTrain), yTrain),
			TestMSE:   MSE(regression.PredictAll(params, xTest), yTest),
			TrainRows: len(ds.Train),
			TestRows:  len(ds.Test),
		},
	}, nil
}

// MSE is the mean squared error of pred against actual. It is NaN for empty input.
func MSE(pred, actual []float64) float64 {
	if len(pred) == 0 || len(pred) != len(actual) {
		return math.NaN()
	}
	diff := make([]float64, len(pred))
	floats.SubTo(diff, pred, actual)
	return floats.Dot(diff, diff) / float64(len(diff))
}
