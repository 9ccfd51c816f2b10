// Package pipeline runs the end-to-end fit: indicators, dataset, regression.
package pipeline

import (
	"fmt"

	"MarketForecaster/internal/calculator"
	"MarketForecaster/internal/config"
	"MarketForecaster/internal/dataset"
	"MarketForecaster/internal/model"
	"MarketForecaster/internal/regression"
	"MarketForecaster/internal/trainer"
)

// Pipeline holds the settings of one fit. It has no mutable state and may be shared.
type Pipeline struct {
	Indicators   calculator.IndicatorConfig
	Dataset      dataset.Options
	Regressor    regression.Regressor
	MinTrainRows int
}

// FromConfig builds a Pipeline from application config.
func FromConfig(cfg *config.Config) (*Pipeline, error) {
	reg, err := regression.New(cfg.Model.Family, cfg.Hyper())
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Indicators:   cfg.IndicatorConfig(),
		Dataset:      cfg.DatasetOptions(),
		Regressor:    reg,
		MinTrainRows: cfg.Pipeline.MinTrainRows,
	}
	return p, p.validate()
}

func (p *Pipeline) validate() error {
	if err := calculator.ValidateConfig(p.Indicators); err != nil {
		return err
	}
	return p.Dataset.Validate()
}

// MinHistory is the shortest series Run accepts.
func (p *Pipeline) MinHistory() int {
	return dataset.MinHistory(calculator.Warmup(p.Indicators), p.Dataset.Horizon)
}

// BuildDataset validates series and turns it into a split dataset. Series that are too
// short fail before any indicator is computed.
func (p *Pipeline) BuildDataset(series *model.PriceSeries) (*dataset.Dataset, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := dataset.CheckHistory(series.Len(), calculator.Warmup(p.Indicators), p.Dataset.Horizon); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("invalid series: %w", err)
	}
	frame, err := calculator.Compute(series, p.Indicators)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}
	opts := p.Dataset
	opts.Bias = p.Regressor.RequiresBias()
	return dataset.Build(series, frame, opts)
}

// Result is the outcome of a successful Run.
type Result struct {
	Model   *trainer.TrainedModel
	Dataset *dataset.Dataset
}

// Run fits a fresh model on series.
func (p *Pipeline) Run(series *model.PriceSeries) (*Result, error) {
	ds, err := p.BuildDataset(series)
	if err != nil {
		return nil, err
	}
	m, err := trainer.Train(ds, p.Regressor, trainer.Options{
		MinTrainRows: p.MinTrainRows,
		Indicators:   p.Indicators,
		Horizon:      p.Dataset.Horizon,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Model: m, Dataset: ds}, nil
}
