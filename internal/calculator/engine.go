package calculator

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"MarketForecaster/internal/model"
)

// DefaultPeriods are the lookbacks used for ma, rsi and pct features.
var DefaultPeriods = []int{14, 30, 50, 200}

// DefaultLags are the extra short pct-change lags.
var DefaultLags = []int{1, 5}

// IndicatorConfig selects which indicators the engine computes.
type IndicatorConfig struct {
	Periods []int `json:"periods" yaml:"periods"`
	Lags    []int `json:"lags" yaml:"lags"`
}

// DefaultIndicatorConfig returns the default periods and lags.
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		Periods: append([]int(nil), DefaultPeriods...),
		Lags:    append([]int(nil), DefaultLags...),
	}
}

// ValidateConfig checks that periods and lags are usable.
func ValidateConfig(cfg IndicatorConfig) error {
	if len(cfg.Periods) == 0 {
		return fmt.Errorf("at least one period is required")
	}
	for _, p := range cfg.Periods {
		if p <= 0 {
			return fmt.Errorf("invalid period %d: must be positive", p)
		}
	}
	for _, l := range cfg.Lags {
		if l <= 0 {
			return fmt.Errorf("invalid lag %d: must be positive", l)
		}
	}
	return nil
}

// Warmup returns the number of leading rows that are incomplete for at least one indicator.
func Warmup(cfg IndicatorConfig) int {
	w := 0
	for _, p := range cfg.Periods {
		// pct{p} and rsi{p} need p rows, ma{p} needs p-1.
		if p > w {
			w = p
		}
	}
	for _, l := range cfg.Lags {
		if l > w {
			w = l
		}
	}
	return w
}

// Schema returns the ordered feature names produced for cfg: pct by ascending lag,
// then ma, then rsi by ascending period.
func Schema(cfg IndicatorConfig) model.FeatureSchema {
	periods := uniqueSorted(cfg.Periods)
	lags := uniqueSorted(append(append([]int(nil), cfg.Lags...), cfg.Periods...))

	schema := make(model.FeatureSchema, 0, len(lags)+2*len(periods))
	for _, k := range lags {
		schema = append(schema, PctName(k))
	}
	for _, n := range periods {
		schema = append(schema, MAName(n))
	}
	for _, n := range periods {
		schema = append(schema, RSIName(n))
	}
	return schema
}

// PctName is the column holding the k-bar percent change, e.g. pct5.
func PctName(k int) string { return "pct" + strconv.Itoa(k) }

// MAName is the column holding the n-bar moving average of closes.
func MAName(n int) string { return "ma" + strconv.Itoa(n) }

// RSIName is the column holding the n-bar relative strength index.
func RSIName(n int) string { return "rsi" + strconv.Itoa(n) }

// Compute produces an indicator frame covering every bar of the series.
func Compute(series *model.PriceSeries, cfg IndicatorConfig) (*model.IndicatorFrame, error) {
	if series.Len() == 0 {
		return nil, model.ErrEmptySeries
	}
	return ComputeCloses(series.Times(), series.Closes(), cfg)
}

// ComputeCloses is Compute over bare columns. times and closes must have equal length.
func ComputeCloses(times []time.Time, closes []float64, cfg IndicatorConfig) (*model.IndicatorFrame, error) {
	if len(times) != len(closes) {
		return nil, fmt.Errorf("times/closes length mismatch: %d vs %d", len(times), len(closes))
	}
	if len(closes) == 0 {
		return nil, model.ErrEmptySeries
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	frame := &model.IndicatorFrame{
		Times:   times,
		Schema:  Schema(cfg),
		Columns: make(map[string][]float64),
	}

	for _, k := range uniqueSorted(append(append([]int(nil), cfg.Lags...), cfg.Periods...)) {
		col, err := PctChange(closes, k)
		if err != nil {
			return nil, fmt.Errorf("pct%d: %w", k, err)
		}
		frame.Columns[PctName(k)] = col
	}
	for _, n := range uniqueSorted(cfg.Periods) {
		ma, err := MARatio(closes, n)
		if err != nil {
			return nil, fmt.Errorf("ma%d: %w", n, err)
		}
		frame.Columns[MAName(n)] = ma

		rsi, err := RSI(closes, n)
		if err != nil {
			return nil, fmt.Errorf("rsi%d: %w", n, err)
		}
		frame.Columns[RSIName(n)] = rsi
	}
	return frame, nil
}

func uniqueSorted(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
