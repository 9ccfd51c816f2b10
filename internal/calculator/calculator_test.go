package calculator

import (
	"errors"
	"math"
	"testing"

	"MarketForecaster/internal/model"
	"MarketForecaster/internal/testutil"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.8f, want %.8f", label, got, want)
	}
}

func TestRSI_HandCalculated(t *testing.T) {
	// Diffs over the last 3 bars: +1, +2, -1 -> avgGain 1, avgLoss 1/3, RS 3, RSI 75.
	rsi, err := RSI([]float64{10, 11, 13, 12}, 3)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("index %d: expected NaN during warm-up, got %.4f", i, rsi[i])
		}
	}
	assertClose(t, "RSI(3)", rsi[3], 75.0, 1e-9)
}

func TestRSI_ZeroDivisionConventions(t *testing.T) {
	flat, _ := RSI([]float64{5, 5, 5, 5}, 2)
	assertClose(t, "flat", flat[3], 50.0, 0)

	up, _ := RSI([]float64{5, 6, 7, 8}, 2)
	assertClose(t, "only gains", up[3], 100.0, 0)

	down, _ := RSI([]float64{8, 7, 6, 5}, 2)
	assertClose(t, "only losses", down[3], 0.0, 0)
}

func TestRSI_Bounded(t *testing.T) {
	closes := testutil.RandomWalkCloses(600, 7)
	for _, period := range []int{2, 14, 30, 50, 200} {
		rsi, err := RSI(closes, period)
		if err != nil {
			t.Fatalf("RSI(%d): %v", period, err)
		}
		for i, v := range rsi {
			if i < period {
				continue
			}
			if math.IsNaN(v) || v < 0 || v > 100 {
				t.Fatalf("RSI(%d)[%d] = %v out of [0,100]", period, i, v)
			}
		}
	}
}

func TestRSI_InvalidPeriod(t *testing.T) {
	if _, err := RSI([]float64{1, 2}, 0); err == nil {
		t.Error("expected error for period 0")
	}
}

func TestMARatio_Correctness(t *testing.T) {
	ma, err := MARatio([]float64{1, 2, 3}, 2)
	if err != nil {
		t.Fatalf("MARatio: %v", err)
	}
	if !math.IsNaN(ma[0]) {
		t.Errorf("expected NaN at index 0, got %v", ma[0])
	}
	assertClose(t, "ma[1]", ma[1], 0.75, 1e-12)
	assertClose(t, "ma[2]", ma[2], 2.5/3, 1e-12)
}

func TestPctChange_Correctness(t *testing.T) {
	pct, err := PctChange([]float64{100, 110, 121, 133.1}, 2)
	if err != nil {
		t.Fatalf("PctChange: %v", err)
	}
	if !math.IsNaN(pct[0]) || !math.IsNaN(pct[1]) {
		t.Error("expected NaN for the first 2 entries")
	}
	assertClose(t, "pct[2]", pct[2], 0.21, 1e-12)
	assertClose(t, "pct[3]", pct[3], 0.21, 1e-12)
}

func TestCompute_ConstantSeries(t *testing.T) {
	series := testutil.SeriesFromCloses(testutil.ConstantCloses(250, 100))
	cfg := DefaultIndicatorConfig()
	frame, err := Compute(series, cfg)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := Warmup(cfg); i < frame.Len(); i++ {
		for _, n := range cfg.Periods {
			assertClose(t, MAName(n), frame.Columns[MAName(n)][i], 1.0, 1e-12)
			assertClose(t, RSIName(n), frame.Columns[RSIName(n)][i], 50.0, 0)
		}
	}
}

func TestCompute_RisingSeriesRSIReaches100(t *testing.T) {
	series := testutil.SeriesFromCloses(testutil.RisingCloses(260, 50, 0.01))
	frame, err := Compute(series, DefaultIndicatorConfig())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rsi := frame.Columns[RSIName(14)]
	for i := 14; i < len(rsi); i++ {
		if rsi[i] != 100 {
			t.Fatalf("rsi14[%d] = %v, want 100", i, rsi[i])
		}
	}
}

func TestCompute_WarmupBoundary(t *testing.T) {
	cfg := DefaultIndicatorConfig()
	series := testutil.SeriesFromCloses(testutil.RandomWalkCloses(230, 3))
	frame, err := Compute(series, cfg)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	w := Warmup(cfg)
	if w != 200 {
		t.Fatalf("Warmup = %d, want 200", w)
	}
	for i := 0; i < w; i++ {
		if frame.Complete(i) {
			t.Fatalf("row %d should be incomplete", i)
		}
	}
	for i := w; i < frame.Len(); i++ {
		if !frame.Complete(i) {
			t.Fatalf("row %d should be complete", i)
		}
		if got := len(frame.Row(i).Names); got != len(frame.Schema) {
			t.Fatalf("row %d: %d names, want %d", i, got, len(frame.Schema))
		}
	}
	// ma14 is defined from index 13, before rsi14 and pct14.
	row := frame.Row(13)
	if _, ok := row.Get("ma14"); !ok {
		t.Error("ma14 should be defined at index 13")
	}
	if _, ok := row.Get("rsi14"); ok {
		t.Error("rsi14 should be undefined at index 13")
	}
}

func TestSchema_Order(t *testing.T) {
	got := Schema(IndicatorConfig{Periods: []int{30, 14}, Lags: []int{5, 1, 14}})
	want := model.FeatureSchema{"pct1", "pct5", "pct14", "pct30", "ma14", "ma30", "rsi14", "rsi30"}
	if !got.Equal(want) {
		t.Errorf("Schema = %v, want %v", got, want)
	}
}

func TestCompute_EmptySeries(t *testing.T) {
	_, err := Compute(&model.PriceSeries{}, DefaultIndicatorConfig())
	if !errors.Is(err, model.ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     IndicatorConfig
		wantErr bool
	}{
		{"default", DefaultIndicatorConfig(), false},
		{"no periods", IndicatorConfig{Lags: []int{1}}, true},
		{"negative period", IndicatorConfig{Periods: []int{-3}}, true},
		{"zero lag", IndicatorConfig{Periods: []int{14}, Lags: []int{0}}, true},
	}
	for _, tt := range tests {
		if err := ValidateConfig(tt.cfg); (err != nil) != tt.wantErr {
			t.Errorf("%s: err=%v, wantErr=%v", tt.name, err, tt.wantErr)
		}
	}
}

func TestRecentRange(t *testing.T) {
	series := testutil.SeriesFromCloses([]float64{100, 120, 80, 90})
	r, ok := RecentRange(series, 3)
	if !ok {
		t.Fatal("expected a range")
	}
	// Highs and lows are close*1.005 and close*0.995 over the last three bars.
	if math.Abs(r.High-120.6) > 1e-9 || math.Abs(r.Low-79.6) > 1e-9 {
		t.Errorf("range = %+v", r)
	}
	want := (90 - 79.6) / (120.6 - 79.6)
	if math.Abs(r.Position-want) > 1e-12 {
		t.Errorf("position = %v, want %v", r.Position, want)
	}

	flat, _ := RecentRange(testutil.SeriesFromCloses(testutil.ConstantCloses(5, 10)), 252)
	if flat.Position < 0 || flat.Position > 1 {
		t.Errorf("flat position = %v", flat.Position)
	}
	if _, ok := RecentRange(&model.PriceSeries{}, 10); ok {
		t.Error("expected no range for empty series")
	}
}
