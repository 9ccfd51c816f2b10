package export

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"MarketForecaster/internal/dataset"
)

// FeatureStats summarises one column of the training partition.
type FeatureStats struct {
	Name  string
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// Describe computes per-feature statistics over the training rows, followed by the
// target as a pseudo-feature named "target".
func Describe(ds *dataset.Dataset) ([]FeatureStats, error) {
	if err := check(ds); err != nil {
		return nil, err
	}
	x, y, err := dataset.Matrix(ds.Schema, ds.Train)
	if err != nil {
		return nil, err
	}
	out := make([]FeatureStats, 0, len(ds.Schema)+1)
	col := make([]float64, len(x))
	for j, name := range ds.Schema {
		for i := range x {
			col[i] = x[i][j]
		}
		out = append(out, summarise(name, col))
	}
	out = append(out, summarise("target", y))
	return out, nil
}

func summarise(name string, v []float64) FeatureStats {
	st := FeatureStats{Name: name, Count: len(v)}
	if len(v) == 0 {
		st.Mean, st.Std, st.Min, st.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return st
	}
	st.Mean, st.Std = stat.MeanStdDev(v, nil)
	if len(v) == 1 {
		st.Std = 0
	}
	st.Min = floats.Min(v)
	st.Max = floats.Max(v)
	return st
}

// WriteStats prints stats as an aligned table.
func WriteStats(w io.Writer, stats []FeatureStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "feature\tcount\tmean\tstd\tmin\tmax\t")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%.6g\t%.6g\t%.6g\t%.6g\t\n", s.Name, s.Count, s.Mean, s.Std, s.Min, s.Max)
	}
	return tw.Flush()
}
