package model

import (
	"math"
	"time"
)

// BiasFeature is the designated constant feature appended for model families that need an
// intercept column. Its value is always 1.
const BiasFeature = "const"

// FeatureSchema is the ordered list of feature names a model was trained on.
type FeatureSchema []string

// Index returns the position of name, or -1.
func (s FeatureSchema) Index(name string) int {
	for i, n := range s {
		if n == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is part of the schema.
func (s FeatureSchema) Contains(name string) bool { return s.Index(name) >= 0 }

// Equal reports whether both schemas list the same names in the same order.
func (s FeatureSchema) Equal(other FeatureSchema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// SameSet reports whether both schemas hold the same names regardless of order.
func (s FeatureSchema) SameSet(other FeatureSchema) bool {
	return len(s) == len(other) && len(s.Missing(other)) == 0 && len(s.Extra(other)) == 0
}

// Missing lists names of s that other lacks.
func (s FeatureSchema) Missing(other FeatureSchema) []string {
	var out []string
	for _, n := range s {
		if !other.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// Extra lists names of other that s lacks.
func (s FeatureSchema) Extra(other FeatureSchema) []string {
	return other.Missing(s)
}

// Without returns a copy of the schema with name removed.
func (s FeatureSchema) Without(name string) FeatureSchema {
	out := make(FeatureSchema, 0, len(s))
	for _, n := range s {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// IndicatorRow is the ordered set of indicator values defined at one timestamp.
// Indicators still inside their warm-up window are absent.
type IndicatorRow struct {
	Time   time.Time
	Names  []string
	Values []float64
}

// Get returns the value for name and whether it is defined.
func (r IndicatorRow) Get(name string) (float64, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return 0, false
}

// Schema returns the row's names as a FeatureSchema.
func (r IndicatorRow) Schema() FeatureSchema { return FeatureSchema(r.Names) }

// IndicatorFrame is the column view of indicator output. NaN marks undefined cells.
type IndicatorFrame struct {
	Times   []time.Time
	Schema  FeatureSchema
	Columns map[string][]float64
}

// Len returns the number of timestamps.
func (f *IndicatorFrame) Len() int { return len(f.Times) }

// Complete reports whether every indicator is defined at row i.
func (f *IndicatorFrame) Complete(i int) bool {
	for _, name := range f.Schema {
		if math.IsNaN(f.Columns[name][i]) {
			return false
		}
	}
	return true
}

// Row returns the defined indicators at row i in schema order.
func (f *IndicatorFrame) Row(i int) IndicatorRow {
	row := IndicatorRow{
		Time:   f.Times[i],
		Names:  make([]string, 0, len(f.Schema)),
		Values: make([]float64, 0, len(f.Schema)),
	}
	for _, name := range f.Schema {
		v := f.Columns[name][i]
		if math.IsNaN(v) {
			continue
		}
		row.Names = append(row.Names, name)
		row.Values = append(row.Values, v)
	}
	return row
}

// Forecast is a derived point prediction anchored at a known bar.
type Forecast struct {
	Anchor             time.Time `json:"anchor"`
	Horizon            int       `json:"horizon"`
	PredictedPctChange float64   `json:"predicted_pct_change"`
	PredictedPrice     float64   `json:"predicted_price"`
}
