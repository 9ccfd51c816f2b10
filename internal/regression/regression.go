// Package regression holds the pluggable model families used by the trainer.
//
// Every family implements Regressor (fit) and produces Params (predict). Params are plain
// JSON-encodable values so a fitted model can be persisted and restored byte for byte.
package regression

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	FamilyLinear = "linear"
	FamilyTree   = "tree"
)

// Regressor fits a model mapping a feature matrix to continuous targets.
type Regressor interface {
	Family() string
	// RequiresBias reports whether the caller must supply an intercept column as the
	// last feature (always 1).
	RequiresBias() bool
	Fit(x [][]float64, y []float64) (Params, error)
}

// Params are the fitted, immutable parameters of one family.
type Params interface {
	Family() string
	// Features is the length of the input vector Predict expects.
	Features() int
	// OrderSensitive reports whether inputs are bound to positions rather than names.
	OrderSensitive() bool
	Predict(x []float64) float64
}

// Hyper carries caller-supplied hyperparameters for every family.
type Hyper struct {
	Lambda   float64 `json:"lambda" yaml:"lambda"`
	MaxDepth int     `json:"max_depth" yaml:"max_depth"`
	MinLeaf  int     `json:"min_leaf" yaml:"min_leaf"`
}

// DefaultHyper returns conservative defaults.
func DefaultHyper() Hyper {
	return Hyper{Lambda: 1e-3, MaxDepth: 4, MinLeaf: 5}
}

// New returns the Regressor for family.
func New(family string, h Hyper) (Regressor, error) {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case FamilyLinear, "ols", "ridge":
		if h.Lambda < 0 {
			return nil, fmt.Errorf("lambda must be non-negative, got %v", h.Lambda)
		}
		return &Linear{Lambda: h.Lambda}, nil
	case FamilyTree:
		if h.MaxDepth <= 0 {
			return nil, fmt.Errorf("max_depth must be positive, got %d", h.MaxDepth)
		}
		if h.MinLeaf <= 0 {
			return nil, fmt.Errorf("min_leaf must be positive, got %d", h.MinLeaf)
		}
		return &Tree{MaxDepth: h.MaxDepth, MinLeaf: h.MinLeaf}, nil
	default:
		return nil, fmt.Errorf("unknown model family %q", family)
	}
}

// DecodeParams restores Params of family from their JSON encoding and checks they are
// internally consistent.
func DecodeParams(family string, raw []byte) (Params, error) {
	var p Params
	switch family {
	case FamilyLinear:
		var lp LinearParams
		if err := json.Unmarshal(raw, &lp); err != nil {
			return nil, err
		}
		p = &lp
	case FamilyTree:
		var tp TreeParams
		if err := json.Unmarshal(raw, &tp); err != nil {
			return nil, err
		}
		p = &tp
	default:
		return nil, fmt.Errorf("unknown model family %q", family)
	}
	if v, ok := p.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// PredictAll applies p to every row of x.
func PredictAll(p Params, x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = p.Predict(row)
	}
	return out
}

// checkInput validates a training matrix and returns its column count.
func checkInput(x [][]float64, y []float64) (int, error) {
	if len(x) == 0 {
		return 0, errors.New("empty training matrix")
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("x has %d rows, y has %d", len(x), len(y))
	}
	p := len(x[0])
	if p == 0 {
		return 0, errors.New("no features")
	}
	for i, row := range x {
		if len(row) != p {
			return 0, fmt.Errorf("row %d has %d features, want %d", i, len(row), p)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("row %d contains a non-finite feature", i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, fmt.Errorf("row %d has a non-finite target", i)
		}
	}
	return p, nil
}
