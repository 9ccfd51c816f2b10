package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Linear is a least-squares model with an L2 penalty on the feature weights.
// The last input column is the intercept column and is never penalised.
//
// Features are standardised internally before solving so constant or collinear columns
// stay solvable; the stored weights are mapped back to the raw feature scale.
type Linear struct {
	Lambda float64
}

// Family returns FamilyLinear.
func (l *Linear) Family() string { return FamilyLinear }

// RequiresBias is true: the intercept is learned as the weight of the bias column.
func (l *Linear) RequiresBias() bool { return true }

// Fit solves (ZᵀZ + λI)w = Zᵀ(y - ȳ) on standardised features Z.
func (l *Linear) Fit(x [][]float64, y []float64) (Params, error) {
	p, err := checkInput(x, y)
	if err != nil {
		return nil, err
	}
	n := len(x)
	m := p - 1 // non-intercept features

	means := make([]float64, m)
	scales := make([]float64, m)
	col := make([]float64, n)
	for j := 0; j < m; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		means[j] = mean
		if math.IsNaN(std) || std <= 1e-12*math.Max(1, math.Abs(mean)) {
			scales[j] = 0 // constant up to rounding, carries no signal
		} else {
			scales[j] = std
		}
	}
	yMean := stat.Mean(y, nil)

	weights := make([]float64, p)
	if m > 0 {
		z := mat.NewDense(n, m, nil)
		for i := range x {
			for j := 0; j < m; j++ {
				if scales[j] != 0 {
					z.Set(i, j, (x[i][j]-means[j])/scales[j])
				}
			}
		}
		yc := mat.NewVecDense(n, nil)
		for i, v := range y {
			yc.SetVec(i, v-yMean)
		}

		var ztz mat.SymDense
		ztz.SymOuterK(1, z.T())
		lambda := l.Lambda
		if lambda == 0 {
			lambda = 1e-12
		}
		for j := 0; j < m; j++ {
			ztz.SetSym(j, j, ztz.At(j, j)+lambda)
		}

		var zty mat.VecDense
		zty.MulVec(z.T(), yc)

		var chol mat.Cholesky
		if ok := chol.Factorize(&ztz); !ok {
			return nil, errors.New("normal equations are not positive definite")
		}
		var w mat.VecDense
		if err := chol.SolveVecTo(&w, &zty); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return nil, fmt.Errorf("solve normal equations: %w", err)
			}
		}

		intercept := yMean
		for j := 0; j < m; j++ {
			if scales[j] == 0 {
				continue
			}
			weights[j] = w.AtVec(j) / scales[j]
			intercept -= weights[j] * means[j]
		}
		weights[m] = intercept
	} else {
		weights[0] = yMean
	}

	for _, v := range weights {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("linear fit produced non-finite weights")
		}
	}
	return &LinearParams{Weights: weights}, nil
}

// LinearParams are the raw-scale weights; the last weight multiplies the intercept column.
type LinearParams struct {
	Weights []float64 `json:"weights"`
}

// Family returns FamilyLinear.
func (p *LinearParams) Family() string { return FamilyLinear }

// Features is the number of weights, bias included.
func (p *LinearParams) Features() int { return len(p.Weights) }

// OrderSensitive is true; weights are bound to training column positions.
func (p *LinearParams) OrderSensitive() bool { return true }

// Predict returns the dot product of the weights with x.
func (p *LinearParams) Predict(x []float64) float64 {
	sum := 0.0
	for j, w := range p.Weights {
		sum += w * x[j]
	}
	return sum
}

func (p *LinearParams) validate() error {
	if len(p.Weights) == 0 {
		return errors.New("linear params have no weights")
	}
	for _, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return errors.New("linear params contain non-finite weights")
		}
	}
	return nil
}
