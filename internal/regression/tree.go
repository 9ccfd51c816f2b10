package regression

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Tree is a CART regression tree grown by greedy variance reduction.
// Model complexity is bounded by MaxDepth and MinLeaf.
type Tree struct {
	MaxDepth int
	MinLeaf  int
}

// Family returns FamilyTree.
func (t *Tree) Family() string { return FamilyTree }

// RequiresBias is false; a constant column would never be chosen for a split.
func (t *Tree) RequiresBias() bool { return false }

// Fit grows the tree on x, y.
func (t *Tree) Fit(x [][]float64, y []float64) (Params, error) {
	p, err := checkInput(x, y)
	if err != nil {
		return nil, err
	}
	if t.MaxDepth <= 0 || t.MinLeaf <= 0 {
		return nil, fmt.Errorf("invalid tree hyperparameters: max_depth=%d min_leaf=%d", t.MaxDepth, t.MinLeaf)
	}
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	params := &TreeParams{NumFeatures: p}
	t.grow(params, x, y, idx, 0)
	return params, nil
}

// grow appends the subtree for rows idx and returns its node index.
func (t *Tree) grow(params *TreeParams, x [][]float64, y []float64, idx []int, depth int) int {
	node := len(params.Nodes)
	params.Nodes = append(params.Nodes, TreeNode{Leaf: true, Value: meanOf(y, idx)})

	if depth >= t.MaxDepth || len(idx) < 2*t.MinLeaf {
		return node
	}
	feature, threshold, ok := t.bestSplit(x, y, idx)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := t.grow(params, x, y, left, depth+1)
	r := t.grow(params, x, y, right, depth+1)
	params.Nodes[node] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return node
}

// bestSplit scans every feature for the threshold with the largest SSE reduction.
// Ties keep the first candidate, so the result is deterministic.
func (t *Tree) bestSplit(x [][]float64, y []float64, idx []int) (int, float64, bool) {
	n := len(idx)
	var total, totalSq float64
	for _, i := range idx {
		total += y[i]
		totalSq += y[i] * y[i]
	}
	parentSSE := totalSq - total*total/float64(n)
	if parentSSE <= 1e-18 {
		return 0, 0, false
	}

	bestGain := 0.0
	bestFeature, bestThreshold := 0, 0.0
	found := false

	sorted := make([]int, n)
	for f := 0; f < len(x[idx[0]]); f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool { return x[sorted[a]][f] < x[sorted[b]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := y[sorted[k]]
			leftSum += yi
			leftSq += yi * yi

			nl := k + 1
			nr := n - nl
			if nl < t.MinLeaf || nr < t.MinLeaf {
				continue
			}
			cur, next := x[sorted[k]][f], x[sorted[k+1]][f]
			if cur == next {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if gain := parentSSE - sse; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func meanOf(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

// TreeNode is one node of a flattened tree. Leaves carry Value; splits send
// x[Feature] <= Threshold to Left.
type TreeNode struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
}

// TreeParams is a fitted tree with the root at index 0.
type TreeParams struct {
	NumFeatures int        `json:"num_features"`
	Nodes       []TreeNode `json:"nodes"`
}

// Family returns FamilyTree.
func (p *TreeParams) Family() string { return FamilyTree }

// Features is the width of the rows the tree was grown on.
func (p *TreeParams) Features() int { return p.NumFeatures }

// OrderSensitive is false; rows are realigned to the training schema by name.
func (p *TreeParams) OrderSensitive() bool { return false }

// Predict walks from the root to a leaf and returns its value.
func (p *TreeParams) Predict(x []float64) float64 {
	i := 0
	for !p.Nodes[i].Leaf {
		n := p.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return p.Nodes[i].Value
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (p *TreeParams) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := p.Nodes[i]
		if n.Leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

func (p *TreeParams) validate() error {
	if p.NumFeatures <= 0 {
		return errors.New("tree params have no features")
	}
	if len(p.Nodes) == 0 {
		return errors.New("tree params have no nodes")
	}
	for i, n := range p.Nodes {
		if n.Leaf {
			if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
				return fmt.Errorf("node %d: non-finite leaf value", i)
			}
			continue
		}
		// Children are always appended after their parent, which also rules out cycles.
		if n.Left <= i || n.Right <= i || n.Left >= len(p.Nodes) || n.Right >= len(p.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if n.Feature < 0 || n.Feature >= p.NumFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
	}
	return nil
}
