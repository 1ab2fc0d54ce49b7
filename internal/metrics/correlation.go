package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Metric scores predicted relatedness against gold relatedness.
type Metric interface {
	Name() string
	Compute(pred, gold []float64) float64
}

// Pearson is the linear correlation between predictions and gold scores.
type Pearson struct{}

func (Pearson) Name() string { return "pearson" }

// Compute returns NaN when fewer than two points are given or either side
// has zero variance. Mismatched lengths panic.
func (Pearson) Compute(pred, gold []float64) float64 {
	if len(pred) != len(gold) {
		panic("metrics: length mismatch")
	}
	if len(pred) < 2 || constant(pred) || constant(gold) {
		return math.NaN()
	}
	return stat.Correlation(pred, gold, nil)
}

// Spearman is the Pearson correlation of ranks, ties sharing their average
// rank.
type Spearman struct{}

func (Spearman) Name() string { return "spearman" }

func (Spearman) Compute(pred, gold []float64) float64 {
	if len(pred) != len(gold) {
		panic("metrics: length mismatch")
	}
	return Pearson{}.Compute(ranks(pred), ranks(gold))
}

// MSE is the mean squared error between predictions and gold scores.
type MSE struct{}

func (MSE) Name() string { return "mse" }

func (MSE) Compute(pred, gold []float64) float64 {
	if len(pred) != len(gold) {
		panic("metrics: length mismatch")
	}
	if len(pred) == 0 {
		return math.NaN()
	}
	var sum float64
	for i := range pred {
		d := pred[i] - gold[i]
		sum += d * d
	}
	return sum / float64(len(pred))
}

// Default returns the metrics reported for every evaluation, keyed by name.
func Default() map[string]Metric {
	out := make(map[string]Metric)
	for _, m := range []Metric{Pearson{}, Spearman{}, MSE{}} {
		out[m.Name()] = m
	}
	return out
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	out := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
