package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// minLogProb floors predicted log-probabilities inside the loss so a zero
// predicted probability under a non-zero target gives a large finite loss.
const minLogProb = -100.0

// KLDivLoss is the mean over all N*K elements of target*(log target - y),
// where y holds log-probabilities and 0*log 0 is taken as 0.
type KLDivLoss struct{}

// Forward returns the loss. Mismatched shapes panic with mat.ErrShape.
func (KLDivLoss) Forward(y, target mat.Matrix) float64 {
	n, k := checkShape(y, target)
	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			p := target.At(i, j)
			if p <= 0 {
				continue
			}
			sum += p * (math.Log(p) - math.Max(y.At(i, j), minLogProb))
		}
	}
	return sum / float64(n*k)
}

// Grad returns dLoss/dy, which is -target/(N*K).
func (KLDivLoss) Grad(y, target mat.Matrix) *mat.Dense {
	n, k := checkShape(y, target)
	g := mat.NewDense(n, k, nil)
	scale := -1 / float64(n*k)
	g.Apply(func(_, _ int, p float64) float64 { return p * scale }, target)
	return g
}

func checkShape(y, target mat.Matrix) (int, int) {
	yr, yc := y.Dims()
	n, k := target.Dims()
	if yr != n || yc != k {
		panic(mat.ErrShape)
	}
	return n, k
}
