// Package score converts distributions over ordered relatedness classes to
// continuous scores and back.
package score

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ClassBatch is the part of a batch that score reconstruction reads: the
// width K of its gold distribution and its example count N.
type ClassBatch interface {
	NumClasses() int
	Len() int
}

// YToScore maps log-probabilities y (N x K) to the expected 1-indexed class
// of each row. A y whose shape disagrees with batch panics with mat.ErrShape.
func YToScore(y mat.Matrix, batch ClassBatch) *mat.VecDense {
	n, k := batch.Len(), batch.NumClasses()
	if n == 0 {
		return &mat.VecDense{}
	}
	probs := mat.NewDense(n, k, nil)
	probs.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, y)
	return Expected(probs)
}

// Expected returns sum_k k * p[i][k] for every row of p.
func Expected(p mat.Matrix) *mat.VecDense {
	n, k := p.Dims()
	out := mat.NewVecDense(n, nil)
	out.MulVec(p, classIndices(k))
	return out
}

// Encode bins a continuous score into a distribution over k ordered classes
// whose expectation is the score: the floor class takes floor-s+1 and the
// next class takes s-floor. Scores are clamped to [1, k]; NaN encodes as
// the uniform distribution.
func Encode(s float64, k int) []float64 {
	p := make([]float64, k)
	if math.IsNaN(s) {
		for i := range p {
			p[i] = 1 / float64(k)
		}
		return p
	}
	s = math.Max(1, math.Min(float64(k), s))
	floor := math.Floor(s)
	i := int(floor)
	if i == k {
		p[k-1] = 1
		return p
	}
	p[i-1] = floor - s + 1
	p[i] = s - floor
	return p
}

func classIndices(k int) *mat.VecDense {
	idx := make([]float64, k)
	for i := range idx {
		idx[i] = float64(i + 1)
	}
	return mat.NewVecDense(k, idx)
}
