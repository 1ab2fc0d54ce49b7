package dataset

import (
	"gonum.org/v1/gonum/mat"

	"sifsim/internal/score"
)

// Batch represents a minibatch of sentence pairs. Relatedness holds one
// gold distribution over the ordered classes per row.
type Batch struct {
	IDs         []string
	A           [][]string
	B           [][]string
	Relatedness *mat.Dense
	Scores      []float64
}

// NewBatch bins every example's score into a k-class distribution.
func NewBatch(examples []Example, k int) Batch {
	b := Batch{
		IDs:    make([]string, len(examples)),
		A:      make([][]string, len(examples)),
		B:      make([][]string, len(examples)),
		Scores: make([]float64, len(examples)),
	}
	if len(examples) == 0 {
		return b
	}
	b.Relatedness = mat.NewDense(len(examples), k, nil)
	for i, ex := range examples {
		b.IDs[i] = ex.ID
		b.A[i] = ex.A
		b.B[i] = ex.B
		b.Scores[i] = ex.Score
		b.Relatedness.SetRow(i, score.Encode(ex.Score, k))
	}
	return b
}

// Len reports the number of examples.
func (b Batch) Len() int {
	return len(b.IDs)
}

// NumClasses reports the width of the gold distribution.
func (b Batch) NumClasses() int {
	if b.Relatedness == nil {
		return 0
	}
	_, k := b.Relatedness.Dims()
	return k
}
