package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func logOf(m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return math.Log(v) }, m)
	return &out
}

func TestKLDivZeroWhenEqual(t *testing.T) {
	target := mat.NewDense(2, 3, []float64{0.2, 0.3, 0.5, 0, 1, 0})
	assert.InDelta(t, 0.0, KLDivLoss{}.Forward(logOf(target), target), 1e-12)
}

func TestKLDivKnownValue(t *testing.T) {
	target := mat.NewDense(1, 2, []float64{1, 0})
	y := logOf(mat.NewDense(1, 2, []float64{0.5, 0.5}))
	// mean over 2 elements of 1*(log 1 - log 0.5)
	assert.InDelta(t, math.Log(2)/2, KLDivLoss{}.Forward(y, target), 1e-12)
}

func TestKLDivFloorsZeroPrediction(t *testing.T) {
	target := mat.NewDense(1, 2, []float64{0.5, 0.5})
	y := mat.NewDense(1, 2, []float64{0, math.Inf(-1)})
	got := KLDivLoss{}.Forward(y, target)
	assert.False(t, math.IsInf(got, 0))
	assert.Greater(t, got, 10.0)
}

func TestKLDivGrad(t *testing.T) {
	target := mat.NewDense(2, 2, []float64{0.25, 0.75, 1, 0})
	y := logOf(mat.NewDense(2, 2, []float64{0.5, 0.5, 0.5, 0.5}))
	g := KLDivLoss{}.Grad(y, target)
	assert.InDeltaSlice(t, []float64{-0.0625, -0.1875, -0.25, 0}, g.RawMatrix().Data, 1e-12)
}

func TestKLDivShapeMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		KLDivLoss{}.Forward(mat.NewDense(1, 3, nil), mat.NewDense(1, 2, nil))
	})
}
