package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam optimizer with L2 weight decay folded into the
// gradient.
type Adam struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	params []*Param
	m, v   []*mat.Dense
	step   int
}

// NewAdam returns an optimizer over params with the usual betas.
func NewAdam(params []*Param, lr, weightDecay float64) *Adam {
	a := &Adam{
		LR:          lr,
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		params:      params,
	}
	for _, p := range params {
		r, c := p.Value.Dims()
		a.m = append(a.m, mat.NewDense(r, c, nil))
		a.v = append(a.v, mat.NewDense(r, c, nil))
	}
	return a
}

// Step applies one update from the accumulated gradients.
func (a *Adam) Step() {
	a.step++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for i, p := range a.params {
		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		m := a.m[i].RawMatrix().Data
		v := a.v[i].RawMatrix().Data
		for j := range value {
			g := grad[j] + a.WeightDecay*value[j]
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			value[j] -= a.LR * mHat / (math.Sqrt(vHat) + a.Eps)
		}
	}
}

// ZeroGrad clears every accumulated gradient.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.Grad.Zero()
	}
}

// Steps reports how many updates were applied.
func (a *Adam) Steps() int {
	return a.step
}
