package model

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"sifsim/internal/dataset"
)

// Model defines the functionality the runner drives. Forward returns
// log-probabilities over the ordered relatedness classes, one row per pair.
type Model interface {
	Forward(batch dataset.Batch) *mat.Dense
	// Backward accumulates parameter gradients for the last Forward given
	// the loss gradient with respect to its output.
	Backward(grad *mat.Dense)
	Params() []*Param
	Trainable() bool
}

// Param is a trainable matrix and its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, r, c int, rng *rand.Rand, bound float64) *Param {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
	return &Param{
		Name:  name,
		Value: mat.NewDense(r, c, data),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// State is a copy of parameter values keyed by name.
type State map[string]*mat.Dense

// Snapshot copies the current parameter values of m.
func Snapshot(m Model) State {
	s := make(State)
	for _, p := range m.Params() {
		s[p.Name] = mat.DenseCopyOf(p.Value)
	}
	return s
}

// Restore writes a snapshot back into m.
func Restore(m Model, s State) error {
	for _, p := range m.Params() {
		v, ok := s[p.Name]
		if !ok {
			return errors.Errorf("snapshot has no parameter %s", p.Name)
		}
		p.Value.Copy(v)
	}
	return nil
}
