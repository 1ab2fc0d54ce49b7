package model

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"sifsim/internal/dataset"
	"sifsim/internal/embedding"
	"sifsim/internal/score"
)

// SIFOptions configures a SIF model.
type SIFOptions struct {
	NumClasses int
	HiddenSize int
	// Alpha is the smoothing term a in a/(a+p(w)).
	Alpha        float64
	Unsupervised bool
	// RemoveSpecialDirection subtracts the projection onto the first
	// principal component of the training sentence embeddings.
	RemoveSpecialDirection bool
	// RNG initializes the classifier; unused in unsupervised mode.
	RNG *rand.Rand
}

// SIF embeds sentences as smooth-inverse-frequency weighted averages of
// fixed word vectors. Supervised mode scores a pair with a small classifier
// over [u*v, |u-v|]; unsupervised mode uses cosine similarity.
type SIF struct {
	opts    SIFOptions
	vectors *embedding.Table
	freq    *dataset.FrequencyTable
	pc      []float64

	hiddenW, hiddenB *Param
	outW, outB       *Param

	x, h, y *mat.Dense
}

// NewSIF returns a SIF model over vectors.
func NewSIF(vectors *embedding.Table, opts SIFOptions) (*SIF, error) {
	if vectors == nil {
		return nil, errors.New("sif: word vectors required")
	}
	if opts.NumClasses <= 0 {
		return nil, errors.Errorf("sif: num classes must be > 0 (got %d)", opts.NumClasses)
	}
	if opts.Alpha <= 0 {
		return nil, errors.Errorf("sif: alpha must be > 0 (got %g)", opts.Alpha)
	}

	m := &SIF{opts: opts, vectors: vectors}
	if opts.Unsupervised {
		return m, nil
	}
	if opts.HiddenSize <= 0 {
		return nil, errors.Errorf("sif: hidden size must be > 0 (got %d)", opts.HiddenSize)
	}
	if opts.RNG == nil {
		return nil, errors.New("sif: RNG required for supervised mode")
	}

	in := 2 * vectors.Dim()
	hb := 1 / math.Sqrt(float64(in))
	ob := 1 / math.Sqrt(float64(opts.HiddenSize))
	m.hiddenW = newParam("hidden.weight", opts.HiddenSize, in, opts.RNG, hb)
	m.hiddenB = newParam("hidden.bias", 1, opts.HiddenSize, opts.RNG, hb)
	m.outW = newParam("out.weight", opts.NumClasses, opts.HiddenSize, opts.RNG, ob)
	m.outB = newParam("out.bias", 1, opts.NumClasses, opts.RNG, ob)
	return m, nil
}

// PopulateWordFrequencyEstimation sets the unigram probabilities behind the
// word weights. Until it is called every word weighs 1.
func (m *SIF) PopulateWordFrequencyEstimation(freq *dataset.FrequencyTable) {
	m.freq = freq
}

// Weight returns a/(a+p(w)).
func (m *SIF) Weight(word string) float64 {
	var p float64
	if m.freq != nil {
		p = m.freq.Prob(word)
	}
	return m.opts.Alpha / (m.opts.Alpha + p)
}

// FitSpecialDirection computes the first principal component of the
// sentence embeddings. A no-op when RemoveSpecialDirection is off.
func (m *SIF) FitSpecialDirection(sentences [][]string) error {
	if !m.opts.RemoveSpecialDirection {
		return nil
	}
	if len(sentences) == 0 {
		return errors.New("sif: no sentences to fit the special direction")
	}

	d := m.vectors.Dim()
	emb := mat.NewDense(len(sentences), d, nil)
	for i, s := range sentences {
		emb.SetRow(i, m.average(s))
	}

	var svd mat.SVD
	if ok := svd.Factorize(emb, mat.SVDThinV); !ok {
		return errors.New("sif: svd failed to converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	m.pc = mat.Col(nil, 0, &v)
	return nil
}

// SpecialDirection returns the fitted component, nil before fitting.
func (m *SIF) SpecialDirection() []float64 {
	return m.pc
}

// Embed returns the sentence embedding.
func (m *SIF) Embed(sentence []string) []float64 {
	v := m.average(sentence)
	if m.pc != nil {
		floats.AddScaled(v, -floats.Dot(v, m.pc), m.pc)
	}
	return v
}

func (m *SIF) average(sentence []string) []float64 {
	out := make([]float64, m.vectors.Dim())
	known := 0
	for _, w := range sentence {
		vec, ok := m.vectors.Lookup(w)
		if !ok {
			continue
		}
		floats.AddScaled(out, m.Weight(w), vec)
		known++
	}
	if known > 0 {
		floats.Scale(1/float64(known), out)
	}
	return out
}

// Trainable reports whether the model has parameters to optimize.
func (m *SIF) Trainable() bool {
	return !m.opts.Unsupervised
}

// Params returns the classifier parameters.
func (m *SIF) Params() []*Param {
	if m.opts.Unsupervised {
		return nil
	}
	return []*Param{m.hiddenW, m.hiddenB, m.outW, m.outB}
}

// Forward implements Model.
func (m *SIF) Forward(b dataset.Batch) *mat.Dense {
	n := b.Len()
	if n == 0 {
		return &mat.Dense{}
	}
	if m.opts.Unsupervised {
		return m.forwardCosine(b)
	}

	d := m.vectors.Dim()
	x := mat.NewDense(n, 2*d, nil)
	for i := 0; i < n; i++ {
		u, v := m.Embed(b.A[i]), m.Embed(b.B[i])
		row := x.RawRowView(i)
		for j := 0; j < d; j++ {
			row[j] = u[j] * v[j]
			row[d+j] = math.Abs(u[j] - v[j])
		}
	}

	h := mat.NewDense(n, m.opts.HiddenSize, nil)
	h.Mul(x, m.hiddenW.Value.T())
	addRowVector(h, m.hiddenB.Value)
	h.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, h)

	z := mat.NewDense(n, m.opts.NumClasses, nil)
	z.Mul(h, m.outW.Value.T())
	addRowVector(z, m.outB.Value)

	m.x, m.h, m.y = x, h, logSoftmax(z)
	return m.y
}

// Backward implements Model.
func (m *SIF) Backward(grad *mat.Dense) {
	if m.opts.Unsupervised || m.y == nil {
		return
	}
	n, k := m.y.Dims()

	gz := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		g := grad.RawRowView(i)
		y := m.y.RawRowView(i)
		out := gz.RawRowView(i)
		s := floats.Sum(g)
		for j := range out {
			out[j] = g[j] - math.Exp(y[j])*s
		}
	}

	var gw2 mat.Dense
	gw2.Mul(gz.T(), m.h)
	m.outW.Grad.Add(m.outW.Grad, &gw2)
	addColumnSums(m.outB.Grad, gz)

	gh := mat.NewDense(n, m.opts.HiddenSize, nil)
	gh.Mul(gz, m.outW.Value)
	gh.Apply(func(i, j int, v float64) float64 {
		t := m.h.At(i, j)
		return v * (1 - t*t)
	}, gh)

	var gw1 mat.Dense
	gw1.Mul(gh.T(), m.x)
	m.hiddenW.Grad.Add(m.hiddenW.Grad, &gw1)
	addColumnSums(m.hiddenB.Grad, gh)
}

// forwardCosine maps cosine similarity c to s = 1 + (K-1)(c+1)/2 and returns
// the binned distribution of s, so the expected class is s.
func (m *SIF) forwardCosine(b dataset.Batch) *mat.Dense {
	k := m.opts.NumClasses
	y := mat.NewDense(b.Len(), k, nil)
	for i := 0; i < b.Len(); i++ {
		c := cosine(m.Embed(b.A[i]), m.Embed(b.B[i]))
		p := score.Encode(1+float64(k-1)*(c+1)/2, k)
		for j := range p {
			p[j] = math.Log(p[j])
		}
		y.SetRow(i, p)
	}
	return y
}

func cosine(u, v []float64) float64 {
	nu, nv := floats.Norm(u, 2), floats.Norm(v, 2)
	if nu == 0 || nv == 0 {
		return 0
	}
	c := floats.Dot(u, v) / (nu * nv)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

func logSoftmax(z *mat.Dense) *mat.Dense {
	n, k := z.Dims()
	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		row := z.RawRowView(i)
		hi := floats.Max(row)
		var sum float64
		for _, v := range row {
			sum += math.Exp(v - hi)
		}
		lse := hi + math.Log(sum)
		dst := out.RawRowView(i)
		for j, v := range row {
			dst[j] = v - lse
		}
	}
	return out
}

func addRowVector(m, bias *mat.Dense) {
	b := bias.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), b)
	}
}

func addColumnSums(dst, src *mat.Dense) {
	d := dst.RawRowView(0)
	r, _ := src.Dims()
	for i := 0; i < r; i++ {
		floats.Add(d, src.RawRowView(i))
	}
}
