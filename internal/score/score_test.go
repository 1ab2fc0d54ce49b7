package score

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type fakeBatch struct{ n, k int }

func (b fakeBatch) Len() int        { return b.n }
func (b fakeBatch) NumClasses() int { return b.k }

func logRows(rows ...[]float64) *mat.Dense {
	k := len(rows[0])
	data := make([]float64, 0, len(rows)*k)
	for _, r := range rows {
		for _, p := range r {
			data = append(data, math.Log(p))
		}
	}
	return mat.NewDense(len(rows), k, data)
}

func TestYToScoreExamples(t *testing.T) {
	oneHot := logRows([]float64{0, 0, 1, 0, 0})
	got := YToScore(oneHot, fakeBatch{n: 1, k: 5})
	assert.Equal(t, 3.0, got.AtVec(0))

	uniform := logRows([]float64{0.2, 0.2, 0.2, 0.2, 0.2})
	got = YToScore(uniform, fakeBatch{n: 1, k: 5})
	assert.InDelta(t, 3.0, got.AtVec(0), 1e-12)
}

func TestYToScoreOneHotIsExact(t *testing.T) {
	for k := 1; k <= 7; k++ {
		for hot := 1; hot <= k; hot++ {
			row := make([]float64, k)
			row[hot-1] = 1
			got := YToScore(logRows(row), fakeBatch{n: 1, k: k})
			require.Equal(t, float64(hot), got.AtVec(0), "k=%d hot=%d", k, hot)
		}
	}
}

func TestYToScoreUniform(t *testing.T) {
	for k := 1; k <= 10; k++ {
		row := make([]float64, k)
		for i := range row {
			row[i] = 1 / float64(k)
		}
		got := YToScore(logRows(row), fakeBatch{n: 1, k: k})
		assert.InDelta(t, float64(k+1)/2, got.AtVec(0), 1e-9, "k=%d", k)
	}
}

func randomRows(rng *rand.Rand, n, k int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, k)
		var sum float64
		for j := range row {
			row[j] = rng.Float64() + 1e-6
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
		rows[i] = row
	}
	return rows
}

func TestYToScoreBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for k := 1; k <= 6; k++ {
		rows := randomRows(rng, 50, k)
		got := YToScore(logRows(rows...), fakeBatch{n: len(rows), k: k})
		for i := 0; i < got.Len(); i++ {
			v := got.AtVec(i)
			assert.GreaterOrEqual(t, v, 1.0-1e-9)
			assert.LessOrEqual(t, v, float64(k)+1e-9)
		}
	}
}

func TestYToScoreBatchInvariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	rows := randomRows(rng, 8, 5)
	batched := YToScore(logRows(rows...), fakeBatch{n: len(rows), k: 5})
	for i, row := range rows {
		single := YToScore(logRows(row), fakeBatch{n: 1, k: 5})
		assert.InDelta(t, single.AtVec(0), batched.AtVec(i), 1e-12)
	}
}

func TestYToScoreIsOneIndexed(t *testing.T) {
	// mass split between classes 1 and 2 must land between them, not between 0 and 1
	got := YToScore(logRows([]float64{0.5, 0.5, 0, 0}), fakeBatch{n: 1, k: 4})
	assert.InDelta(t, 1.5, got.AtVec(0), 1e-12)

	// moving the mass one class up adds exactly one
	shifted := YToScore(logRows([]float64{0, 0.5, 0.5, 0}), fakeBatch{n: 1, k: 4})
	assert.InDelta(t, got.AtVec(0)+1, shifted.AtVec(0), 1e-12)
}

func TestYToScoreShapeMismatchPanics(t *testing.T) {
	y := logRows([]float64{0.5, 0.5, 0})
	assert.Panics(t, func() { YToScore(y, fakeBatch{n: 1, k: 5}) })
	assert.Panics(t, func() { YToScore(y, fakeBatch{n: 2, k: 3}) })
}

func TestYToScoreEmptyBatch(t *testing.T) {
	got := YToScore(&mat.Dense{}, fakeBatch{n: 0, k: 5})
	assert.Equal(t, 0, got.Len())
}

func TestEncode(t *testing.T) {
	tests := []struct {
		s    float64
		want []float64
	}{
		{1, []float64{1, 0, 0, 0, 0}},
		{3.6, []float64{0, 0, 0.4, 0.6, 0}},
		{5, []float64{0, 0, 0, 0, 1}},
		{0.2, []float64{1, 0, 0, 0, 0}},
		{7, []float64{0, 0, 0, 0, 1}},
	}
	for _, tt := range tests {
		got := Encode(tt.s, 5)
		assert.InDeltaSlice(t, tt.want, got, 1e-12, "s=%v", tt.s)
	}
}

func TestEncodeNaNIsUniform(t *testing.T) {
	p := Encode(math.NaN(), 5)
	assert.InDeltaSlice(t, []float64{0.2, 0.2, 0.2, 0.2, 0.2}, p, 1e-12)
	assert.InDelta(t, 3.0, Expected(mat.NewDense(1, 5, p)).AtVec(0), 1e-12)
}

func TestEncodeExpectedRoundTrip(t *testing.T) {
	scores := []float64{1, 1.25, 2.5, 3.9, 4.75, 5}
	data := make([]float64, 0, len(scores)*5)
	for _, s := range scores {
		data = append(data, Encode(s, 5)...)
	}
	got := Expected(mat.NewDense(len(scores), 5, data))
	for i, s := range scores {
		assert.InDelta(t, s, got.AtVec(i), 1e-12)
	}
}
