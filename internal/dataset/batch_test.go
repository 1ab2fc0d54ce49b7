package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"sifsim/internal/score"
)

func TestNewBatchEncodesScores(t *testing.T) {
	b := NewBatch([]Example{
		{ID: "1", Score: 4.8},
		{ID: "2", Score: 1},
	}, 5)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 5, b.NumClasses())
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0.2, 0.8}, mat.Row(nil, 0, b.Relatedness), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0, 0}, mat.Row(nil, 1, b.Relatedness), 1e-12)

	gold := score.Expected(b.Relatedness)
	assert.InDelta(t, 4.8, gold.AtVec(0), 1e-12)
	assert.InDelta(t, 1.0, gold.AtVec(1), 1e-12)
}

func TestEmptyBatch(t *testing.T) {
	b := NewBatch(nil, 5)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.NumClasses())
}
