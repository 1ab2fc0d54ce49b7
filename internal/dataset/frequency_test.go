package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyFromExamples(t *testing.T) {
	freq := FrequencyFromExamples([]Example{
		{A: []string{"a", "man"}, B: []string{"a", "dog"}},
	})
	assert.Equal(t, 3, freq.Len())
	assert.InDelta(t, 0.5, freq.Prob("a"), 1e-12)
	assert.InDelta(t, 0.25, freq.Prob("man"), 1e-12)
	assert.Equal(t, 0.0, freq.Prob("cat"))
}

func TestLoadFrequencyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enwiki.txt")
	mustWrite(t, path, "the 60\nThe 20\n\nman 20\n")

	freq, err := LoadFrequencyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, freq.Len())
	assert.InDelta(t, 0.8, freq.Prob("the"), 1e-12)
	assert.InDelta(t, 0.2, freq.Prob("man"), 1e-12)
}

func TestLoadFrequencyFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFrequencyFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.txt")
	mustWrite(t, bad, "the sixty\n")
	_, err = LoadFrequencyFile(bad)
	assert.Error(t, err)

	short := filepath.Join(dir, "short.txt")
	mustWrite(t, short, "the\n")
	_, err = LoadFrequencyFile(short)
	assert.Error(t, err)

	for _, count := range []string{"NaN", "Inf", "-Inf"} {
		nonFinite := filepath.Join(dir, "nonfinite.txt")
		mustWrite(t, nonFinite, "a 3\nthe "+count+"\n")
		_, err = LoadFrequencyFile(nonFinite)
		require.Error(t, err, count)
		assert.Contains(t, err.Error(), "line 2: non-finite count")
	}

	empty := filepath.Join(dir, "empty.txt")
	mustWrite(t, empty, "")
	_, err = LoadFrequencyFile(empty)
	assert.Error(t, err)
}

func TestFrequencySumsToOne(t *testing.T) {
	freq := NewFrequencyTable(map[string]float64{"x": 3, "y": 5, "z": 2})
	var sum float64
	for _, w := range []string{"x", "y", "z"} {
		sum += freq.Prob(w)
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}
