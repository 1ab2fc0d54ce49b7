package embedding

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `the 0.1 0.2 0.3
The 9 9 9
man 1 0 0

guitar 0 1 0
at name@domain.com 0 0 1
`

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	table, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Dim())
	assert.Equal(t, 4, table.Len())

	vec, ok := table.Lookup("the")
	require.True(t, ok)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec, "first occurrence wins after normalization")

	vec, ok = table.Lookup("at name@domain.com")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 1}, vec)

	_, ok = table.Lookup("piano")
	assert.False(t, ok)
}

func TestReadKeepFilter(t *testing.T) {
	keep := func(w string) bool { return w == "man" }
	table, err := Read(strings.NewReader(sample), keep)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	_, ok := table.Lookup("man")
	assert.True(t, ok)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader("a 1 2\nb 1\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = Read(strings.NewReader("a 1 x\n"), nil)
	assert.Error(t, err)

	_, err = Read(strings.NewReader("a 1 2\nb nan 1\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: non-finite")

	_, err = Read(strings.NewReader("a 1 Inf\n"), nil)
	assert.Error(t, err)

	_, err = Read(strings.NewReader("\n\n"), nil)
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestLookupDoesNotGrowIntoNeighbour(t *testing.T) {
	table, err := Read(strings.NewReader("a 1 2\nb 3 4\n"), nil)
	require.NoError(t, err)
	vec, _ := table.Lookup("a")
	assert.Equal(t, 2, cap(vec))
}

func TestFromMap(t *testing.T) {
	table, err := FromMap(map[string][]float64{"a": {1, 2}, "b": {3, 4}})
	require.NoError(t, err)
	vec, ok := table.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, []float64{3, 4}, vec)

	_, err = FromMap(map[string][]float64{"a": {1, 2}, "b": {3}})
	assert.Error(t, err)

	_, err = FromMap(map[string][]float64{"a": {1, math.NaN()}})
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"), nil)
	assert.Error(t, err)
}
