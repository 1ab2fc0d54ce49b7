// Package embedding loads fixed word vectors in the GloVe text format.
package embedding

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"

	"sifsim/internal/text"
)

const maxLineBytes = 1 << 20

// ErrEmpty is returned when a vector file holds no usable rows.
var ErrEmpty = errors.New("embedding: no vectors loaded")

// Table maps normalized words to fixed-size vectors.
type Table struct {
	dim     int
	index   map[string]int
	vectors []float64
}

// Load memory-maps the GloVe file at path and parses it. When keep is not
// nil only words it accepts are retained.
func Load(path string, keep func(string) bool) (*Table, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	defer r.Close()

	t, err := Read(io.NewSectionReader(r, 0, int64(r.Len())), keep)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return t, nil
}

// Read parses "word v1 ... vd" lines. The dimension is fixed by the first
// row; words containing spaces are rebuilt from the leading fields. Words
// are normalized and the first occurrence of a normalized word wins.
func Read(r io.Reader, keep func(string) bool) (*Table, error) {
	t := &Table{index: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if t.dim == 0 {
			if len(fields) < 2 {
				return nil, errors.Errorf("line %d: expected a word and at least one value", lineNo)
			}
			t.dim = len(fields) - 1
		}
		if len(fields) < t.dim+1 {
			return nil, errors.Errorf("line %d: expected %d values, got %d", lineNo, t.dim, len(fields)-1)
		}

		split := len(fields) - t.dim
		word := text.Normalize(strings.Join(fields[:split], " "))
		if _, seen := t.index[word]; seen {
			continue
		}
		if keep != nil && !keep(word) {
			continue
		}

		start := len(t.vectors)
		for _, f := range fields[split:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Errorf("line %d: non-finite value %q", lineNo, f)
			}
			t.vectors = append(t.vectors, v)
		}
		t.index[word] = start / t.dim
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan vectors")
	}
	if len(t.index) == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

// FromMap builds a table from in-memory vectors. All vectors must share a
// dimension.
func FromMap(vectors map[string][]float64) (*Table, error) {
	t := &Table{index: make(map[string]int, len(vectors))}
	for word, vec := range vectors {
		if t.dim == 0 {
			t.dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != t.dim {
			return nil, errors.Errorf("vector for %q has dimension %d, want %d", word, len(vec), t.dim)
		}
		for _, v := range vec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Errorf("vector for %q has non-finite value %g", word, v)
			}
		}
		t.index[word] = len(t.vectors) / t.dim
		t.vectors = append(t.vectors, vec...)
	}
	if len(t.index) == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

// Dim reports the vector dimension.
func (t *Table) Dim() int {
	return t.dim
}

// Len reports the number of words.
func (t *Table) Len() int {
	return len(t.index)
}

// Lookup returns the vector for word. The slice aliases the table.
func (t *Table) Lookup(word string) ([]float64, bool) {
	i, ok := t.index[word]
	if !ok {
		return nil, false
	}
	return t.vectors[i*t.dim : (i+1)*t.dim : (i+1)*t.dim], true
}
