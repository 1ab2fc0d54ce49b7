package dataset

import (
	"bufio"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"sifsim/internal/text"
)

// FrequencyTable holds unigram probabilities used for SIF weighting.
type FrequencyTable struct {
	prob map[string]float64
}

// NewFrequencyTable normalizes raw counts into probabilities.
func NewFrequencyTable(counts map[string]float64) *FrequencyTable {
	var total float64
	for _, c := range counts {
		total += c
	}
	prob := make(map[string]float64, len(counts))
	if total > 0 {
		for w, c := range counts {
			prob[w] = c / total
		}
	}
	return &FrequencyTable{prob: prob}
}

// FrequencyFromExamples counts words over both sentences of every example.
func FrequencyFromExamples(examples []Example) *FrequencyTable {
	counts := make(map[string]float64)
	for _, ex := range examples {
		for _, w := range ex.A {
			counts[w]++
		}
		for _, w := range ex.B {
			counts[w]++
		}
	}
	return NewFrequencyTable(counts)
}

// LoadFrequencyFile reads "word count" lines such as the enwiki vocabulary
// counts. Words are normalized and counts of colliding words are summed.
func LoadFrequencyFile(path string) (*FrequencyTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open frequency file %s", path)
	}
	defer f.Close()

	counts := make(map[string]float64)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, errors.Errorf("%s line %d: expected word and count", path, lineNo)
		}
		c, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s line %d", path, lineNo)
		}
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, errors.Errorf("%s line %d: non-finite count", path, lineNo)
		}
		if c < 0 {
			return nil, errors.Errorf("%s line %d: negative count", path, lineNo)
		}
		counts[text.Normalize(fields[0])] += c
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read frequency file %s", path)
	}
	if len(counts) == 0 {
		return nil, errors.Errorf("frequency file %s has no entries", path)
	}
	return NewFrequencyTable(counts), nil
}

// Prob returns p(word), zero for unseen words.
func (f *FrequencyTable) Prob(word string) float64 {
	return f.prob[word]
}

// Len reports the number of distinct words.
func (f *FrequencyTable) Len() int {
	return len(f.prob)
}
