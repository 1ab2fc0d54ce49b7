package dataset

import (
	"bufio"
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"sifsim/internal/text"
)

// SICKNumClasses is the number of relatedness classes (ratings 1..5).
const SICKNumClasses = 5

var (
	// ErrEmptySplit indicates a split without examples.
	ErrEmptySplit = errors.New("dataset: empty split")
	// ErrMismatchedSplit indicates split files with different line counts.
	ErrMismatchedSplit = errors.New("dataset: split files disagree on example count")
	// ErrMissingSplit indicates a required split directory was not found.
	ErrMissingSplit = errors.New("dataset: missing split")
)

// Example is one sentence pair with its continuous gold relatedness.
type Example struct {
	ID    string
	A     []string
	B     []string
	Score float64
}

// Split is a named list of examples.
type Split struct {
	Name     string
	Examples []Example
}

// SICK holds the three relatedness splits.
type SICK struct {
	Train Split
	Dev   Split
	Test  Split
}

// NumClasses reports the width of the gold relatedness distribution.
func (s *SICK) NumClasses() int {
	return SICKNumClasses
}

// LoadSICK reads the train, dev and test splits under root concurrently.
// Each split directory holds a.toks, b.toks, sim.txt and id.txt with one
// example per line.
func LoadSICK(ctx context.Context, root string) (*SICK, error) {
	dirs, err := DiscoverSplits(root)
	if err != nil {
		return nil, err
	}
	if missing := MissingSplits(dirs); len(missing) > 0 {
		return nil, errors.Wrapf(ErrMissingSplit, "%s under %s", strings.Join(missing, ", "), root)
	}

	splits := make([]Split, len(SplitNames))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range SplitNames {
		g.Go(func() error {
			s, err := loadSplit(ctx, name, dirs[name])
			if err != nil {
				return err
			}
			splits[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &SICK{Train: splits[0], Dev: splits[1], Test: splits[2]}, nil
}

func loadSplit(ctx context.Context, name, dir string) (Split, error) {
	cols := make([][]string, len(splitFiles))
	for i, f := range splitFiles {
		if err := ctx.Err(); err != nil {
			return Split{}, err
		}
		lines, err := readLines(filepath.Join(dir, f))
		if err != nil {
			return Split{}, err
		}
		cols[i] = lines
	}

	n := len(cols[0])
	for i, lines := range cols {
		if len(lines) != n {
			return Split{}, errors.Wrapf(ErrMismatchedSplit, "%s: %s has %d lines, %s has %d",
				name, splitFiles[0], n, splitFiles[i], len(lines))
		}
	}
	if n == 0 {
		return Split{}, errors.Wrapf(ErrEmptySplit, "%s", name)
	}

	examples := make([]Example, n)
	for i := 0; i < n; i++ {
		sim, err := strconv.ParseFloat(strings.TrimSpace(cols[2][i]), 64)
		if err != nil {
			return Split{}, errors.Wrapf(err, "%s: sim.txt line %d", name, i+1)
		}
		if math.IsNaN(sim) || math.IsInf(sim, 0) || sim < 1 || sim > SICKNumClasses {
			return Split{}, errors.Errorf("%s: sim.txt line %d: score %g outside [1, %d]", name, i+1, sim, SICKNumClasses)
		}
		examples[i] = Example{
			ID:    strings.TrimSpace(cols[3][i]),
			A:     text.Tokenize(cols[0][i]),
			B:     text.Tokenize(cols[1][i]),
			Score: sim,
		}
	}
	return Split{Name: name, Examples: examples}, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	// a trailing blank line is not an example
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// Vocabulary returns every word used by the given splits.
func Vocabulary(splits ...Split) map[string]struct{} {
	vocab := make(map[string]struct{})
	for _, s := range splits {
		for _, ex := range s.Examples {
			for _, w := range ex.A {
				vocab[w] = struct{}{}
			}
			for _, w := range ex.B {
				vocab[w] = struct{}{}
			}
		}
	}
	return vocab
}
