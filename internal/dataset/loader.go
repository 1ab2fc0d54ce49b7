package dataset

import (
	"context"
	"math/rand/v2"

	"github.com/pkg/errors"
)

const defaultPrefetch = 2

// LoaderOptions configures batching of one split.
type LoaderOptions struct {
	BatchSize  int
	NumClasses int
	Shuffle    bool
	// RNG drives shuffling; required when Shuffle is set.
	RNG *rand.Rand
	// Prefetch bounds how many batches Stream builds ahead of the consumer.
	Prefetch int
}

// Loader cuts a split into batches.
type Loader struct {
	examples []Example
	opts     LoaderOptions
}

// NewLoader validates opts and returns a loader over examples.
func NewLoader(examples []Example, opts LoaderOptions) (*Loader, error) {
	if len(examples) == 0 {
		return nil, ErrEmptySplit
	}
	if opts.BatchSize <= 0 {
		return nil, errors.Errorf("loader: batch size must be > 0 (got %d)", opts.BatchSize)
	}
	if opts.NumClasses <= 0 {
		return nil, errors.Errorf("loader: num classes must be > 0 (got %d)", opts.NumClasses)
	}
	if opts.Shuffle && opts.RNG == nil {
		return nil, errors.New("loader: shuffle requires an RNG")
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = defaultPrefetch
	}
	return &Loader{examples: examples, opts: opts}, nil
}

// NumClasses reports the distribution width of produced batches.
func (l *Loader) NumClasses() int {
	return l.opts.NumClasses
}

// Len reports the number of batches per pass.
func (l *Loader) Len() int {
	return (len(l.examples) + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Batches returns one pass over the split for eager callers. Shuffled
// loaders draw a new order on every call, the same as Stream.
func (l *Loader) Batches() []Batch {
	order := l.order()
	out := make([]Batch, 0, l.Len())
	for start := 0; start < len(order); start += l.opts.BatchSize {
		out = append(out, l.batch(order, start))
	}
	return out
}

// Stream builds one pass of batches on a separate goroutine, at most
// Prefetch ahead of the consumer. The order is drawn before Stream returns
// so the RNG sequence does not depend on scheduling.
func (l *Loader) Stream(ctx context.Context) (<-chan Batch, <-chan error) {
	order := l.order()
	out := make(chan Batch, l.opts.Prefetch)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		for start := 0; start < len(order); start += l.opts.BatchSize {
			b := l.batch(order, start)
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- b:
			}
		}
	}()

	return out, errCh
}

func (l *Loader) batch(order []int, start int) Batch {
	end := min(start+l.opts.BatchSize, len(order))
	picked := make([]Example, 0, end-start)
	for _, i := range order[start:end] {
		picked = append(picked, l.examples[i])
	}
	return NewBatch(picked, l.opts.NumClasses)
}

func (l *Loader) order() []int {
	order := make([]int, len(l.examples))
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.opts.RNG.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}
