// Package flat provides an exact, in-memory similarity index.
//
// Every query scans all stored vectors, so results are exact. Suitable for
// the per-plugin databases the host creates, which are small.
package flat

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/nickjmiller/floneum/vectordb"
)

// Compile-time check to ensure Index satisfies vectordb.Index.
var _ vectordb.Index = (*Index)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality. 0 means the first
	// inserted vector decides it.
	Dimension int

	// Metric is the distance function used for search.
	Metric Metric
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Dimension: 0,
	Metric:    MetricL2,
}

// Index is a flat index. Ids are assigned sequentially from zero.
type Index struct {
	vectors [][]float32
	opts    Options
	mu      sync.RWMutex
}

// New creates a flat index.
func New(optFns ...func(o *Options)) *Index {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Index{opts: opts}
}

// Add stores a copy of vector and returns its id.
func (x *Index) Add(vector []float32) (uint32, error) {
	if len(vector) == 0 {
		return 0, fmt.Errorf("empty vector")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.opts.Dimension == 0 {
		x.opts.Dimension = len(vector)
	}
	if len(vector) != x.opts.Dimension {
		return 0, &DimensionMismatchError{Expected: x.opts.Dimension, Actual: len(vector)}
	}
	if uint64(len(x.vectors)) >= math.MaxUint32 {
		return 0, fmt.Errorf("index full")
	}

	x.vectors = append(x.vectors, slices.Clone(vector))
	return uint32(len(x.vectors) - 1), nil
}

// Query returns up to k nearest ids ordered by ascending distance.
func (x *Index) Query(vector []float32, k int) ([]vectordb.Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != x.opts.Dimension {
		return nil, &DimensionMismatchError{Expected: x.opts.Dimension, Actual: len(vector)}
	}
	return Nearest(x.opts.Metric, vector, k, nil, x.vectors), nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Dimension returns the fixed dimensionality, or 0 if not yet decided.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.opts.Dimension
}

// DimensionMismatchError is returned when a vector's length differs from the
// index dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
