package flat

import (
	"container/heap"
	"fmt"
	"math"
	"strings"

	"github.com/nickjmiller/floneum/vectordb"
)

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric parses a metric name as written in configuration.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "l2", "euclidean", "squared_l2":
		return MetricL2, nil
	case "cosine":
		return MetricCosine, nil
	case "dot", "inner_product":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Distance returns the distance between a and b under m.
// Lower is closer for every metric; dot products are negated.
// Assumes a and b have the same length.
func Distance(m Metric, a, b []float32) float32 {
	switch m {
	case MetricCosine:
		return cosineDistance(a, b)
	case MetricDot:
		return -dot(a, b)
	default:
		return squaredL2(a, b)
	}
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func cosineDistance(a, b []float32) float32 {
	var ab, aa, bb float64
	for i := range a {
		ab += float64(a[i]) * float64(b[i])
		aa += float64(a[i]) * float64(a[i])
		bb += float64(b[i]) * float64(b[i])
	}
	if aa == 0 || bb == 0 {
		return 1
	}
	return float32(1 - ab/(math.Sqrt(aa)*math.Sqrt(bb)))
}

// Nearest scans vectors and returns the k closest to query, ordered by
// ascending distance with ties broken by ascending id. If ids is nil, a
// vector's position is its id.
func Nearest(m Metric, query []float32, k int, ids []uint32, vectors [][]float32) []vectordb.Match {
	if k <= 0 || len(vectors) == 0 {
		return nil
	}

	h := make(maxHeap, 0, min(k, len(vectors)))
	for i, v := range vectors {
		id := uint32(i)
		if ids != nil {
			id = ids[i]
		}
		cand := vectordb.Match{ID: id, Distance: Distance(m, query, v)}
		if h.Len() < k {
			heap.Push(&h, cand)
			continue
		}
		if closer(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	out := make([]vectordb.Match, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(vectordb.Match)
	}
	return out
}

func closer(a, b vectordb.Match) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// maxHeap keeps the current worst candidate at the root.
type maxHeap []vectordb.Match

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(vectordb.Match)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
