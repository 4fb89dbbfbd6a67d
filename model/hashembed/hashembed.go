// Package hashembed provides a deterministic, offline embedding backend based
// on feature hashing of lower-cased word tokens.
//
// It needs no network or model weights, which makes it the default for
// development, tests and demos. Similar texts share tokens and therefore land
// close together under cosine or L2 distance.
package hashembed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 256

// Backend is a feature-hashing embedder.
type Backend struct {
	dimension int
}

// New creates an embedder producing vectors of the given dimension.
func New(dimension int) *Backend {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Backend{dimension: dimension}
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "hash"
}

// Dimension returns the output vector length.
func (b *Backend) Dimension() int {
	return b.dimension
}

// Embed hashes every token of text into a signed bucket and L2-normalizes the
// result. Empty text yields the zero vector.
func (b *Backend) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, b.dimension)
	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := sum % uint64(b.dimension)
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

// Tokenize splits text into lower-cased runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
