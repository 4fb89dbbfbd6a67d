package vectordb

// Match is a single result from a similarity search.
type Match struct {
	// ID is the identifier the index assigned on insertion.
	ID uint32

	// Distance between the query and the matched vector.
	// Lower values indicate higher similarity.
	Distance float32
}

// Index is the similarity index a Store is built on.
//
// The index assigns ids; callers must not assume they are contiguous or
// start at zero. Distance metric and dimensionality checks are the index's
// responsibility. Implementations must be safe for concurrent Query calls.
type Index interface {
	// Add stores a vector and returns the id assigned to it.
	Add(vector []float32) (uint32, error)

	// Query returns up to k nearest ids ordered by ascending distance.
	Query(vector []float32, k int) ([]Match, error)
}

// IndexFactory builds the index for a Store on first use.
type IndexFactory func() (Index, error)
