// Package vectordb provides the embedding database resource: a similarity
// index paired with the documents its vectors were computed from.
//
// The index is an external collaborator behind the Index interface; see the
// flat and boltindex subpackages for the built-in implementations.
//
//	store := vectordb.New(func() (vectordb.Index, error) {
//	    return flat.New(), nil
//	})
//	err := store.AddEmbedding([]float32{1, 0, 0}, vectordb.Document{Body: "alpha"})
//	results, err := store.GetClosest([]float32{1, 0, 0}, 2)
//
// # Lifecycle
//
// The index is built on first use. Construction happens at most once: a
// failure moves the store to the faulted state, and every later operation
// returns the same construction_failure error. A failed add or query on a
// healthy index returns index_failure and leaves the store usable.
//
// The store is append-only. Individual embeddings and documents are never
// updated or removed; releasing the store is the only way to reclaim them.
package vectordb
