package vectordb

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/internal/lazy"
	"github.com/nickjmiller/floneum/resource"
)

// Document is the text payload stored alongside one embedding.
type Document struct {
	Title string
	Body  string
}

// Result pairs a matched document with its distance to the query.
type Result struct {
	Document Document
	Distance float32
}

// Store is a similarity index paired with a parallel document list.
//
// The index is constructed on first use. A construction failure is cached and
// replayed verbatim by every later call. Documents are stored at the id the
// index assigns. An id the index returns without a stored document is
// skipped by GetClosest.
//
// Store carries no lock of its own: it lives in the resource broker, which
// runs AddEmbedding under its exclusive section and GetClosest under its
// shared section. Init builds the index and is called with no lock held.
type Store struct {
	index     *lazy.Value[Index]
	documents []*Document
	count     int

	// orphans counts index entries left by a failed batch. Queries ask the
	// index for that many extra matches so k results are still found.
	orphans int

	dropped   atomic.Bool
	closeOnce sync.Once
}

// New creates a store whose index is built by factory on first use.
func New(factory IndexFactory) *Store {
	return &Store{
		index: lazy.New(func() (Index, error) {
			idx, err := factory()
			if err != nil {
				return nil, errors.ConstructionFailure(errors.PhaseStore, "similarity index", err)
			}
			if idx == nil {
				return nil, errors.ConstructionFailure(errors.PhaseStore, "similarity index",
					errors.InvalidData(errors.PhaseIndex, "factory returned nil index"))
			}
			return idx, nil
		}),
	}
}

// ResourceKind implements resource.Resource.
func (s *Store) ResourceKind() resource.Kind {
	return resource.KindEmbeddingDb
}

// State reports whether the index has been built, failed, or not yet tried.
func (s *Store) State() lazy.State {
	return s.index.State()
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	return s.count
}

// Init builds the index if it has not been built yet and returns the cached
// construction error. Safe for concurrent use; callers run it before taking
// the broker lock so construction never happens inside a critical section.
func (s *Store) Init() error {
	_, err := s.index.Get()
	if err == nil && s.dropped.Load() {
		// Dropped while building.
		s.closeIndex()
	}
	return err
}

// AddEmbedding inserts vector into the index and stores doc at the assigned id.
func (s *Store) AddEmbedding(vector []float32, doc Document) error {
	idx, err := s.index.Get()
	if err != nil {
		return err
	}

	id, err := idx.Add(vector)
	if err != nil {
		return errors.IndexFailure("add embedding", err)
	}

	s.put(id, doc)
	return nil
}

func (s *Store) put(id uint32, doc Document) {
	if int(id) >= len(s.documents) {
		grown := make([]*Document, int(id)+1)
		copy(grown, s.documents)
		s.documents = grown
	}
	if s.documents[id] == nil {
		s.count++
	}
	s.documents[id] = &doc
}

// AddEmbeddings inserts vectors with their documents as one batch. If any
// insert fails no document of the batch becomes visible; vectors already in
// the index stay there without a document and are never returned.
func (s *Store) AddEmbeddings(vectors [][]float32, docs []Document) error {
	if len(vectors) != len(docs) {
		return errors.InvalidInput(errors.PhaseStore,
			fmt.Sprintf("%d embeddings but %d documents", len(vectors), len(docs)))
	}
	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return errors.InvalidInput(errors.PhaseStore,
				fmt.Sprintf("embedding %d has dimension %d, expected %d", i, len(vectors[i]), len(vectors[0])))
		}
	}

	idx, err := s.index.Get()
	if err != nil {
		return err
	}

	ids := make([]uint32, 0, len(vectors))
	for _, vec := range vectors {
		id, err := idx.Add(vec)
		if err != nil {
			s.orphans += len(ids)
			return errors.IndexFailure("add embedding", err)
		}
		ids = append(ids, id)
	}

	for i, id := range ids {
		s.put(id, docs[i])
	}
	return nil
}

// GetClosest returns up to k documents nearest to query in the index's order.
// Ids without a stored document are skipped.
func (s *Store) GetClosest(query []float32, k int) ([]Result, error) {
	idx, err := s.index.Get()
	if err != nil {
		return nil, err
	}
	if k <= 0 || s.count == 0 {
		return []Result{}, nil
	}

	matches, err := idx.Query(query, k+s.orphans)
	if err != nil {
		return nil, errors.IndexFailure("query", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if int(m.ID) >= len(s.documents) {
			continue
		}
		doc := s.documents[m.ID]
		if doc == nil {
			continue
		}
		results = append(results, Result{Document: *doc, Distance: m.Distance})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Drop closes the index if it was built and holds external resources.
// Called by the broker when the store is released.
func (s *Store) Drop() {
	s.dropped.Store(true)
	s.closeIndex()
}

func (s *Store) closeIndex() {
	idx, ok := s.index.Peek()
	if !ok {
		return
	}
	s.closeOnce.Do(func() {
		if c, ok := idx.(io.Closer); ok {
			if err := c.Close(); err != nil {
				Logger().Warn("close similarity index", zap.Error(err))
			}
		}
	})
}
