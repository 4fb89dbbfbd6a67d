// Package boltindex provides a similarity index persisted in a BoltDB file.
//
// Vectors are stored as JSON under sequential big-endian keys and cached in
// memory for search. Search is brute force with the flat package's kernels;
// it can be replaced with an ANN structure for larger indexes.
package boltindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/nickjmiller/floneum/vectordb"
	"github.com/nickjmiller/floneum/vectordb/flat"
)

var bucketVectors = []byte("vectors")

// Compile-time check to ensure Index satisfies vectordb.Index.
var _ vectordb.Index = (*Index)(nil)

// Options contains configuration options for the bolt index.
type Options struct {
	// Dimension is the fixed vector dimensionality. 0 means the first
	// inserted (or loaded) vector decides it.
	Dimension int

	// Metric is the distance function used for search.
	Metric flat.Metric

	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration

	// RemoveOnClose deletes the file when the index is closed.
	RemoveOnClose bool

	// NoSync skips the fsync after each insert. Close syncs the file once
	// unless it is about to be removed. Writes since the last sync are lost
	// if the process dies.
	NoSync bool
}

// DefaultOptions contains the default configuration options for the bolt index.
var DefaultOptions = Options{
	Metric:  flat.MetricL2,
	Timeout: time.Second,
}

type storedVector struct {
	Vector []float32 `json:"v"`
}

// Index is a durable similarity index. Ids come from the bucket sequence and
// start at 1.
type Index struct {
	db      *bbolt.DB
	path    string
	opts    Options
	mu      sync.RWMutex
	ids     []uint32
	vectors [][]float32
}

// Open opens or creates the index file at path and loads its vectors.
func Open(path string, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: opts.Timeout, NoSync: opts.NoSync})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	x := &Index{db: db, path: path, opts: opts}
	if err := x.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return x, nil
}

func (x *Index) load() error {
	return x.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return nil
			}
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			if x.opts.Dimension == 0 {
				x.opts.Dimension = len(stored.Vector)
			}
			if len(stored.Vector) != x.opts.Dimension {
				return nil
			}
			x.ids = append(x.ids, uint32(binary.BigEndian.Uint64(k)))
			x.vectors = append(x.vectors, stored.Vector)
			return nil
		})
	})
}

// Add persists vector and returns its id.
func (x *Index) Add(vector []float32) (uint32, error) {
	if len(vector) == 0 {
		return 0, fmt.Errorf("empty vector")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.opts.Dimension != 0 && len(vector) != x.opts.Dimension {
		return 0, &flat.DimensionMismatchError{Expected: x.opts.Dimension, Actual: len(vector)}
	}

	stored := storedVector{Vector: append([]float32(nil), vector...)}
	data, err := json.Marshal(stored)
	if err != nil {
		return 0, err
	}

	var id uint32
	err = x.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if seq > math.MaxUint32 {
			return fmt.Errorf("index full")
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		if err := b.Put(key[:], data); err != nil {
			return err
		}
		id = uint32(seq)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if x.opts.Dimension == 0 {
		x.opts.Dimension = len(vector)
	}
	x.ids = append(x.ids, id)
	x.vectors = append(x.vectors, stored.Vector)
	return id, nil
}

// Query returns up to k nearest ids ordered by ascending distance.
func (x *Index) Query(vector []float32, k int) ([]vectordb.Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != x.opts.Dimension {
		return nil, &flat.DimensionMismatchError{Expected: x.opts.Dimension, Actual: len(vector)}
	}
	return flat.Nearest(x.opts.Metric, vector, k, x.ids, x.vectors), nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Path returns the database file path.
func (x *Index) Path() string {
	return x.path
}

// Close closes the underlying database file.
func (x *Index) Close() error {
	if x.opts.NoSync && !x.opts.RemoveOnClose {
		if err := x.db.Sync(); err != nil {
			x.db.Close()
			return fmt.Errorf("failed to sync bolt db: %w", err)
		}
	}
	if err := x.db.Close(); err != nil {
		return err
	}
	if x.opts.RemoveOnClose {
		return os.Remove(x.path)
	}
	return nil
}
