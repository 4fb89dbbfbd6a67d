package host

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nickjmiller/floneum/config"
	"github.com/nickjmiller/floneum/content"
	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/model"
	"github.com/nickjmiller/floneum/vectordb"
	"github.com/nickjmiller/floneum/vectordb/boltindex"
	"github.com/nickjmiller/floneum/vectordb/flat"
)

// NewIndexFactory returns the index constructor selected by cfg. Bolt
// indexes get a fresh file named by a random UUID under cfg.DataDir; the
// directory is created on first use. Files are removed when their database is
// dropped unless cfg.Keep is set, and are synced to disk only on close.
func NewIndexFactory(cfg config.StoreConfig) (vectordb.IndexFactory, error) {
	metric, err := flat.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "store.metric")
	}

	switch cfg.Index {
	case "", "flat":
		return func() (vectordb.Index, error) {
			return flat.New(func(o *flat.Options) {
				o.Dimension = cfg.Dimension
				o.Metric = metric
			}), nil
		}, nil

	case "bolt":
		if cfg.DataDir == "" {
			return nil, errors.InvalidInput(errors.PhaseConfig, "store.data_dir is required for the bolt index")
		}
		dir := cfg.DataDir
		return func() (vectordb.Index, error) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
			path := filepath.Join(dir, uuid.NewString()+".db")
			idx, err := boltindex.Open(path, func(o *boltindex.Options) {
				o.Dimension = cfg.Dimension
				o.Metric = metric
				o.RemoveOnClose = !cfg.Keep
				// Inserts run inside the broker's exclusive section.
				o.NoSync = true
			})
			if err != nil {
				return nil, err
			}
			return idx, nil
		}, nil

	default:
		return nil, errors.Unsupported(errors.PhaseConfig, "index "+cfg.Index)
	}
}

// FromConfig builds adapter options from a loaded configuration.
func FromConfig(cfg *config.Config) (func(o *Options), error) {
	factory, err := NewIndexFactory(cfg.Store)
	if err != nil {
		return nil, err
	}
	return func(o *Options) {
		o.NewIndex = factory
		o.EmbedConcurrency = cfg.Boundary.EmbedConcurrency
		o.Catalog = model.NewCatalog(cfg.Models)
		if cfg.Content.Dir != "" {
			o.Source = content.NewDirSource(cfg.Content.Dir, cfg.Content.Includes...)
		}
	}, nil
}
