package model

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/internal/lazy"
	"github.com/nickjmiller/floneum/resource"
)

// Type is the capability a model is declared with.
type Type string

const (
	TypeText      Type = "text"
	TypeEmbedding Type = "embedding"
)

// Backend is a constructed model. A backend implements Generator, Embedder
// or both.
type Backend interface {
	Name() string
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens uint32, stopOn string) (string, error)
}

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Loader constructs a backend. It runs at most once per Model.
type Loader func() (Backend, error)

// Model is the broker resource for a language or embedding model.
//
// The backend is loaded on first use; a load failure is cached and replayed
// by every later call. Model is safe for concurrent use, so callers copy it
// out of the broker and run inference without holding the broker lock.
type Model struct {
	name    string
	typ     Type
	backend *lazy.Value[Backend]
	limiter *rate.Limiter
}

// New creates a model whose backend is built by load on first use.
// requestsPerSecond <= 0 disables rate limiting.
func New(name string, typ Type, requestsPerSecond float64, load Loader) *Model {
	m := &Model{
		name: name,
		typ:  typ,
		backend: lazy.New(func() (Backend, error) {
			b, err := load()
			if err != nil {
				return nil, errors.ConstructionFailure(errors.PhaseModel, "model "+name, err)
			}
			if b == nil {
				return nil, errors.ConstructionFailure(errors.PhaseModel, "model "+name,
					errors.InvalidData(errors.PhaseModel, "loader returned nil backend"))
			}
			return b, nil
		}),
	}
	if requestsPerSecond > 0 {
		burst := int(math.Ceil(requestsPerSecond))
		m.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return m
}

// ResourceKind implements resource.Resource.
func (m *Model) ResourceKind() resource.Kind {
	return resource.KindModel
}

// Name returns the catalog name of the model.
func (m *Model) Name() string { return m.name }

// Type returns the declared capability.
func (m *Model) Type() Type { return m.typ }

// Loaded reports whether the backend has been constructed successfully.
func (m *Model) Loaded() bool {
	return m.backend.State() == lazy.Ready
}

// State returns the backend construction state.
func (m *Model) State() lazy.State {
	return m.backend.State()
}

// Load constructs the backend if needed.
func (m *Model) Load() error {
	_, err := m.backend.Get()
	return err
}

// Generate runs text generation. Models declared as embedding models never
// generate, even when their backend could.
func (m *Model) Generate(ctx context.Context, prompt string, maxTokens uint32, stopOn string) (string, error) {
	if m.typ != TypeText {
		return "", errors.Unsupported(errors.PhaseModel, "text generation on embedding model "+m.name)
	}
	b, err := m.backend.Get()
	if err != nil {
		return "", err
	}
	g, ok := b.(Generator)
	if !ok {
		return "", errors.Unsupported(errors.PhaseModel, "text generation on model "+m.name)
	}
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	out, err := g.Generate(ctx, prompt, maxTokens, stopOn)
	if err != nil {
		return "", errors.BackendFailure(errors.PhaseModel, "generate with "+m.name, err)
	}
	return out, nil
}

// Embed computes the embedding of text.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.typ != TypeEmbedding {
		return nil, errors.Unsupported(errors.PhaseModel, "embedding on text model "+m.name)
	}
	b, err := m.backend.Get()
	if err != nil {
		return nil, err
	}
	e, ok := b.(Embedder)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseModel, "embedding on model "+m.name)
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	vec, err := e.Embed(ctx, text)
	if err != nil {
		return nil, errors.BackendFailure(errors.PhaseModel, "embed with "+m.name, err)
	}
	return vec, nil
}

func (m *Model) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}
