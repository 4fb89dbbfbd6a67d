package model

import (
	"os"
	"sort"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/model/anthropic"
	"github.com/nickjmiller/floneum/model/hashembed"
	"github.com/nickjmiller/floneum/model/openai"
)

// Spec declares one named model in configuration.
type Spec struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model,omitempty"`
	Type              Type    `yaml:"type"`
	APIKeyEnv         string  `yaml:"api_key_env,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	Dimension         int     `yaml:"dimension,omitempty"`
	MaxTokens         int64   `yaml:"max_tokens,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// Provider builds a backend from a spec.
type Provider func(spec Spec) (Backend, error)

// Catalog maps model names to specs and provider names to constructors.
type Catalog struct {
	mu        sync.RWMutex
	specs     map[string]Spec
	providers map[string]Provider
}

// NewCatalog creates a catalog with the built-in providers registered.
func NewCatalog(specs map[string]Spec) *Catalog {
	c := &Catalog{
		specs:     make(map[string]Spec, len(specs)),
		providers: make(map[string]Provider),
	}
	for name, s := range specs {
		c.specs[name] = s
	}
	c.RegisterProvider("openai", newOpenAI)
	c.RegisterProvider("anthropic", newAnthropic)
	c.RegisterProvider("hash", newHash)
	return c
}

// RegisterProvider adds or replaces a provider.
func (c *Catalog) RegisterProvider(name string, p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = p
}

// Define adds or replaces a named model.
func (c *Catalog) Define(name string, spec Spec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specs[name] = spec
}

// Lookup returns the spec for name.
func (c *Catalog) Lookup(name string) (Spec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specs[name]
	return s, ok
}

// Names returns every defined model name in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns an unloaded Model for name. Provider lookup and backend
// construction are deferred to the model's first use.
func (c *Catalog) New(name string) (*Model, error) {
	c.mu.RLock()
	spec, ok := c.specs[name]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.PhaseModel, errors.KindInvalidInput).
			Resource("model").
			Detail("unknown model %q", name).
			Build()
	}

	typ := spec.Type
	if typ == "" {
		typ = TypeText
	}
	return New(name, typ, spec.RequestsPerSecond, func() (Backend, error) {
		c.mu.RLock()
		p, ok := c.providers[spec.Provider]
		c.mu.RUnlock()
		if !ok {
			return nil, errors.Unsupported(errors.PhaseModel, "provider "+spec.Provider)
		}
		Logger().Info("loading model",
			zap.String("name", name),
			zap.String("provider", spec.Provider),
			zap.String("model", spec.Model))
		return p(spec)
	}), nil
}

func apiKey(spec Spec) string {
	if spec.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(spec.APIKeyEnv)
}

func newOpenAI(spec Spec) (Backend, error) {
	key := apiKey(spec)
	if spec.APIKeyEnv != "" && key == "" {
		return nil, errors.InvalidInput(errors.PhaseModel, "API key not found in environment variable: "+spec.APIKeyEnv)
	}
	return openai.New(func(o *openai.Options) {
		o.APIKey = key
		o.BaseURL = spec.BaseURL
		switch {
		case spec.Model == "":
		case spec.Type == TypeEmbedding:
			o.EmbeddingModel = spec.Model
		default:
			o.Model = spec.Model
		}
		if spec.Dimension > 0 {
			o.Dimensions = int64(spec.Dimension)
		}
		if spec.MaxTokens > 0 {
			o.MaxCompletionTokens = spec.MaxTokens
		}
	}), nil
}

func newAnthropic(spec Spec) (Backend, error) {
	if spec.Type == TypeEmbedding {
		return nil, errors.Unsupported(errors.PhaseModel, "anthropic embeddings")
	}
	key := apiKey(spec)
	if spec.APIKeyEnv != "" && key == "" {
		return nil, errors.InvalidInput(errors.PhaseModel, "API key not found in environment variable: "+spec.APIKeyEnv)
	}
	return anthropic.New(func(o *anthropic.Options) {
		o.APIKey = key
		o.BaseURL = spec.BaseURL
		if spec.Model != "" {
			o.Model = anthropicsdk.Model(spec.Model)
		}
		if spec.MaxTokens > 0 {
			o.MaxTokens = spec.MaxTokens
		}
	}), nil
}

func newHash(spec Spec) (Backend, error) {
	return hashembed.New(spec.Dimension), nil
}
