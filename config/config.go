package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/model"
)

// Config holds all configuration for the plugin host.
type Config struct {
	Logging  LoggingConfig         `yaml:"logging"`
	Store    StoreConfig           `yaml:"store"`
	Models   map[string]model.Spec `yaml:"models"`
	Content  ContentConfig         `yaml:"content"`
	Boundary BoundaryConfig        `yaml:"boundary"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "console" or "json"
}

// StoreConfig selects the similarity index backing each embedding database.
type StoreConfig struct {
	Index     string `yaml:"index"`  // "flat" or "bolt"
	Metric    string `yaml:"metric"` // "l2", "cosine", "dot"
	Dimension int    `yaml:"dimension"`
	DataDir   string `yaml:"data_dir"` // bolt only; one file per database
	Keep      bool   `yaml:"keep"`     // bolt only; keep files of dropped databases
}

// ContentConfig holds the page source configuration.
type ContentConfig struct {
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
}

// BoundaryConfig holds guest runtime configuration.
type BoundaryConfig struct {
	Module           string `yaml:"module"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"` // 0 means the runtime default
	EmbedConcurrency int    `yaml:"embed_concurrency"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Index:  "flat",
			Metric: "l2",
		},
		Models: map[string]model.Spec{
			"local-embedding": {
				Provider:  "hash",
				Type:      model.TypeEmbedding,
				Dimension: 256,
			},
			"gpt-4o-mini": {
				Provider:  "openai",
				Model:     "gpt-4o-mini",
				Type:      model.TypeText,
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"text-embedding-3-small": {
				Provider:  "openai",
				Model:     "text-embedding-3-small",
				Type:      model.TypeEmbedding,
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"claude": {
				Provider:  "anthropic",
				Model:     "claude-3-5-sonnet-20241022",
				Type:      model.TypeText,
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
		},
		Content: ContentConfig{
			Dir:      ".",
			Includes: []string{"**/*.md", "**/*.txt"},
		},
		Boundary: BoundaryConfig{
			Module:           "floneum:plugin/host",
			EmbedConcurrency: 4,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse "+path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks enumerated values and required fields.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unknown format %q", c.Logging.Format))
	}

	switch c.Store.Index {
	case "", "flat":
	case "bolt":
		if c.Store.DataDir == "" {
			problems = append(problems, "store.data_dir: required for the bolt index")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.index: unknown index %q", c.Store.Index))
	}
	switch strings.ToLower(c.Store.Metric) {
	case "", "l2", "euclidean", "squared_l2", "cosine", "dot", "inner_product":
	default:
		problems = append(problems, fmt.Sprintf("store.metric: unknown metric %q", c.Store.Metric))
	}
	if c.Store.Dimension < 0 {
		problems = append(problems, "store.dimension: must not be negative")
	}

	for name, spec := range c.Models {
		if spec.Provider == "" {
			problems = append(problems, fmt.Sprintf("models.%s.provider: required", name))
		}
		switch spec.Type {
		case "", model.TypeText, model.TypeEmbedding:
		default:
			problems = append(problems, fmt.Sprintf("models.%s.type: unknown type %q", name, spec.Type))
		}
		if spec.RequestsPerSecond < 0 {
			problems = append(problems, fmt.Sprintf("models.%s.requests_per_second: must not be negative", name))
		}
	}

	if c.Boundary.EmbedConcurrency < 0 {
		problems = append(problems, "boundary.embed_concurrency: must not be negative")
	}

	if len(problems) > 0 {
		return errors.InvalidInput(errors.PhaseConfig, strings.Join(problems, "; "))
	}
	return nil
}
