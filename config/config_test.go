package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Index != "flat" {
		t.Errorf("expected Index=flat, got %q", cfg.Store.Index)
	}
	if cfg.Boundary.Module != "floneum:plugin/host" {
		t.Errorf("unexpected module %q", cfg.Boundary.Module)
	}
	if spec, ok := cfg.Models["local-embedding"]; !ok || spec.Provider != "hash" {
		t.Errorf("expected local hash embedding model, got %+v", spec)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/floneum.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "floneum.yaml")

	content := `
logging:
  level: debug
store:
  index: bolt
  metric: cosine
  data_dir: /tmp/floneum
models:
  mini:
    provider: hash
    type: embedding
    dimension: 32
    requests_per_second: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("expected default format to survive, got %q", cfg.Logging.Format)
	}
	if cfg.Store.Index != "bolt" || cfg.Store.Metric != "cosine" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	mini := cfg.Models["mini"]
	if mini.Type != model.TypeEmbedding || mini.Dimension != 32 || mini.RequestsPerSecond != 5 {
		t.Errorf("unexpected model spec %+v", mini)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "floneum.yaml")
	if err := os.WriteFile(configPath, []byte("store: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(configPath)
	if !errors.IsKind(err, errors.KindInvalidData) {
		t.Fatalf("expected invalid_data, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad index", func(c *Config) { c.Store.Index = "hnsw" }, "store.index"},
		{"bolt without dir", func(c *Config) { c.Store.Index = "bolt" }, "store.data_dir"},
		{"bad metric", func(c *Config) { c.Store.Metric = "manhattan" }, "store.metric"},
		{"negative dimension", func(c *Config) { c.Store.Dimension = -1 }, "store.dimension"},
		{"missing provider", func(c *Config) { c.Models["x"] = model.Spec{} }, "models.x.provider"},
		{"bad type", func(c *Config) { c.Models["x"] = model.Spec{Provider: "hash", Type: "image"} }, "models.x.type"},
		{"negative concurrency", func(c *Config) { c.Boundary.EmbedConcurrency = -2 }, "boundary.embed_concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.IsKind(err, errors.KindInvalidInput) {
				t.Fatalf("expected invalid_input, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floneum.yaml")
	cfg := DefaultConfig()
	cfg.Store.Dimension = 64
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Store.Dimension != 64 {
		t.Fatalf("expected dimension 64, got %d", loaded.Store.Dimension)
	}
	if len(loaded.Models) != len(cfg.Models) {
		t.Fatalf("expected %d models, got %d", len(cfg.Models), len(loaded.Models))
	}
}
