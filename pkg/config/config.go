package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/graphmind/codegraph/pkg/errs"
)

// EmbeddingConfig selects the embedding backend and its frozen dimension.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
}

// LLMConfig selects the chat/tool-calling backend.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// RerankConfig controls the optional reranking hook on semantic_code_search.
type RerankConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	TopN     int    `yaml:"top_n"`
}

// StorageConfig points at the on-disk database root.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls the tool-executor result cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// Config is the full process configuration, loaded once at startup.
type Config struct {
	ContextWindow  int             `yaml:"context_window"`
	Embedding      EmbeddingConfig `yaml:"embedding"`
	LLM            LLMConfig       `yaml:"llm"`
	Rerank         RerankConfig    `yaml:"rerank"`
	Storage        StorageConfig   `yaml:"storage"`
	Cache          CacheConfig     `yaml:"cache"`
	Logging        LoggingConfig   `yaml:"logging"`
	ProjectID      string          `yaml:"project_id"`
	OrganizationID string          `yaml:"organization_id"`
}

// MaxResultBytes derives the tool-result size cap from the context window,
// as 2 bytes per token.
func (c Config) MaxResultBytes() int {
	if c.ContextWindow <= 0 {
		return 200 * 1024
	}
	return c.ContextWindow * 2
}

// Default returns a Config with sane standalone defaults: fake embedding
// and LLM providers, a local bbolt path, caching on.
func Default() Config {
	return Config{
		ContextWindow: 100_000,
		Embedding:     EmbeddingConfig{Provider: "fake", Dimension: 256},
		LLM:           LLMConfig{Provider: "fake"},
		Rerank:        RerankConfig{Enabled: true, Provider: "text", TopN: 10},
		Storage:       StorageConfig{Path: "./data"},
		Cache:         CacheConfig{Enabled: true, Size: 100},
		Logging:       LoggingConfig{Level: "info"},
	}
}

// Load reads path as YAML over Default(), then applies environment
// variable overrides for the handful of keys operators most commonly
// override per-deployment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errs.Wrap(errs.KindConfiguration, "config.Load", err, fmt.Sprintf("reading %s", path))
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errs.Wrap(errs.KindConfiguration, "config.Load", err, fmt.Sprintf("parsing %s", path))
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEGRAPH_CONTEXT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ContextWindow = n
		}
	}
	if v := os.Getenv("CODEGRAPH_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CODEGRAPH_PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
	if v := os.Getenv("CODEGRAPH_ORGANIZATION_ID"); v != "" {
		cfg.OrganizationID = v
	}
	if v := os.Getenv("CODEGRAPH_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("CODEGRAPH_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("CODEGRAPH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the invariants the rest of the engine assumes hold:
// a non-empty storage path and a positive embedding dimension.
func (c Config) Validate() error {
	if c.Storage.Path == "" {
		return errs.Configuration("config.Validate", "storage.path must not be empty")
	}
	if c.Embedding.Dimension <= 0 {
		return errs.Configuration("config.Validate", "embedding.dimension must be positive")
	}
	return nil
}
