// Package config loads and watches the recall YAML config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EmbeddingConfig configures the primary embedding tier. When Endpoint is
// empty the hash fallback tier is used for every text.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// LLMConfig configures the external chat/summarization backend.
type LLMConfig struct {
	Endpoint          string `yaml:"endpoint"`
	Model             string `yaml:"model"`
	APIKey            string `yaml:"apiKey"`
	RequestsPerMinute int    `yaml:"requestsPerMinute"`
}

// MemoryConfig holds the live retrieval settings. These are read at the
// start of each operation, not snapshotted across a multi-stage assembly.
type MemoryConfig struct {
	RelevanceThreshold float64 `yaml:"relevanceThreshold"`
	Depth              int     `yaml:"depth"`
	MaxRAGChars        int     `yaml:"maxRagChars"`
}

// Config is the full recall configuration.
type Config struct {
	DBPath    string          `yaml:"dbPath"`
	Profile   string          `yaml:"profile"` // "conservative" or "generous"
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Memory    MemoryConfig    `yaml:"memory"`
}

const (
	DefaultRelevanceThreshold = 0.5
	DefaultMemoryDepth        = 6
	DefaultProfile            = "conservative"
)

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recall", "config.yaml")
}

// Default returns a config with all defaults applied.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DBPath:  filepath.Join(home, ".recall", "memory.db"),
		Profile: DefaultProfile,
		LLM: LLMConfig{
			RequestsPerMinute: 60,
		},
		Memory: MemoryConfig{
			RelevanceThreshold: DefaultRelevanceThreshold,
			Depth:              DefaultMemoryDepth,
		},
	}
}

// Load reads the config file at path and normalizes it.
// A missing file yields the defaults, not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Normalize()
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Normalize clamps settings into their valid ranges and fills defaults.
func (c *Config) Normalize() {
	if c.Memory.RelevanceThreshold < 0 {
		c.Memory.RelevanceThreshold = 0
	}
	if c.Memory.RelevanceThreshold > 1 {
		c.Memory.RelevanceThreshold = 1
	}
	if c.Memory.Depth < 1 {
		c.Memory.Depth = DefaultMemoryDepth
	}
	if c.Memory.MaxRAGChars < 0 {
		c.Memory.MaxRAGChars = 0
	}
	if c.Profile != "conservative" && c.Profile != "generous" {
		c.Profile = DefaultProfile
	}
	if c.LLM.RequestsPerMinute < 0 {
		c.LLM.RequestsPerMinute = 0
	}
	if c.DBPath == "" {
		c.DBPath = Default().DBPath
	}
}
