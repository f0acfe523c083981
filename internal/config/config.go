// Package config loads Travis configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Travis configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Owner is the default owner id for single-user sessions.
	Owner string `yaml:"owner"`

	// Data directory (SQLite database, logs)
	DataDir string `yaml:"data_dir"`

	// LLM generation backend
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Memory synthesis
	Memory MemoryConfig `yaml:"memory"`

	// Evolution cycle engine
	Evolution EvolutionConfig `yaml:"evolution"`

	// Soulcycle orchestrator
	Soulcycle SoulcycleConfig `yaml:"soulcycle"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Name:      "travis",
		Version:   "1.0.0",
		Owner:     "sabrina",
		DataDir:   filepath.Join(home, ".travis"),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Memory:    DefaultMemoryConfig(),
		Evolution: DefaultEvolutionConfig(),
		Soulcycle: DefaultSoulcycleConfig(),
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from the given path, applies defaults for
// missing fields, then applies environment overrides. A missing file is
// not an error: defaults plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.normalize()
	return cfg, nil
}

// DatabasePath returns the SQLite database location under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "travis.db")
}

// ConfigPath returns the config file location under the data dir.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.DataDir, "config.yaml")
}

// normalize clamps obviously invalid values back to defaults.
func (c *Config) normalize() {
	if c.Memory.SimilarityThreshold <= 0 || c.Memory.SimilarityThreshold >= 1 {
		c.Memory.SimilarityThreshold = DefaultMemoryConfig().SimilarityThreshold
	}
	if c.Memory.RecallLimit <= 0 {
		c.Memory.RecallLimit = DefaultMemoryConfig().RecallLimit
	}
	if c.Evolution.CyclePeriod() <= 0 {
		c.Evolution.Period = DefaultEvolutionConfig().Period
	}
	if c.Soulcycle.RunTimeout() <= 0 {
		c.Soulcycle.Timeout = DefaultSoulcycleConfig().Timeout
	}
}

// parseDuration parses a duration string, returning fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
