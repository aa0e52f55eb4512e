// Package config holds the instinct configuration. Config values are
// loaded once (file + environment overrides), validated, and treated as
// immutable afterwards; out-of-range hyperparameters are rejected at
// construction rather than clamped later.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all instinct configuration.
type Config struct {
	// Learner hyperparameters
	Learner LearnerConfig `yaml:"learner"`

	// Snapshot persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LearnerConfig configures the Q-learning core.
type LearnerConfig struct {
	LearningRate     float64 `yaml:"learning_rate"`     // alpha, (0,1]
	DiscountFactor   float64 `yaml:"discount_factor"`   // gamma, [0,1]
	ExplorationRate  float64 `yaml:"exploration_rate"`  // initial epsilon, [0,1]
	ExplorationDecay float64 `yaml:"exploration_decay"` // per-update multiplier, (0,1]
	MinExploration   float64 `yaml:"min_exploration"`   // epsilon floor, [0, epsilon]
	BatchSize        int     `yaml:"batch_size"`
	MaxEpisodes      int     `yaml:"max_episodes"` // bounded episode history
}

// StoreConfig configures snapshot persistence.
type StoreConfig struct {
	DatabasePath string        `yaml:"database_path"`
	SnapshotKey  string        `yaml:"snapshot_key"`
	SaveInterval time.Duration `yaml:"save_interval"`
	KeepVersions int           `yaml:"keep_versions"` // snapshot rows retained per key
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
	Dir        string          `yaml:"dir"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		Learner: LearnerConfig{
			LearningRate:     0.1,
			DiscountFactor:   0.95,
			ExplorationRate:  0.3,
			ExplorationDecay: 0.995,
			MinExploration:   0.05,
			BatchSize:        32,
			MaxEpisodes:      100,
		},
		Store: StoreConfig{
			DatabasePath: "instinct.db",
			SnapshotKey:  "policy/default",
			SaveInterval: 5 * time.Minute,
			KeepVersions: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, merges it over the defaults,
// applies environment overrides, and validates the result. An empty path
// skips the file and uses defaults + environment only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides applies INSTINCT_* environment variables on top of the
// loaded configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INSTINCT_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("INSTINCT_SNAPSHOT_KEY"); v != "" {
		c.Store.SnapshotKey = v
	}
	if v := os.Getenv("INSTINCT_SAVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Store.SaveInterval = d
		}
	}
	if v := os.Getenv("INSTINCT_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}

	floatVars := []struct {
		env    string
		target *float64
	}{
		{"INSTINCT_LEARNING_RATE", &c.Learner.LearningRate},
		{"INSTINCT_DISCOUNT_FACTOR", &c.Learner.DiscountFactor},
		{"INSTINCT_EXPLORATION_RATE", &c.Learner.ExplorationRate},
		{"INSTINCT_EXPLORATION_DECAY", &c.Learner.ExplorationDecay},
		{"INSTINCT_MIN_EXPLORATION", &c.Learner.MinExploration},
	}
	for _, fv := range floatVars {
		if v := os.Getenv(fv.env); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*fv.target = f
			}
		}
	}
}

// Validate rejects out-of-range hyperparameters.
func (c *Config) Validate() error {
	l := c.Learner
	if l.LearningRate <= 0 || l.LearningRate > 1 {
		return fmt.Errorf("learning_rate %v outside (0,1]", l.LearningRate)
	}
	if l.DiscountFactor < 0 || l.DiscountFactor > 1 {
		return fmt.Errorf("discount_factor %v outside [0,1]", l.DiscountFactor)
	}
	if l.ExplorationRate < 0 || l.ExplorationRate > 1 {
		return fmt.Errorf("exploration_rate %v outside [0,1]", l.ExplorationRate)
	}
	if l.ExplorationDecay <= 0 || l.ExplorationDecay > 1 {
		return fmt.Errorf("exploration_decay %v outside (0,1]", l.ExplorationDecay)
	}
	if l.MinExploration < 0 || l.MinExploration > l.ExplorationRate {
		return fmt.Errorf("min_exploration %v outside [0, exploration_rate]", l.MinExploration)
	}
	if l.MaxEpisodes <= 0 {
		return fmt.Errorf("max_episodes must be positive, got %d", l.MaxEpisodes)
	}
	if c.Store.SaveInterval <= 0 {
		return fmt.Errorf("save_interval must be positive, got %v", c.Store.SaveInterval)
	}
	if c.Store.KeepVersions < 1 {
		return fmt.Errorf("keep_versions must be at least 1, got %d", c.Store.KeepVersions)
	}
	return nil
}
