package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero learning rate", func(c *Config) { c.Learner.LearningRate = 0 }},
		{"learning rate above one", func(c *Config) { c.Learner.LearningRate = 1.5 }},
		{"negative discount", func(c *Config) { c.Learner.DiscountFactor = -0.1 }},
		{"discount above one", func(c *Config) { c.Learner.DiscountFactor = 1.01 }},
		{"exploration above one", func(c *Config) { c.Learner.ExplorationRate = 2 }},
		{"zero decay", func(c *Config) { c.Learner.ExplorationDecay = 0 }},
		{"min exploration above epsilon", func(c *Config) {
			c.Learner.ExplorationRate = 0.1
			c.Learner.MinExploration = 0.2
		}},
		{"zero max episodes", func(c *Config) { c.Learner.MaxEpisodes = 0 }},
		{"zero save interval", func(c *Config) { c.Store.SaveInterval = 0 }},
		{"zero keep versions", func(c *Config) { c.Store.KeepVersions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instinct.yaml")
	data := `
learner:
  learning_rate: 0.2
  exploration_rate: 0.5
store:
  database_path: /tmp/custom.db
  save_interval: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Learner.LearningRate)
	assert.Equal(t, 0.5, cfg.Learner.ExplorationRate)
	assert.Equal(t, "/tmp/custom.db", cfg.Store.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.Store.SaveInterval)
	// Untouched fields keep defaults.
	assert.Equal(t, 0.95, cfg.Learner.DiscountFactor)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Learner, cfg.Learner)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INSTINCT_LEARNING_RATE", "0.42")
	t.Setenv("INSTINCT_DB_PATH", "/tmp/env.db")
	t.Setenv("INSTINCT_SAVE_INTERVAL", "1m")
	t.Setenv("INSTINCT_DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.42, cfg.Learner.LearningRate)
	assert.Equal(t, "/tmp/env.db", cfg.Store.DatabasePath)
	assert.Equal(t, time.Minute, cfg.Store.SaveInterval)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestLoadRejectsInvalidFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("learner:\n  learning_rate: 3.0\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
