// Package logging provides config-driven categorized logging for instinct.
// Each category writes to its own file under the configured log directory;
// when debug mode is off every logger is a no-op. Loggers are zap sugared
// loggers so call sites keep the printf style used across the codebase.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"instinct/internal/config"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config, snapshot restore
	CategoryPolicy  Category = "policy"  // Selection and Q-value updates
	CategoryStore   Category = "store"   // Snapshot store operations
	CategoryEpisode Category = "episode" // Episode lifecycle
	CategoryEvents  Category = "events"  // Event bus / audit side effects
)

var (
	mu      sync.RWMutex
	cfg     config.LoggingConfig
	logsDir string
	loggers = make(map[Category]*zap.SugaredLogger)
	nop     = zap.NewNop().Sugar()
)

// Initialize sets up the logging directory from config. Should be called
// once at startup; before it runs (or when debug mode is off) all loggers
// are no-ops.
func Initialize(c config.LoggingConfig) error {
	mu.Lock()
	defer mu.Unlock()

	cfg = c
	if !cfg.DebugMode {
		return nil
	}

	logsDir = cfg.Dir
	if logsDir == "" {
		logsDir = filepath.Join(".", "logs")
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

// IsCategoryEnabled returns whether a category currently logs anywhere.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()

	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, ok := cfg.Categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories
// get a shared no-op logger.
func Get(category Category) *zap.SugaredLogger {
	if !IsCategoryEnabled(category) {
		return nop
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", path, err)
		return nop
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(file),
		parseLevel(cfg.Level),
	)
	l := zap.New(core).Named(string(category)).Sugar()
	loggers[category] = l
	return l
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// CloseAll flushes and drops all open loggers (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()

	for _, l := range loggers {
		_ = l.Sync()
	}
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Convenience functions, no-ops when the category is disabled.

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

// BootWarn logs a warning to the boot category.
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warnf(format, args...)
}

// Policy logs to the policy category.
func Policy(format string, args ...interface{}) {
	Get(CategoryPolicy).Infof(format, args...)
}

// PolicyDebug logs debug to the policy category.
func PolicyDebug(format string, args ...interface{}) {
	Get(CategoryPolicy).Debugf(format, args...)
}

// Store logs to the store category.
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Infof(format, args...)
}

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debugf(format, args...)
}

// StoreWarn logs a warning to the store category.
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warnf(format, args...)
}

// Episode logs to the episode category.
func Episode(format string, args ...interface{}) {
	Get(CategoryEpisode).Infof(format, args...)
}

// Events logs to the events category.
func Events(format string, args ...interface{}) {
	Get(CategoryEvents).Infof(format, args...)
}

// EventsWarn logs a warning to the events category.
func EventsWarn(format string, args ...interface{}) {
	Get(CategoryEvents).Warnf(format, args...)
}
