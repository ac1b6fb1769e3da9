// Package logging provides categorized zap loggers for the engine.
// Each subsystem logs under its own named logger so log output can be
// filtered per category. The package defaults to a nop logger; the CLI
// installs a real logger at startup via Initialize.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a subsystem for log filtering.
type Category string

const (
	CategoryRegistry  Category = "registry"  // Definition loading and indexing
	CategoryResolve   Category = "resolve"   // Command/agent/skill resolution
	CategoryCompose   Category = "compose"   // Bundle composition and trimming
	CategoryDispatch  Category = "dispatch"  // Run scheduling and lifecycle
	CategoryAggregate Category = "aggregate" // Result merging
	CategoryConfig    Category = "config"    // Configuration loading
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	byCat   = make(map[Category]*zap.Logger)
	enabled map[Category]bool
)

// Initialize installs the process-wide logger. verbose enables debug level.
// categories, when non-empty, restricts output to the listed categories;
// an empty map enables all of them.
func Initialize(verbose bool, categories map[Category]bool) error {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	SetLogger(logger, categories)
	return nil
}

// SetLogger replaces the root logger. Used by tests to capture output.
func SetLogger(logger *zap.Logger, categories map[Category]bool) {
	mu.Lock()
	defer mu.Unlock()
	root = logger
	enabled = categories
	byCat = make(map[Category]*zap.Logger)
}

// Get returns the logger for a category. Categories filtered out by
// Initialize get a nop logger so call sites never need to check.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	if l, ok := byCat[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := byCat[cat]; ok {
		return l
	}
	l := root.Named(string(cat))
	if len(enabled) > 0 && !enabled[cat] {
		l = zap.NewNop()
	}
	byCat[cat] = l
	return l
}

// Sync flushes buffered log entries. Safe to call on the nop logger.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
