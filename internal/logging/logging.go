// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config controls how the global logger is initialised.
type Config struct {
	// Level is one of zerolog's level strings ("debug", "info", "warn", "error").
	Level string
	// FilePath, if set, duplicates log output into the named file in addition
	// to stderr.
	FilePath string
}

var (
	mu     sync.RWMutex
	base   zerolog.Logger
	runID  string
	inited bool
)

// Configure initialises the global logger. Safe to call once at startup;
// later calls replace the previous configuration.
func Configure(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writer io.Writer = os.Stderr
	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		writer = io.MultiWriter(writer, f)
	}

	runID = uuid.New().String()
	base = zerolog.New(writer).With().
		Timestamp().
		Str("run_id", runID).
		Logger()
	inited = true
	return nil
}

func ensureInitialized() {
	mu.RLock()
	if inited {
		mu.RUnlock()
		return
	}
	mu.RUnlock()
	_ = Configure(Config{})
}

// Base returns the configured base logger.
func Base() zerolog.Logger {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger tagged with the given component name
// ("past", "live-poll", "live-download", "backlog", "mux", "summary", ...).
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}

// RunID returns the run-correlation id stamped on every derived logger.
func RunID() string {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return runID
}
