package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Config holds the logging configuration: a global level, an output
// format (text or json) and optional per-module level overrides.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu           sync.RWMutex
	config       Config
	initialized  bool
	moduleLevels = make(map[string]*slog.LevelVar)
	modules      = make(map[string]*slog.Logger)
	globalLevel  = &slog.LevelVar{}
	buffer       *RingBuffer
	callback     Callback
)

// Initialize configures the logging system. Loggers created before
// Initialize are re-leveled and re-handled so early startup logging
// still lands in the ring buffer.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	config = cfg
	initialized = true
	buffer = NewRingBuffer(defaultBufferSize)

	level := parseLevel(cfg.Level, slog.LevelInfo)
	globalLevel.Set(level)

	for module, levelVar := range moduleLevels {
		moduleLevel := level
		if override, ok := cfg.Modules[module]; ok {
			moduleLevel = parseLevel(override, level)
		}
		levelVar.Set(moduleLevel)
		modules[module] = slog.New(buildHandler(cfg.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(buildHandler(cfg.Format, globalLevel)))
}

// GetLogger returns the logger for a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if logger, ok := modules[module]; ok {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if logger, ok := modules[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if initialized {
		level := parseLevel(config.Level, slog.LevelInfo)
		if override, ok := config.Modules[module]; ok {
			level = parseLevel(override, level)
		}
		levelVar.Set(level)
		format = config.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger := slog.New(buildHandler(format, levelVar)).With("module", module)
	modules[module] = logger
	moduleLevels[module] = levelVar
	return logger
}

// Buffer returns the ring buffer of recent log entries, or nil before
// Initialize.
func Buffer() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return buffer
}

// SetCallback registers a callback invoked for every new entry. Used to
// republish log lines on the event bus for SSE clients.
func SetCallback(cb Callback) {
	mu.Lock()
	defer mu.Unlock()
	callback = cb
}

// currentSink snapshots the buffer and callback for the buffer handler.
func currentSink() (*RingBuffer, Callback) {
	mu.RLock()
	defer mu.RUnlock()
	return buffer, callback
}

// buildHandler assembles the handler chain: stdout (text or json), the
// journal when available, and the ring buffer.
func buildHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{stdout}
	if journalAvailable() {
		handlers = append(handlers, newJournalHandler(level))
	}
	handlers = append(handlers, newBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return newMultiHandler(handlers...)
}

func parseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
