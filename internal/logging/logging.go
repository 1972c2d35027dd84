// Package logging builds the zap loggers used by both binaries.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and destination.
type Config struct {
	// Level is a zap level name such as "debug" or "info". Empty means info.
	Level string
	// Path is the log file. Empty means DefaultPath(app).
	Path string
	// Stderr sends output to stderr instead of a file.
	Stderr bool
	// Console switches the encoder from JSON to the human-readable one.
	Console bool
}

// DefaultPath returns ~/.local/state/<app>/<app>.log.
func DefaultPath(app string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", app, app+".log"), nil
}

// ParseLevel accepts zap level names case-insensitively.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(s))); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// New builds a logger for app. The TUI owns the terminal, so by default
// output goes to a file; if the file cannot be opened the logger falls
// back to stderr. The returned func flushes and closes the sink.
func New(app string, cfg Config) (*zap.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, func() {}, err
	}

	sink, closeSink := openSink(app, cfg)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	var enc zapcore.Encoder
	if cfg.Console {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level))
	logger := zap.New(core, zap.AddCaller()).Named(app)

	return logger, func() {
		_ = logger.Sync()
		closeSink()
	}, nil
}

func openSink(app string, cfg Config) (zapcore.WriteSyncer, func()) {
	stderr := zapcore.Lock(os.Stderr)
	if cfg.Stderr {
		return stderr, func() {}
	}

	path := cfg.Path
	if path == "" {
		p, err := DefaultPath(app)
		if err != nil {
			return stderr, func() {}
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return stderr, func() {}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return stderr, func() {}
	}
	return zapcore.Lock(f), func() { _ = f.Close() }
}
