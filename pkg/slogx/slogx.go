package slogx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrick/logrotate/rotator"
)

type Config struct {
	Service string
	Version string
	Env     string // e.g. "dev", "prod"
	Level   string // e.g. "debug", "info", "warn", "error"
	Format  string // e.g. "json", "text"
	File    string // optional; when set logs are also written to a rotated file
}

// Logger bundles the configured slog.Logger with its file rotator so the
// caller can flush and close it on shutdown.
type Logger struct {
	*slog.Logger

	rotator *rotator.Rotator
}

// New returns a configured logger and sets it as the slog default.
func New(cfg Config) (*Logger, error) {
	var out io.Writer = os.Stdout
	var rot *rotator.Rotator

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		r, err := rotator.New(cfg.File, 10*1024, false, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
		rot = r
		out = io.MultiWriter(os.Stdout, r)
	}

	logger := slog.New(newHandler(out, cfg)).With(
		"service", cfg.Service,
		"version", cfg.Version,
		"env", cfg.Env,
	)

	slog.SetDefault(logger)
	return &Logger{Logger: logger, rotator: rot}, nil
}

// NewWithWriter builds a logger writing to w, mostly for tests.
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	return slog.New(newHandler(w, cfg))
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

func newHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource:   cfg.Env == "dev",
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: Redact,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// parseLevel maps a string to slog.Level.
func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
