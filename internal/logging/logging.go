// Package logging builds the process logger. Diagnostics go to stderr (or
// a file) so that stdout stays clean for command output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config selects level and destination.
type Config struct {
	// Level is debug, info, warn or error.
	Level string
	// File appends JSON records to a file instead of text to stderr.
	File string
	// Writer overrides the destination.
	Writer io.Writer
}

// ParseLevel maps a level name to slog, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New returns a logger and a closer for any file it opened.
func New(cfg Config) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	noop := func() error { return nil }
	if cfg.Writer != nil {
		return slog.New(slog.NewTextHandler(cfg.Writer, opts)), noop, nil
	}
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), noop, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, noop, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, noop, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, opts)), f.Close, nil
}
