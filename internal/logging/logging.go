// Package logging provides the structured diagnostic logger used across
// patchdir. Diagnostics go to stderr alongside the ui status lines; they
// are quiet unless verbose output is requested.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config configures the logger.
type Config struct {
	// Verbose enables debug-level output.
	Verbose bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a text-format slog.Logger.
func New(cfg Config) *slog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
