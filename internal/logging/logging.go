// Package logging builds the root logr.Logger for the CLI.
//
// Workflows never construct loggers; they read one from the context with
// logr.FromContextOrDiscard, so library code stays silent unless a caller
// attaches a logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
)

// Options configures the root logger.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is auto, text or json. Auto picks text for terminals.
	Format string
	Output io.Writer
}

// New returns a logr.Logger backed by a slog handler.
func New(opts Options) (logr.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch resolveFormat(opts.Format, out) {
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return logr.FromSlogHandler(handler), nil
}

// ParseLevel maps a level name to a slog level. logr V(1) maps to debug.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug", "":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

func resolveFormat(format string, out io.Writer) string {
	if format == "text" || format == "json" {
		return format
	}
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "text"
	}
	return "json"
}
