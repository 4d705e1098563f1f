// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init sets the slog default. w defaults to os.Stderr; format is "text" or
// "json".
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Setup parses level and format names, as given on the command line or in
// the config file, and calls Init.
func Setup(level, format string, w io.Writer) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	switch format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log format %q: want text or json", format)
	}
	Init(l, format, w)
	return nil
}

// ParseLevel maps debug/info/warn/error, in any case, onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// New returns a logger with a "component" attribute.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// ForRun scopes l to one workflow run.
func ForRun(l *slog.Logger, pipeline, traceID string) *slog.Logger {
	return l.With(slog.String("pipeline", pipeline), slog.String("trace_id", traceID))
}
