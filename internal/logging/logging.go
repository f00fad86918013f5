// Package logging configures Agentty's structured logger: colorized
// key=value output on a terminal, newline-delimited JSON otherwise, with
// both the format and the level selectable through environment variables
// so the daemon and the CLI front-end share one configuration story.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Format selects the rendering of log records.
type Format string

const (
	FormatAuto Format = "auto"
	FormatTint Format = "tint"
	FormatJSON Format = "json"
)

// Init builds and installs the default slog.Logger for the process. It
// reads AGENTTY_LOG_FORMAT (auto|tint|json, default auto) and
// AGENTTY_LOG_LEVEL (debug|info|warn|error, default info) from the
// environment so operators can raise verbosity or force plain JSON for log
// aggregation without a code change.
func Init(w io.Writer) *slog.Logger {
	level := levelFromEnv(os.Getenv("AGENTTY_LOG_LEVEL"))
	format := formatFromEnv(os.Getenv("AGENTTY_LOG_FORMAT"), w)

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

func formatFromEnv(raw string, w io.Writer) Format {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tint":
		return FormatTint
	case "json":
		return FormatJSON
	default:
		if isTerminal(w) {
			return FormatTint
		}
		return FormatJSON
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
