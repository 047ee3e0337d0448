// Package observability configures process-wide logging and tracing.
package observability

import (
	"io"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/stargazer/internal/config"
)

// NewLogger builds the process logger from the logging section. verbose
// forces debug level regardless of configuration.
func NewLogger(cfg config.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := config.NormalizeLogLevel(string(cfg.Level)).SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if config.NormalizeLogFormat(string(cfg.Format)) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
