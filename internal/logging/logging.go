// Package logging builds the daemon's structured logger. Output is JSON
// on stdout so packet drops and event emissions can be grepped per
// device_id in aggregated logs.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger maps the configured level name onto a slog JSON logger.
// Unknown names fall back to info.
func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
