// Package log is the leveled logging surface the engine and protocols use,
// replacing the original's preprocessor-driven colour-and-timers logging
// (spec.md §9) with a standard slog.Logger. Timers are dropped entirely:
// they were purely observational in the source and aren't needed for
// correctness.
package log

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

// SetLogger overrides the package-level logger, e.g. to raise verbosity
// under a CLI --verbose flag or to silence it in tests.
func SetLogger(l *slog.Logger) { logger = l }

// Debug logs at debug level.
func Debug(msg string, args ...any) { logger.Debug(msg, args...) }

// Warn logs at warn level, matching the source's log_warn used for
// protocol-shape anomalies that are survivable (spec.md §7).
func Warn(msg string, args ...any) { logger.Warn(msg, args...) }

// Error logs at error level, matching log_error used just before an abort.
func Error(msg string, args ...any) { logger.Error(msg, args...) }
