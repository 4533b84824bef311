package slotreg

import (
	"log/slog"
	"sync/atomic"
)

var defaultErrorLogger atomic.Pointer[slog.Logger]

// SetDefaultErrorLogger replaces the logger used for errors nobody awaits:
// factory failures surfaced through TryResolve and in-flight constructions
// abandoned by every waiter. Pass nil to fall back to slog.Default.
func SetDefaultErrorLogger(l *slog.Logger) {
	defaultErrorLogger.Store(l)
}

func logger() *slog.Logger {
	if l := defaultErrorLogger.Load(); l != nil {
		return l
	}

	return slog.Default()
}
