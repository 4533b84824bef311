package slotreg

import "sync/atomic"

var defaultRegistry atomic.Pointer[Registry]

// SetDefault installs the process-wide Registry used by Default. Pass nil to
// clear it; tests use that for teardown between cases.
//
// This mirrors slog.SetDefault: one explicitly created instance behind a
// thin accessor, not hidden global state.
func SetDefault(r *Registry) {
	defaultRegistry.Store(r)
}

// Default returns the process-wide Registry, creating an empty one on first
// use.
func Default() *Registry {
	if r := defaultRegistry.Load(); r != nil {
		return r
	}

	r := NewRegistry()
	if !defaultRegistry.CompareAndSwap(nil, r) {
		r.Close()
		return defaultRegistry.Load()
	}

	return r
}
