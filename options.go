package slotreg

import "time"

const (
	defaultDebounceInterval = 100 * time.Millisecond
	minDebounceInterval     = 50 * time.Millisecond
	maxDebounceInterval     = time.Second
)

type RegistryConfiguration struct {
	DebounceInterval time.Duration
	Optimization     bool
	Recording        bool
}

type RegistryOption func(*RegistryConfiguration)

var (
	// WithDebounceInterval sets the window used to coalesce stats snapshot
	// publications. Clamped to [50ms, 1000ms].
	WithDebounceInterval = func(d time.Duration) RegistryOption {
		return func(conf *RegistryConfiguration) { conf.DebounceInterval = d }
	}

	// WithoutOptimization disables usage counters and stats publication.
	WithoutOptimization RegistryOption = func(conf *RegistryConfiguration) { conf.Optimization = false }

	// WithRecording enables dependency-edge recording from the start.
	// Recording adds a small constant cost per resolution, so it is off
	// unless asked for.
	WithRecording RegistryOption = func(conf *RegistryConfiguration) { conf.Recording = true }
)

func clampDebounce(d time.Duration) time.Duration {
	switch {
	case d < minDebounceInterval:
		return minDebounceInterval
	case d > maxDebounceInterval:
		return maxDebounceInterval
	default:
		return d
	}
}
