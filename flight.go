package slotreg

import (
	"context"
	"errors"
	"sync"
)

// flight is the in-flight marker for one singleton construction.
// waiters is guarded by the owning group's mutex.
type flight struct {
	done    chan struct{}
	cancel  context.CancelFunc
	val     any
	err     error
	waiters int
}

// flightGroup deduplicates concurrent singleton construction per slot.
// The first caller installs a flight and drives the factory on a context
// detached from its own cancellation (values, including the resolution
// stack, are preserved). Concurrent callers await the shared done channel.
//
// Cancellation hands over: a waiter giving up only drops its refcount, and
// the factory context is cancelled when the last waiter leaves. A completed
// flight is removed before its result is published to waiters, so a failed
// construction never poisons the slot: the next caller starts a new one.
type flightGroup struct {
	flights map[slot]*flight
	mu      sync.Mutex
}

func newFlightGroup() *flightGroup {
	return &flightGroup{flights: make(map[slot]*flight)}
}

func (g *flightGroup) do(
	ctx context.Context, key slot, run func(context.Context) (any, error),
) (any, error) {
	g.mu.Lock()

	f, ok := g.flights[key]
	if ok {
		f.waiters++
		g.mu.Unlock()

		return g.wait(ctx, f)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f = &flight{
		done:    make(chan struct{}),
		cancel:  cancel,
		waiters: 1,
	}
	g.flights[key] = f
	g.mu.Unlock()

	go func() {
		val, err := run(runCtx)

		g.mu.Lock()
		f.val, f.err = val, err
		abandoned := f.waiters == 0
		delete(g.flights, key)
		g.mu.Unlock()

		cancel()
		close(f.done)

		if abandoned && err != nil && !errors.Is(err, context.Canceled) {
			logger().Error(
				"abandoned singleton construction failed",
				"error", err,
			)
		}
	}()

	return g.wait(ctx, f)
}

func (g *flightGroup) wait(ctx context.Context, f *flight) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
	}

	// Between ctx.Done and taking the lock the flight may have completed;
	// prefer its result over the cancellation.
	g.mu.Lock()
	select {
	case <-f.done:
		g.mu.Unlock()
		return f.val, f.err
	default:
	}

	f.waiters--
	last := f.waiters == 0
	g.mu.Unlock()

	if last {
		f.cancel()
	}

	return nil, ctx.Err()
}
