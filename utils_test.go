package slotreg_test

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/mkravchuk/slotreg"
)

type NameService interface {
	Name() string
}

type NameProvider string

func (s NameProvider) Name() string {
	return string(s)
}

type Logger interface {
	Log(msg string)
}

type countingLogger struct {
	lines atomic.Int64
}

func (l *countingLogger) Log(string) {
	l.lines.Add(1)
}

type Repo struct {
	ID string
}

type SessionState struct {
	User string
}

type Hero struct {
	Name string
}

func nameServiceConstructor(context.Context) (NameService, error) {
	return NameProvider("Hero"), nil
}

// countingConstructor returns a factory counting its own invocations.
func countingConstructor[T any](calls *atomic.Int64, build func() T) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		calls.Add(1)
		return build(), nil
	}
}

func failingConstructor[T any](cause error) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		var zero T
		return zero, cause
	}
}

func register[T any](
	reg *slotreg.Registry, kind slotreg.ScopeKind, factory func(context.Context) (T, error),
) slotreg.Release {
	release, err := slotreg.Register(reg, kind, factory)
	if err != nil {
		panic(fmt.Sprintf("register %T: %v", *new(T), err))
	}

	return release
}

// chainConstructor resolves Next from reg inside the factory, so dependency
// recording observes an edge from T to Next.
func chainConstructor[T, Next any](
	reg *slotreg.Registry, kind slotreg.ScopeKind, build func(next Next) T,
) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		next, err := slotreg.Resolve[Next](ctx, reg, kind)
		if err != nil {
			var zero T
			return zero, err
		}

		return build(next), nil
	}
}
