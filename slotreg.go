package slotreg

import (
	"context"
	"errors"
	"fmt"
)

// Lazy defers resolution of a service until called.
type Lazy[T any] func(ctx context.Context) (T, error)

// Register binds a factory for T under the given scope and returns a release
// handle clearing that binding. Registering over an existing binding
// replaces it and bumps the scope's snapshot version; resolutions already
// in flight may complete with either binding.
func Register[T any](r *Registry, kind ScopeKind, factory func(ctx context.Context) (T, error)) (Release, error) {
	if r == nil {
		return nil, ErrNilRegistry
	}

	if factory == nil {
		return nil, ErrNilFactory
	}

	return r.register(typeOf[T](), kind, func(ctx context.Context) (any, error) {
		value, err := factory(ctx)
		if err != nil {
			return nil, err
		}

		return value, nil
	})
}

// RegisterInstance binds an already-constructed value for T. Not available
// under Transient: a stored value cannot be handed out fresh per resolution.
func RegisterInstance[T any](r *Registry, kind ScopeKind, value T) (Release, error) {
	if r == nil {
		return nil, ErrNilRegistry
	}

	return r.registerInstance(typeOf[T](), kind, value)
}

// Resolve returns the T bound under the given scope. An absent binding
// yields a *NotBoundError; a factory failure propagates wrapped in a
// *FactoryError. The caller decides whether either is fatal.
func Resolve[T any](ctx context.Context, r *Registry, kind ScopeKind) (T, error) {
	var zero T

	if r == nil {
		return zero, ErrNilRegistry
	}

	value, err := r.resolve(ctx, typeOf[T](), kind)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, newFactoryError(
			fmt.Errorf("bound value %T is not %s", value, typeOf[T]()),
			kind,
			typeOf[T]().String(),
		)
	}

	return typed, nil
}

// TryResolve is the fail-silent entry point: absence and failure both yield
// false, and failures go to the error logger instead of the caller.
func TryResolve[T any](ctx context.Context, r *Registry, kind ScopeKind) (T, bool) {
	value, err := Resolve[T](ctx, r, kind)
	if err == nil {
		return value, true
	}

	var notBound *NotBoundError
	if !errors.As(err, &notBound) {
		logger().Error("resolution failed", "type", typeOf[T]().String(), "error", err)
	}

	var zero T

	return zero, false
}

// MustResolve is the fail-fatal entry point.
func MustResolve[T any](ctx context.Context, r *Registry, kind ScopeKind) T {
	value, err := Resolve[T](ctx, r, kind)
	if err != nil {
		panic(err)
	}

	return value
}

// Prepare returns a Lazy resolving T on demand, for handlers built before
// the binding is exercised.
func Prepare[T any](r *Registry, kind ScopeKind) Lazy[T] {
	return func(ctx context.Context) (T, error) {
		return Resolve[T](ctx, r, kind)
	}
}

// Bound reports whether T currently has a binding under the given scope.
func Bound[T any](r *Registry, kind ScopeKind) bool {
	if r == nil || !kind.valid() {
		return false
	}

	key, ok := r.slots.lookup(typeOf[T]())
	if !ok {
		return false
	}

	return r.scopes[kind].store.load().bound(key)
}

// ReleaseType clears the binding of T in one scope only; other scopes keep
// theirs.
func ReleaseType[T any](r *Registry, kind ScopeKind) {
	if r == nil {
		return
	}

	r.release(typeOf[T](), kind)
}
