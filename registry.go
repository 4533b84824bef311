package slotreg

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
)

// Release clears the binding its registration created. Safe to call more
// than once and from any goroutine.
type Release func()

// Registry is the concurrent dependency-resolution registry: type-to-binding
// mappings per lifetime scope, served under concurrent read/write load.
//
// Every scope owns an independent snapshot chain mutated only through
// atomic swap; resolution of an already-materialized instance is one atomic
// pointer load plus bounds checks, with no allocation and no lock.
type Registry struct {
	slots     *slotAllocator
	scopes    [numScopeKinds]*scopedRegistry
	graph     *graphRecorder
	optimizer *usageOptimizer

	recording    atomic.Bool
	optimization atomic.Bool
	nextBinding  atomic.Uint64
}

// scopedRegistry is one lifetime scope: its own snapshot chain plus, for
// contextual kinds, the current context-id and the per-context caches.
type scopedRegistry struct {
	kind     ScopeKind
	store    *snapshotStore
	flights  *flightGroup
	contexts *contextInstances
	ctx      scopeContext
}

func newScopedRegistry(kind ScopeKind) *scopedRegistry {
	sr := &scopedRegistry{
		kind:  kind,
		store: newSnapshotStore(),
	}

	if kind == Singleton {
		sr.flights = newFlightGroup()
	}

	if kind.contextual() {
		sr.contexts = &contextInstances{}
	}

	return sr
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	conf := RegistryConfiguration{
		DebounceInterval: defaultDebounceInterval,
		Optimization:     true,
	}

	for _, opt := range opts {
		opt(&conf)
	}

	r := &Registry{
		slots: newSlotAllocator(),
		graph: newGraphRecorder(),
	}
	r.optimizer = newUsageOptimizer(conf.DebounceInterval, r.graph)
	r.recording.Store(conf.Recording)
	r.optimization.Store(conf.Optimization)

	for kind := 0; kind < numScopeKinds; kind++ {
		r.scopes[kind] = newScopedRegistry(ScopeKind(kind))
	}

	return r
}

// Close stops the stats publisher. The registry itself holds no other
// resources; Close exists so tests and process teardown can finish clean.
func (r *Registry) Close() {
	r.optimizer.close()
}

// SetRecording toggles dependency-edge recording at runtime.
func (r *Registry) SetRecording(enabled bool) {
	r.recording.Store(enabled)
}

// SetOptimization toggles usage counters and stats publication at runtime.
func (r *Registry) SetOptimization(enabled bool) {
	r.optimization.Store(enabled)
}

// SetScopeContext sets the current context-id of a contextual scope.
// Owned by the external scope-lifecycle collaborator: sessions, requests
// and screens begin and end outside the registry.
func (r *Registry) SetScopeContext(kind ScopeKind, id string) error {
	if !kind.valid() {
		return ScopeKindUnsupportedError(kind.String())
	}

	if !kind.contextual() {
		return newScopeContextError(kind)
	}

	r.scopes[kind].ctx.set(id)

	return nil
}

// ClearScopeContext clears the current context-id of a contextual scope and
// purges the instances cached under it.
func (r *Registry) ClearScopeContext(kind ScopeKind) error {
	if !kind.valid() {
		return ScopeKindUnsupportedError(kind.String())
	}

	if !kind.contextual() {
		return newScopeContextError(kind)
	}

	sr := r.scopes[kind]
	if id, ok := sr.ctx.clear(); ok {
		sr.contexts.drop(id)
	}

	return nil
}

// ScopeContext returns the current context-id of a contextual scope.
func (r *Registry) ScopeContext(kind ScopeKind) (string, bool) {
	if !kind.valid() || !kind.contextual() {
		return "", false
	}

	return r.scopes[kind].ctx.current()
}

// BindingCount returns the number of bound slots in one scope.
func (r *Registry) BindingCount(kind ScopeKind) int {
	if !kind.valid() {
		return 0
	}

	return r.scopes[kind].store.load().boundCount()
}

// ReleaseAll drops every binding and every cached instance in all scopes.
// In-flight constructions run to completion and hand their result to their
// current waiters, but the emptied snapshot keeps them from being cached.
// Scope context-ids, recorded edges and usage counters survive: those
// belong to their own owners.
func (r *Registry) ReleaseAll() {
	for _, sr := range r.scopes {
		sr.store.store(emptySnapshot())

		if sr.contexts != nil {
			sr.contexts.reset()
		}
	}
}

// ResetGraph prunes all recorded dependency edges.
func (r *Registry) ResetGraph() {
	r.graph.reset()
}

// DetectCycles runs an on-demand DFS over a read-only copy of the recorded
// edges and returns every distinct cycle as its path of type names.
// Best-effort diagnostics: it sees whatever edges recording has observed.
func (r *Registry) DetectCycles() [][]string {
	return detectCycles(r.graph.adjacency())
}

// CycleErrors wraps DetectCycles results as errors for callers that want to
// fail their bootstrap on a cyclic graph.
func (r *Registry) CycleErrors() []error {
	cycles := r.DetectCycles()
	if len(cycles) == 0 {
		return nil
	}

	errs := make([]error, len(cycles))
	for i, path := range cycles {
		errs[i] = &CycleError{Path: path}
	}

	return errs
}

// StatsSnapshot returns the last published diagnostics snapshot.
func (r *Registry) StatsSnapshot() Stats {
	return r.optimizer.snapshot()
}

// Edges returns a read-only copy of the recorded dependency graph keyed by
// caller type, each neighbor list sorted.
func (r *Registry) Edges() map[string][]string {
	return r.graph.adjacency()
}

func (r *Registry) register(t reflect.Type, kind ScopeKind, factory Factory) (Release, error) {
	if !kind.valid() {
		return nil, ScopeKindUnsupportedError(kind.String())
	}

	if factory == nil {
		return nil, ErrNilFactory
	}

	key := r.slots.slotOf(t)
	sr := r.scopes[kind]
	binding := &factoryBinding{fn: factory, id: r.nextBinding.Add(1)}

	var replaced bool
	sr.store.update(func(cur *snapshot) *snapshot {
		replaced = cur.bound(key)
		return cur.withFactory(key, binding)
	})

	// A replaced binding must not serve instances built by its predecessor.
	if sr.contexts != nil {
		sr.contexts.releaseSlot(key)
	}

	if !replaced && r.optimization.Load() {
		r.optimizer.countRegistration()
	}

	return r.releaseOnce(t, kind), nil
}

func (r *Registry) registerInstance(t reflect.Type, kind ScopeKind, value any) (Release, error) {
	if !kind.valid() {
		return nil, ScopeKindUnsupportedError(kind.String())
	}

	if kind == Transient {
		return nil, newInstanceScopeError(kind, t.String())
	}

	key := r.slots.slotOf(t)
	sr := r.scopes[kind]

	var replaced bool
	sr.store.update(func(cur *snapshot) *snapshot {
		replaced = cur.bound(key)

		next := cur.withInstance(key, value)
		next.factories[key] = nil

		return next
	})

	if sr.contexts != nil {
		sr.contexts.releaseSlot(key)
	}

	if !replaced && r.optimization.Load() {
		r.optimizer.countRegistration()
	}

	return r.releaseOnce(t, kind), nil
}

func (r *Registry) releaseOnce(t reflect.Type, kind ScopeKind) Release {
	var released atomic.Bool

	return func() {
		if released.CompareAndSwap(false, true) {
			r.release(t, kind)
		}
	}
}

func (r *Registry) release(t reflect.Type, kind ScopeKind) {
	if !kind.valid() {
		return
	}

	key, ok := r.slots.lookup(t)
	if !ok {
		return
	}

	sr := r.scopes[kind]

	var removed bool
	sr.store.update(func(cur *snapshot) *snapshot {
		removed = cur.bound(key)
		return cur.withoutBinding(key)
	})

	if sr.contexts != nil {
		sr.contexts.releaseSlot(key)
	}

	if removed && r.optimization.Load() {
		r.optimizer.countRelease()
	}
}

// resolve serves one lookup. An unbound type yields a NotBoundError, never a
// panic: the caller decides whether absence is fatal.
func (r *Registry) resolve(ctx context.Context, t reflect.Type, kind ScopeKind) (any, error) {
	if !kind.valid() {
		return nil, ScopeKindUnsupportedError(kind.String())
	}

	typeName := t.String()

	key, ok := r.slots.lookup(t)
	if !ok {
		return nil, newNotBoundError(typeName, kind)
	}

	sr := r.scopes[kind]
	snap := sr.store.load()

	r.observe(ctx, typeName)

	// Instance bindings and materialized singletons: the zero-allocation
	// hot path.
	if v, ok := snap.instanceAt(key); ok {
		return v, nil
	}

	binding := snap.factoryAt(key)
	if binding == nil {
		return nil, newNotBoundError(typeName, kind)
	}

	construct := r.invoker(typeName, kind, binding.fn)

	switch kind {
	case Singleton:
		return sr.resolveSingleton(ctx, key, binding.id, construct)
	case Session, Request, Screen:
		return sr.resolveContextual(ctx, key, construct)
	default:
		return construct(ctx)
	}
}

// observe feeds the diagnostics side: one usage count and, while another
// resolution is in progress on this context, one dependency edge.
func (r *Registry) observe(ctx context.Context, typeName string) {
	if r.optimization.Load() {
		r.optimizer.countResolution(typeName)
	}

	if r.recording.Load() {
		if from, ok := currentResolution(ctx); ok {
			r.graph.record(from, typeName)
		}
	}
}

// invoker wraps a factory with the resolution frame push and the panic
// guard. Factory errors propagate wrapped; they are never retried.
func (r *Registry) invoker(typeName string, kind ScopeKind, factory Factory) Factory {
	return func(ctx context.Context) (value any, err error) {
		defer func() {
			if rp := recover(); rp != nil {
				err = newFactoryError(
					fmt.Errorf("recovered from panic: %v", rp),
					kind,
					typeName,
				)
			}
		}()

		value, err = factory(pushResolution(ctx, typeName))
		if err != nil {
			return nil, newFactoryError(err, kind, typeName)
		}

		return value, nil
	}
}

// resolveSingleton drives construction through the flight group at most
// once and materializes the result into the snapshot, so later resolutions
// take the instance fast path. Concurrent first callers await the same
// in-flight construction.
func (sr *scopedRegistry) resolveSingleton(
	ctx context.Context, key slot, bindingID uint64, construct Factory,
) (any, error) {
	return sr.flights.do(ctx, key, func(runCtx context.Context) (any, error) {
		// Double check inside the flight: a racing flight may have already
		// materialized the instance before this caller joined.
		if v, ok := sr.store.load().instanceAt(key); ok {
			return v, nil
		}

		value, err := construct(runCtx)
		if err != nil {
			return nil, err
		}

		sr.store.update(func(cur *snapshot) *snapshot {
			binding := cur.factoryAt(key)
			if binding == nil || binding.id != bindingID {
				// Released or replaced while constructing: documented race,
				// the result is handed to current waiters but not cached.
				return cur
			}

			return cur.withInstance(key, value)
		})

		return value, nil
	})
}

// resolveContextual caches per (context-id, slot). With no context-id set,
// resolution degrades to one-shot uncached construction; that is the
// documented policy, not an error.
func (sr *scopedRegistry) resolveContextual(
	ctx context.Context, key slot, construct Factory,
) (any, error) {
	contextID, ok := sr.ctx.current()
	if !ok {
		return construct(ctx)
	}

	scope := sr.contexts.get(contextID, key)

	scope.lock()
	defer scope.unlock()

	if !scope.empty() {
		return *scope.value, nil
	}

	value, err := construct(ctx)
	if err != nil {
		return nil, err
	}

	// Re-check the id before caching: a clear that raced with this
	// resolution must not leave the instance behind for a future reuse
	// of the same context-id.
	if cur, ok := sr.ctx.current(); ok && cur == contextID {
		scope.value = &value
	}

	return value, nil
}
