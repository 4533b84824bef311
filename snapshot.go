package slotreg

import (
	"context"
	"sync/atomic"
)

// Factory produces a value on demand. The context carries the resolution
// stack used by dependency recording and is cancelled only when the last
// waiter on an in-flight construction gives up.
type Factory func(ctx context.Context) (any, error)

// factoryBinding carries a factory plus the id of the registration that
// installed it, so a singleton materialization can tell whether its binding
// was replaced mid-construction.
type factoryBinding struct {
	fn Factory
	id uint64
}

// snapshot is an immutable pair of slot-indexed arrays. Every mutation
// produces a new snapshot; readers always observe a fully-formed one.
// A nil entry means the slot carries no binding of that flavor.
type snapshot struct {
	instances []*any
	factories []*factoryBinding
	version   uint64
}

func emptySnapshot() *snapshot {
	return &snapshot{}
}

func (s *snapshot) instanceAt(key slot) (any, bool) {
	if int(key) >= len(s.instances) {
		return nil, false
	}

	if v := s.instances[key]; v != nil {
		return *v, true
	}

	return nil, false
}

func (s *snapshot) factoryAt(key slot) *factoryBinding {
	if int(key) >= len(s.factories) {
		return nil
	}

	return s.factories[key]
}

func (s *snapshot) bound(key slot) bool {
	if _, ok := s.instanceAt(key); ok {
		return true
	}

	return s.factoryAt(key) != nil
}

func (s *snapshot) boundCount() int {
	n := 0
	for i := range s.instances {
		if s.instances[i] != nil {
			n++
			continue
		}

		if i < len(s.factories) && s.factories[i] != nil {
			n++
		}
	}

	for i := len(s.instances); i < len(s.factories); i++ {
		if s.factories[i] != nil {
			n++
		}
	}

	return n
}

func (s *snapshot) clone(minLen int) *snapshot {
	size := max(minLen, len(s.instances), len(s.factories))

	next := &snapshot{
		instances: make([]*any, size),
		factories: make([]*factoryBinding, size),
		version:   s.version + 1,
	}
	copy(next.instances, s.instances)
	copy(next.factories, s.factories)

	return next
}

// withFactory rebinds key to f, dropping any materialized instance so the
// new factory takes effect on the next resolution.
func (s *snapshot) withFactory(key slot, f *factoryBinding) *snapshot {
	next := s.clone(int(key) + 1)
	next.factories[key] = f
	next.instances[key] = nil

	return next
}

func (s *snapshot) withInstance(key slot, v any) *snapshot {
	next := s.clone(int(key) + 1)
	next.instances[key] = &v

	return next
}

func (s *snapshot) withoutBinding(key slot) *snapshot {
	if int(key) >= len(s.instances) && int(key) >= len(s.factories) {
		return s
	}

	next := s.clone(0)
	if int(key) < len(next.instances) {
		next.instances[key] = nil
	}
	if int(key) < len(next.factories) {
		next.factories[key] = nil
	}

	return next
}

// snapshotStore holds the current snapshot of one scope.
// load is a lock-free O(1) pointer read; writers go through store or a
// compareAndSwap retry loop against a freshly built copy.
type snapshotStore struct {
	cur atomic.Pointer[snapshot]
}

func newSnapshotStore() *snapshotStore {
	st := &snapshotStore{}
	st.cur.Store(emptySnapshot())

	return st
}

func (st *snapshotStore) load() *snapshot {
	return st.cur.Load()
}

func (st *snapshotStore) store(s *snapshot) {
	st.cur.Store(s)
}

func (st *snapshotStore) compareAndSwap(old, next *snapshot) bool {
	return st.cur.CompareAndSwap(old, next)
}

// update retries a copy-on-write mutation until it lands on the current
// snapshot. mutate must be pure: it may run several times.
func (st *snapshotStore) update(mutate func(*snapshot) *snapshot) *snapshot {
	for {
		cur := st.load()
		next := mutate(cur)

		if next == cur || st.compareAndSwap(cur, next) {
			return next
		}
	}
}
