package slotreg

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// slot is a dense index assigned to a registered type.
// Assigned once, monotonically increasing, never reused.
type slot int32

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf(new(T)).Elem()
}

// slotAllocator maps type identities to dense slots.
// Lookups are lock-free against a copy-on-write map; allocation is rare
// relative to resolution, so the write path takes a coarse lock.
type slotAllocator struct {
	read atomic.Pointer[map[reflect.Type]slot]
	mu   sync.Mutex
	next slot
}

func newSlotAllocator() *slotAllocator {
	a := &slotAllocator{}
	m := make(map[reflect.Type]slot)
	a.read.Store(&m)

	return a
}

// slotOf returns the slot for t, assigning a fresh one on first use.
// Idempotent: the same type always yields the same slot.
func (a *slotAllocator) slotOf(t reflect.Type) slot {
	if m := a.read.Load(); m != nil {
		if s, ok := (*m)[t]; ok {
			return s
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cur := *a.read.Load()
	if s, ok := cur[t]; ok {
		return s
	}

	s := a.next
	a.next++

	next := make(map[reflect.Type]slot, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[t] = s
	a.read.Store(&next)

	return s
}

// lookup returns the slot for t without assigning one.
func (a *slotAllocator) lookup(t reflect.Type) (slot, bool) {
	s, ok := (*a.read.Load())[t]
	return s, ok
}

func (a *slotAllocator) count() int {
	return len(*a.read.Load())
}
