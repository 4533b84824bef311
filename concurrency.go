package slotreg

import "sync"

// instanceScope holds one cached instance of a contextual scope.
// The per-slot mutex gives double-checked construction: concurrent first
// resolutions of the same (context-id, slot) run the factory once.
type instanceScope struct {
	value *any
	mu    sync.Mutex
}

func (cs *instanceScope) empty() bool {
	return cs.value == nil
}

func (cs *instanceScope) lock() {
	cs.mu.Lock()
}

func (cs *instanceScope) unlock() {
	cs.mu.Unlock()
}

// contextScope is the slot-indexed cache of one context-id.
// The slice grows on demand since slots keep being allocated after the
// context came to life.
type contextScope struct {
	services []*instanceScope
	mu       sync.Mutex
}

func (cs *contextScope) scopeOf(key slot) *instanceScope {
	cs.mu.Lock()

	for int(key) >= len(cs.services) {
		cs.services = append(cs.services, &instanceScope{})
	}
	s := cs.services[key]

	cs.mu.Unlock()

	return s
}

// contextInstances caches instances per context-id for one contextual
// scope. Purged only when the owning context-id is cleared by the external
// scope collaborator, never by the registry spontaneously.
type contextInstances struct {
	m sync.Map // context-id -> *contextScope
}

func (ci *contextInstances) get(contextID string, key slot) *instanceScope {
	scopeVal, ok := ci.m.Load(contextID)
	if !ok {
		scopeVal, _ = ci.m.LoadOrStore(contextID, &contextScope{})
	}

	return scopeVal.(*contextScope).scopeOf(key)
}

func (ci *contextInstances) drop(contextID string) {
	ci.m.Delete(contextID)
}

func (ci *contextInstances) reset() {
	ci.m.Range(func(key, _ any) bool {
		ci.m.Delete(key)
		return true
	})
}

// releaseSlot clears the cached instance of key in every live context.
func (ci *contextInstances) releaseSlot(key slot) {
	ci.m.Range(func(_, scopeVal any) bool {
		scope := scopeVal.(*contextScope)

		scope.mu.Lock()
		if int(key) < len(scope.services) {
			s := scope.services[key]
			s.lock()
			s.value = nil
			s.unlock()
		}
		scope.mu.Unlock()

		return true
	})
}
