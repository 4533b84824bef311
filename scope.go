package slotreg

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ScopeKind is a lifetime category governing how long a resolved instance is cached.
type ScopeKind int

const (
	// For `Transient` bindings a new instance is constructed on every resolution.
	Transient ScopeKind = iota
	// For `Singleton` bindings the same instance is returned for the process lifetime.
	Singleton
	// For `Session` bindings the same instance is returned while the session context-id is set.
	Session
	// For `Request` bindings the same instance is returned while the request context-id is set.
	Request
	// For `Screen` bindings the same instance is returned while the screen context-id is set.
	Screen

	numScopeKinds = int(Screen) + 1
)

func (k ScopeKind) String() string {
	switch k {
	case Transient:
		return "Transient"
	case Singleton:
		return "Singleton"
	case Session:
		return "Session"
	case Request:
		return "Request"
	case Screen:
		return "Screen"
	default:
		return "Unknown"
	}
}

func (k ScopeKind) valid() bool {
	return k >= Transient && k <= Screen
}

// contextual reports whether instances of this kind are keyed by a context-id.
func (k ScopeKind) contextual() bool {
	return k == Session || k == Request || k == Screen
}

// NewContextID returns a fresh identifier suitable for SetScopeContext.
func NewContextID() string {
	return uuid.NewString()
}

// scopeContext holds the current context-id of a contextual scope.
// The id is owned by an external scope-lifecycle collaborator;
// the registry never sets or clears it on its own.
type scopeContext struct {
	id atomic.Pointer[string]
}

func (sc *scopeContext) set(id string) {
	sc.id.Store(&id)
}

func (sc *scopeContext) clear() (string, bool) {
	old := sc.id.Swap(nil)
	if old == nil {
		return "", false
	}

	return *old, true
}

func (sc *scopeContext) current() (string, bool) {
	id := sc.id.Load()
	if id == nil {
		return "", false
	}

	return *id, true
}
