package slotreg

import (
	"fmt"
	"strings"
)

var (
	ErrNilFactory  = fmt.Errorf("got nil factory")
	ErrNilRegistry = fmt.Errorf("got nil registry")
)

// ScopeKindUnsupportedError reports a ScopeKind outside the known set.
type ScopeKindUnsupportedError string

func (kind ScopeKindUnsupportedError) Error() string {
	return fmt.Sprintf("%s ScopeKind is unsupported", string(kind))
}

func newNotBoundError(typeName string, kind ScopeKind) error {
	return &NotBoundError{
		TypeName: typeName,
		Kind:     kind,
	}
}

// NotBoundError reports an absent binding. It is recoverable: many call
// sites treat absence as "feature disabled" and the registry never turns
// it into a panic on its own.
type NotBoundError struct {
	TypeName string
	Kind     ScopeKind
}

func (err *NotBoundError) Error() string {
	return fmt.Sprintf("no %s binding for %s", err.Kind, err.TypeName)
}

func newFactoryError(cause error, kind ScopeKind, typeName string) error {
	return &FactoryError{
		cause:    cause,
		Kind:     kind,
		TypeName: typeName,
	}
}

// FactoryError wraps an error returned (or a panic raised) by a factory.
// Factory errors are never swallowed or retried by the registry.
type FactoryError struct {
	cause    error
	TypeName string
	Kind     ScopeKind
}

func (err *FactoryError) Error() string {
	return fmt.Sprintf("cannot build %s %s: %s", err.Kind, err.TypeName, err.cause)
}

func (err *FactoryError) Unwrap() error {
	return err.cause
}

func newInstanceScopeError(kind ScopeKind, typeName string) error {
	return &InstanceScopeError{Kind: kind, TypeName: typeName}
}

// InstanceScopeError reports an instance binding registered under Transient,
// which cannot hand out a new value per resolution.
type InstanceScopeError struct {
	TypeName string
	Kind     ScopeKind
}

func (err *InstanceScopeError) Error() string {
	return fmt.Sprintf("instance binding for %s cannot be %s", err.TypeName, err.Kind)
}

func newScopeContextError(kind ScopeKind) error {
	return &ScopeContextError{Kind: kind}
}

// ScopeContextError reports a context-id operation on a scope that does not
// key its cache by context-id.
type ScopeContextError struct {
	Kind ScopeKind
}

func (err *ScopeContextError) Error() string {
	return fmt.Sprintf("%s scope does not take a context-id", err.Kind)
}

// CycleError describes one dependency cycle found by DetectCycles.
// The path lists the types of the cycle in edge order.
type CycleError struct {
	Path []string
}

func (err *CycleError) Error() string {
	if len(err.Path) == 0 {
		return "dependency cycle"
	}

	return fmt.Sprintf(
		"dependency cycle: %s -> %s",
		strings.Join(err.Path, " -> "),
		err.Path[0],
	)
}
