package scopedi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/junioryono/scopedi/internal/graph"
	"github.com/junioryono/scopedi/internal/reflection"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that are wrapped in typed errors when returned.

var (
	// Resolution errors.
	ErrServiceNotFound = errors.New("service not found")
	ErrServiceTypeNil  = errors.New("service type cannot be nil")
	ErrNilInstance     = errors.New("producer returned a nil instance")

	// Lifecycle errors.
	ErrProviderNil       = errors.New("service provider cannot be nil")
	ErrProviderDisposed  = errors.New("service provider has been disposed")
	ErrScopeDisposed     = errors.New("scope has been disposed")
	ErrScopeNotInContext = errors.New("no scope found in context")
	ErrCollectionBuilt   = errors.New("collection has already been built")

	// Registration errors.
	ErrProducerNil           = reflection.ErrNilProducer
	ErrConstructorNoReturn   = reflection.ErrNoReturn
	ErrConstructorTooManyOut = reflection.ErrTooManyReturns
	ErrConstructorBadError   = reflection.ErrSecondReturnNotError
	ErrConstructorErrorOnly  = reflection.ErrErrorOnlyReturn
	ErrConstructorVariadic   = reflection.ErrVariadic
	ErrNotImplemented        = errors.New("implementation type does not implement the service type")
	ErrInvalidAs             = errors.New("argument must be a pointer to the service type")
	ErrUnsatisfiable         = errors.New("dependency can never be satisfied")
	ErrInvalidTag            = errors.New("scope tag must be a non-nil comparable value")
	ErrModuleNil             = errors.New("module cannot be nil")
)

var (
	_ error = LifetimeError{}
	_ error = RegistrationError{}
	_ error = ResolutionError{}
	_ error = ScopeMismatchError{}
	_ error = ModuleError{}
	_ error = TypeMismatchError{}
	_ error = ConstructorInvocationError{}
	_ error = ConstructorPanicError{}
	_ error = BuildError{}
	_ error = DisposalError{}
	_ error = CircularDependencyError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// LifetimeError indicates an invalid lifetime value.
type LifetimeError struct {
	Value any
}

func (e LifetimeError) Error() string {
	return fmt.Sprintf("invalid service lifetime: %v", e.Value)
}

// CircularDependencyError is reported when a capability transitively depends on itself.
type CircularDependencyError = graph.CircularDependencyError

// RegistrationError wraps errors caught while registering or validating a binding.
type RegistrationError struct {
	ServiceType reflect.Type
	Operation   string // "register", "validate", "as", ...
	Cause       error
}

func (e RegistrationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, formatType(e.ServiceType), e.Cause)
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// ResolutionError reports that a capability could not be resolved.
// Chain lists the capabilities that were being constructed when the
// failure happened, outermost first.
type ResolutionError struct {
	ServiceType reflect.Type
	Chain       []reflect.Type
	Cause       error
	Available   []reflect.Type // Registered types, used for suggestions
}

func (e ResolutionError) Error() string {
	var b strings.Builder

	if e.Cause == nil || errors.Is(e.Cause, ErrServiceNotFound) {
		b.WriteString(fmt.Sprintf("service not found: %s", formatType(e.ServiceType)))
	} else {
		b.WriteString(fmt.Sprintf("failed to resolve %s: %v", formatType(e.ServiceType), e.Cause))
	}

	if len(e.Chain) > 0 {
		names := make([]string, 0, len(e.Chain)+1)
		for _, t := range e.Chain {
			names = append(names, formatType(t))
		}
		names = append(names, formatType(e.ServiceType))
		b.WriteString("\n  requested by: ")
		b.WriteString(strings.Join(names, " → "))
	}

	if len(e.Available) > 0 {
		if similar := findSimilarTypes(e.ServiceType, e.Available); len(similar) > 0 {
			b.WriteString("\n\nDid you mean one of these?\n")
			for _, t := range similar {
				b.WriteString(fmt.Sprintf("  • %s\n", formatType(t)))
			}
		}
	}

	return b.String()
}

func (e ResolutionError) Unwrap() error {
	return e.Cause
}

// findSimilarTypes finds types with similar names using a simple substring match
func findSimilarTypes(target reflect.Type, available []reflect.Type) []reflect.Type {
	if target == nil || len(available) == 0 {
		return nil
	}

	targetName := strings.ToLower(target.String())
	targetShortName := strings.ToLower(shortName(target))

	var similar []reflect.Type
	for _, t := range available {
		if t == nil || t == target {
			continue
		}

		typeName := strings.ToLower(t.String())
		typeShortName := strings.ToLower(shortName(t))

		if targetShortName == typeShortName ||
			strings.Contains(typeName, targetShortName) ||
			strings.Contains(targetName, typeShortName) {
			similar = append(similar, t)
		}

		if len(similar) >= 5 {
			break
		}
	}

	return similar
}

func shortName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// ScopeMismatchError indicates a registration bound to a tagged scope was
// requested from a scope that has no ancestor carrying that tag.
type ScopeMismatchError struct {
	ServiceType reflect.Type
	Tag         any
	ScopeID     string
	Chain       []reflect.Type
}

func (e ScopeMismatchError) Error() string {
	return fmt.Sprintf("no scope tagged %v is visible from scope %s; %s can only be resolved inside such a scope",
		e.Tag, e.ScopeID, formatType(e.ServiceType))
}

// ModuleError wraps errors from module registration.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError indicates a type assertion or conversion failed.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string // "type assertion", "parameter value", ...
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, formatType(e.Expected), formatType(e.Actual))
}

// ConstructorInvocationError reports a producer returning an error.
type ConstructorInvocationError struct {
	Constructor reflect.Type
	Parameters  []reflect.Type
	Cause       error
}

func (e ConstructorInvocationError) Error() string {
	paramStrs := make([]string, len(e.Parameters))
	for i, p := range e.Parameters {
		paramStrs[i] = formatType(p)
	}
	return fmt.Sprintf("failed to invoke %s with parameters [%s]: %v",
		formatType(e.Constructor), strings.Join(paramStrs, ", "), e.Cause)
}

func (e ConstructorInvocationError) Unwrap() error {
	return e.Cause
}

// ConstructorPanicError indicates a producer panicked during invocation.
type ConstructorPanicError struct {
	Constructor reflect.Type
	Panic       any
	Stack       []byte
}

func (e ConstructorPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("constructor %s panicked: %v\n", formatType(e.Constructor), e.Panic))

	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// BuildError wraps errors that occur while building the provider.
type BuildError struct {
	Phase   string // "validation", "graph", "eager-singletons"
	Details string
	Cause   error
}

func (e BuildError) Error() string {
	return fmt.Sprintf("build failed during %s phase: %s: %v", e.Phase, e.Details, e.Cause)
}

func (e BuildError) Unwrap() error {
	return e.Cause
}

// DisposalError aggregates disposal errors.
type DisposalError struct {
	Context string // "provider", "scope"
	Errors  []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s disposal failed: %v", e.Context, e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s disposal failed with %d errors:", e.Context, len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// IsNotFound reports whether err was caused by an unregistered capability.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}

// IsCircularDependency reports whether err was caused by a dependency cycle.
func IsCircularDependency(err error) bool {
	var cycle CircularDependencyError
	return errors.As(err, &cycle)
}

// IsScopeMismatch reports whether err was caused by a tagged scope constraint.
func IsScopeMismatch(err error) bool {
	var mismatch ScopeMismatchError
	return errors.As(err, &mismatch)
}

// IsDisposed reports whether err was caused by using a closed scope or provider.
func IsDisposed(err error) bool {
	return errors.Is(err, ErrScopeDisposed) || errors.Is(err, ErrProviderDisposed)
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Func:
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
