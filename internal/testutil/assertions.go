package testutil

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/junioryono/scopedi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertServiceResolvable checks if a service can be resolved
func AssertServiceResolvable[T any](t *testing.T, r scopedi.Resolver) T {
	t.Helper()
	service, err := scopedi.Resolve[T](r)
	require.NoError(t, err, "failed to resolve service of type %T", *new(T))
	require.NotNil(t, service, "resolved service is nil")
	return service
}

// AssertServiceNotFound checks if a service resolution fails with not found error
func AssertServiceNotFound[T any](t *testing.T, r scopedi.Resolver) {
	t.Helper()
	_, err := scopedi.Resolve[T](r)
	require.Error(t, err)
	assert.True(t, scopedi.IsNotFound(err), "expected service not found error, got: %v", err)

	var resErr scopedi.ResolutionError
	assert.True(t, errors.As(err, &resErr), "expected ResolutionError, got %T", err)
}

// AssertSameInstance checks that two values are the same pointer
func AssertSameInstance(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	assert.Same(t, expected, actual, msgAndArgs...)
}

// AssertDifferentInstances checks that two values are different pointers
func AssertDifferentInstances(t *testing.T, first, second any, msgAndArgs ...any) {
	t.Helper()
	assert.NotSame(t, first, second, msgAndArgs...)
}

// AssertScopeDisposed checks that a scope refuses further work
func AssertScopeDisposed(t *testing.T, scope scopedi.Scope) {
	t.Helper()
	assert.True(t, scope.IsDisposed())

	_, err := scope.Resolve(reflect.TypeFor[*TestService]())
	assert.True(t, scopedi.IsDisposed(err), "expected disposed error, got: %v", err)

	_, err = scope.BeginScope(context.Background())
	assert.True(t, scopedi.IsDisposed(err), "expected disposed error, got: %v", err)
}

// AssertErrorType checks the error chain contains a T and returns it
func AssertErrorType[T error](t *testing.T, err error, msgAndArgs ...any) T {
	t.Helper()
	var target T
	require.ErrorAs(t, err, &target, msgAndArgs...)
	return target
}

// AssertCircularDependency checks for a circular dependency error
func AssertCircularDependency(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, scopedi.IsCircularDependency(err), "expected circular dependency error, got: %v", err)
}
