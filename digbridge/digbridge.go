// Package digbridge exposes the services of a scopedi scope to a
// go.uber.org/dig container, so code written against dig can consume a
// registry built with scopedi.
//
// Every registered service type becomes a dig provider that resolves from
// the scope. dig caches provided values, so each type is resolved from the
// scope at most once per dig container, whatever its scopedi lifetime.
package digbridge

import (
	"fmt"
	"reflect"

	"github.com/junioryono/scopedi"
	"go.uber.org/dig"
)

var errorType = reflect.TypeFor[error]()

// Option configures Populate.
type Option func(*options)

type options struct {
	collections bool
	skip        map[reflect.Type]bool
}

// WithCollections also provides []T for every service type T, resolved
// with ResolveAll.
func WithCollections() Option {
	return func(o *options) {
		o.collections = true
	}
}

// Skip leaves the given service types out of the dig container, for
// example when the dig container already provides them.
func Skip(types ...reflect.Type) Option {
	return func(o *options) {
		for _, t := range types {
			o.skip[t] = true
		}
	}
}

// Populate adds a provider to dc for every service type registered in the
// scope's registry.
func Populate(dc *dig.Container, scope scopedi.Scope, opts ...Option) error {
	if dc == nil {
		return fmt.Errorf("digbridge: dig container cannot be nil")
	}
	if scope == nil {
		return scopedi.ErrProviderNil
	}

	o := &options{skip: make(map[reflect.Type]bool)}
	for _, opt := range opts {
		opt(o)
	}

	services := scope.Services()
	registered := make(map[reflect.Type]bool, len(services))
	for _, t := range services {
		registered[t] = true
	}

	for _, t := range services {
		if o.skip[t] {
			continue
		}

		if err := dc.Provide(provider(t, func() (any, error) { return scope.Resolve(t) })); err != nil {
			return fmt.Errorf("digbridge: provide %s: %w", t, err)
		}

		if !o.collections {
			continue
		}

		st := reflect.SliceOf(t)
		if registered[st] || o.skip[st] {
			continue
		}

		err := dc.Provide(provider(st, func() (any, error) {
			return scope.Resolve(st)
		}))
		if err != nil {
			return fmt.Errorf("digbridge: provide %s: %w", st, err)
		}
	}

	return nil
}

// Invoke runs fn with its parameters resolved from scope through a fresh
// dig container.
func Invoke(scope scopedi.Scope, fn any, opts ...dig.InvokeOption) error {
	dc := dig.New()
	if err := Populate(dc, scope); err != nil {
		return err
	}
	return dc.Invoke(fn, opts...)
}

// provider builds a func() (t, error) that dig can register.
func provider(t reflect.Type, resolve func() (any, error)) any {
	fnType := reflect.FuncOf(nil, []reflect.Type{t, errorType}, false)

	fn := reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		instance, err := resolve()
		if err != nil {
			return []reflect.Value{reflect.Zero(t), reflect.ValueOf(&err).Elem()}
		}

		v := reflect.New(t).Elem()
		v.Set(reflect.ValueOf(instance))
		return []reflect.Value{v, reflect.Zero(errorType)}
	})

	return fn.Interface()
}
