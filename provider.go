package scopedi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/junioryono/scopedi/internal/graph"
)

// Provider is the built container. It is the root scope of the scope tree:
// singletons live here and closing the provider closes every scope.
type Provider interface {
	Scope

	// Registrations returns every registration in registration order.
	Registrations() []*Registration

	// WriteGraph writes the static dependency graph in the given format.
	WriteGraph(w io.Writer, format GraphFormat) error
}

// GraphFormat selects the output of Provider.WriteGraph.
type GraphFormat string

const (
	GraphDOT       GraphFormat = "dot"
	GraphText      GraphFormat = "text"
	GraphAdjacency GraphFormat = "adjacency"
)

// ProviderOptions configures Build.
type ProviderOptions struct {
	// Logger receives debug events for builds, scopes and failed
	// resolutions. Defaults to a logger that discards everything.
	Logger *slog.Logger

	// Context is the root scope's context. When it is cancelled the
	// provider closes itself.
	Context context.Context

	// EagerSingletons constructs every singleton during Build, in
	// dependency order, so producer failures surface before first use.
	EagerSingletons bool

	// OnServiceResolved is called after each successful top-level resolution.
	OnServiceResolved func(serviceType reflect.Type, instance any, duration time.Duration)

	// OnServiceError is called after each failed top-level resolution.
	OnServiceError func(serviceType reflect.Type, err error)
}

type provider struct {
	*scope
}

func newProvider(registrations []*Registration, options *ProviderOptions) (Provider, error) {
	opts := &ProviderOptions{}
	if options != nil {
		*opts = *options
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	reg := newRegistry(registrations)
	if err := reg.validate(); err != nil {
		logger.Debug("build failed", "error", err)
		return nil, err
	}

	root := newScope(reg, nil, opts.Context, nil, opts, logger)
	p := &provider{scope: root}

	for _, r := range registrations {
		if !r.isInstance || r.Ownership != OwnedByContainer {
			continue
		}

		if err := root.track(r.instance); err != nil {
			_ = root.Close()
			return nil, BuildError{Phase: "instances", Details: r.String(), Cause: err}
		}
	}

	if opts.EagerSingletons {
		if err := p.activateSingletons(); err != nil {
			if cerr := root.Close(); cerr != nil {
				logger.Warn("close after failed build", "error", cerr)
			}
			return nil, err
		}
	}

	logger.Debug("provider built",
		"scope", root.id,
		"registrations", len(registrations),
		"services", len(reg.order),
	)

	return p, nil
}

// activateSingletons builds every singleton in dependency order.
func (p *provider) activateSingletons() error {
	sorted, err := p.registry.graph.TopologicalSort()
	if err != nil {
		return BuildError{Phase: "eager-singletons", Details: "topological sort", Cause: err}
	}

	activated := make(map[*Registration]bool)
	for _, node := range sorted {
		for _, gp := range node.Providers {
			reg, ok := gp.(*Registration)
			if !ok || activated[reg] || reg.Lifetime != Singleton || reg.isInstance {
				continue
			}
			activated[reg] = true

			if _, err := p.resolveRegistration(resolution{}, node.Key.Type, reg); err != nil {
				return BuildError{Phase: "eager-singletons", Details: reg.String(), Cause: err}
			}
		}
	}

	return nil
}

// Registrations returns every registration in registration order.
func (p *provider) Registrations() []*Registration {
	out := make([]*Registration, len(p.registry.all))
	copy(out, p.registry.all)
	return out
}

// WriteGraph writes the static dependency graph.
func (p *provider) WriteGraph(w io.Writer, format GraphFormat) error {
	v := graph.NewVisualizer(p.registry.graph)

	switch format {
	case GraphDOT, "":
		return v.WriteDOT(w)
	case GraphText:
		return v.WriteText(w)
	case GraphAdjacency:
		return v.WriteAdjacencyList(w)
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}
}

// Resolve resolves a service of type T.
// This is a generic convenience function that handles type assertions.
//
// Example:
//
//	logger, err := scopedi.Resolve[*Logger](provider)
//	if err != nil {
//	    // Handle error
//	}
func Resolve[T any](r Resolver) (T, error) {
	var zero T

	if r == nil {
		return zero, ErrProviderNil
	}

	serviceType := reflect.TypeFor[T]()
	service, err := r.Resolve(serviceType)
	if err != nil {
		return zero, err
	}

	return assertType[T](serviceType, service)
}

// MustResolve resolves a service of type T.
// It panics if the service cannot be resolved. This is useful for
// application initialization where missing services are fatal.
//
// Example:
//
//	// Panics if logger cannot be resolved
//	logger := scopedi.MustResolve[*Logger](provider)
func MustResolve[T any](r Resolver) T {
	service, err := Resolve[T](r)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve service: %v", err))
	}

	return service
}

// ResolveOptional resolves a service of type T, reporting false when T is
// not registered.
//
// Example:
//
//	query, ok, err := scopedi.ResolveOptional[Query[FindCriterion, EntityList]](scope)
func ResolveOptional[T any](r Resolver) (T, bool, error) {
	var zero T

	if r == nil {
		return zero, false, ErrProviderNil
	}

	serviceType := reflect.TypeFor[T]()
	service, ok, err := r.ResolveOptional(serviceType)
	if err != nil || !ok {
		return zero, false, err
	}

	result, err := assertType[T](serviceType, service)
	if err != nil {
		return zero, false, err
	}
	return result, true, nil
}

// ResolveAll resolves every registration of T in registration order.
//
// Example:
//
//	handlers, err := scopedi.ResolveAll[Handler](provider)
func ResolveAll[T any](r Resolver) ([]T, error) {
	if r == nil {
		return nil, ErrProviderNil
	}

	serviceType := reflect.TypeFor[T]()
	services, err := r.ResolveAll(serviceType)
	if err != nil {
		return nil, err
	}

	results := make([]T, 0, len(services))
	for _, service := range services {
		result, err := assertType[T](serviceType, service)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

func assertType[T any](serviceType reflect.Type, service any) (T, error) {
	result, ok := service.(T)
	if !ok {
		var zero T
		return zero, TypeMismatchError{
			Expected: serviceType,
			Actual:   reflect.TypeOf(service),
			Context:  "type assertion",
		}
	}
	return result, nil
}
