package scopedi

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/junioryono/scopedi/internal/graph"
)

// registry is the frozen view of a built collection.
type registry struct {
	all      []*Registration
	services map[reflect.Type][]*Registration
	defaults map[reflect.Type]*Registration
	order    []reflect.Type
	graph    *graph.DependencyGraph
}

func newRegistry(registrations []*Registration) *registry {
	r := &registry{
		all:      registrations,
		services: make(map[reflect.Type][]*Registration),
		defaults: make(map[reflect.Type]*Registration),
		graph:    graph.NewDependencyGraph(),
	}

	for _, reg := range registrations {
		for _, t := range reg.ServiceTypes {
			if _, seen := r.services[t]; !seen {
				r.order = append(r.order, t)
			}
			r.services[t] = append(r.services[t], reg)

			// The last registration wins unless it asked to keep the
			// existing default.
			if _, ok := r.defaults[t]; !ok || !reg.PreserveDefaults {
				r.defaults[t] = reg
			}
		}
	}

	return r
}

// has reports whether t has an explicit registration.
func (r *registry) has(t reflect.Type) bool {
	return r.defaults[t] != nil
}

// canResolve reports whether resolving t can succeed without a not-found
// error for t itself.
func (r *registry) canResolve(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t == contextType || t == scopeType || r.has(t) {
		return true
	}
	return t.Kind() == reflect.Slice
}

// parameterDependency classifies a producer parameter. It returns the
// registered type the parameter resolves to, whether it is satisfiable at
// all, and whether it yields a registry dependency.
func (r *registry) parameterDependency(reg *Registration, p Parameter) (reflect.Type, bool, bool) {
	if _, ok := reg.matchRule(p); ok {
		return nil, true, false
	}

	if p.Type == contextType || p.Type == scopeType {
		return nil, true, false
	}

	if r.has(p.Type) {
		return p.Type, true, true
	}

	if p.Type.Kind() == reflect.Slice {
		if elem := p.Type.Elem(); r.has(elem) {
			return elem, true, true
		}
		return nil, true, false
	}

	return nil, false, false
}

// validate checks that every parameter can be satisfied, that the static
// dependency graph is acyclic, and that singletons never reach a
// registration bound to a tagged scope.
func (r *registry) validate() error {
	var errs []error

	for _, reg := range r.all {
		reg.dependencies = nil
		for _, p := range reg.Parameters() {
			dep, ok, isDep := r.parameterDependency(reg, p)
			if !ok {
				errs = append(errs, RegistrationError{
					ServiceType: reg.ImplementationType,
					Operation:   "validate",
					Cause: fmt.Errorf("%w: parameter %d of type %s has no registration, rule or built-in value",
						ErrUnsatisfiable, p.Index, formatType(p.Type)),
				})
				continue
			}
			if isDep {
				reg.dependencies = append(reg.dependencies, dep)
			}
		}
	}

	if len(errs) > 0 {
		return BuildError{Phase: "validation", Details: "unsatisfiable dependencies", Cause: errors.Join(errs...)}
	}

	for _, reg := range r.all {
		if err := r.graph.AddProvider(reg); err != nil {
			return BuildError{Phase: "graph", Details: fmt.Sprintf("adding %s", reg), Cause: err}
		}
	}

	for _, reg := range r.all {
		if reg.Lifetime != Singleton || reg.isInstance {
			continue
		}

		if err := r.checkSingleton(reg); err != nil {
			return BuildError{Phase: "validation", Details: "lifetime mismatch", Cause: err}
		}
	}

	return nil
}

// checkSingleton walks the dependencies a singleton resolves in the root
// scope and reports any registration bound to a tagged scope.
func (r *registry) checkSingleton(singleton *Registration) error {
	visited := make(map[*Registration]bool)

	var walk func(reg *Registration, chain []reflect.Type) error
	walk = func(reg *Registration, chain []reflect.Type) error {
		for _, dep := range reg.dependencies {
			for _, target := range r.targets(reg, dep) {
				if visited[target] {
					continue
				}
				visited[target] = true

				if target.Lifetime == Scoped && target.MatchingTag != nil {
					return RegistrationError{
						ServiceType: singleton.ImplementationType,
						Operation:   "validate",
						Cause: ScopeMismatchError{
							ServiceType: dep,
							Tag:         target.MatchingTag,
							ScopeID:     "root",
							Chain:       chain,
						},
					}
				}

				// Other singletons are checked on their own.
				if target.Lifetime == Singleton {
					continue
				}

				if err := walk(target, append(chain[:len(chain):len(chain)], dep)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	return walk(singleton, []reflect.Type{singleton.ImplementationType})
}

// targets returns the registrations a dependency of reg resolves to.
func (r *registry) targets(reg *Registration, dep reflect.Type) []*Registration {
	for _, p := range reg.info.Parameters {
		if p.Type == dep && r.has(dep) {
			return []*Registration{r.defaults[dep]}
		}
	}
	return r.services[dep]
}
