package scopedi

import "reflect"

// Parameter describes one producer parameter at the point a value is needed.
type Parameter struct {
	// Index is the zero-based position of the parameter.
	Index int

	// Type is the declared parameter type.
	Type reflect.Type

	// Implementation is the type the producer creates.
	Implementation reflect.Type
}

// ParameterPredicate decides whether a rule applies to a parameter.
// Predicates are evaluated at build time for validation and again on every
// resolution, so they must be pure.
type ParameterPredicate func(p Parameter) bool

// ValueProvider produces the value for a parameter accepted by a predicate.
// The Context resolves further services from the scope performing the
// resolution. A nil result is accepted only for interface, pointer, map,
// slice, func and chan parameters, which receive their zero value. Any
// other parameter kind fails with a TypeMismatchError.
type ValueProvider func(p Parameter, ctx Context) (any, error)

// ParameterRule pairs a predicate with the provider of the value.
type ParameterRule struct {
	Match   ParameterPredicate
	Provide ValueProvider
}

// ParameterOfType matches parameters whose declared type is exactly T.
func ParameterOfType[T any]() ParameterPredicate {
	t := reflect.TypeFor[T]()
	return func(p Parameter) bool {
		return p.Type == t
	}
}

// ParameterAssignableFrom matches parameters that can hold a value of type t.
func ParameterAssignableFrom(t reflect.Type) ParameterPredicate {
	return func(p Parameter) bool {
		return t != nil && t.AssignableTo(p.Type)
	}
}

// ParameterAt matches the parameter at the given position.
func ParameterAt(index int) ParameterPredicate {
	return func(p Parameter) bool {
		return p.Index == index
	}
}

// Value returns a ValueProvider that always yields v.
func Value(v any) ValueProvider {
	return func(Parameter, Context) (any, error) {
		return v, nil
	}
}

// FromContainer returns a ValueProvider that resolves the parameter type.
func FromContainer() ValueProvider {
	return func(p Parameter, ctx Context) (any, error) {
		return ctx.Resolve(p.Type)
	}
}

// FromService returns a ValueProvider that resolves serviceType, which may
// differ from the parameter type as long as it is assignable to it.
func FromService(serviceType reflect.Type) ValueProvider {
	return func(_ Parameter, ctx Context) (any, error) {
		return ctx.Resolve(serviceType)
	}
}

// coerce converts a provided value to the parameter type.
func coerce(p Parameter, v any) (reflect.Value, error) {
	if v == nil {
		switch p.Type.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(p.Type), nil
		}
		return reflect.Value{}, TypeMismatchError{Expected: p.Type, Context: "parameter value"}
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(p.Type) {
		if rv.Type() != p.Type {
			converted := reflect.New(p.Type).Elem()
			converted.Set(rv)
			return converted, nil
		}
		return rv, nil
	}

	return reflect.Value{}, TypeMismatchError{Expected: p.Type, Actual: rv.Type(), Context: "parameter value"}
}
