package scopedi

import (
	"bytes"
	"fmt"
	"reflect"
)

// An AddOption modifies the default behavior of AddSingleton, AddScoped,
// AddTransient, AddInstance and Register.
type AddOption interface {
	applyAddOption(*addOptions)
}

type addOptions struct {
	as               []reflect.Type
	asSelf           bool
	ownership        Ownership
	matchingTag      any
	hasMatchingTag   bool
	preserveDefaults bool
	parameters       []ParameterRule
}

// As is an AddOption that exposes the produced value under one or more
// other types instead of its own.
//
// As expects pointers to the exposed types, typically interfaces:
//
//	c.AddTransient(NewSomeService, scopedi.As(new(SomeService)))
//
// The concrete type is no longer resolvable unless AsSelf is also given.
// A pointer to a non-interface type exposes that exact type and requires
// the produced value to be assignable to it.
func As(i ...any) AddOption {
	types := make([]reflect.Type, len(i))
	for idx, v := range i {
		t := reflect.TypeOf(v)
		if t == nil || t.Kind() != reflect.Pointer {
			// Rejected in bindServices with ErrInvalidAs.
			continue
		}
		types[idx] = t.Elem()
	}
	return addAsOption(types)
}

// AsType is the reflect.Type variant of As.
func AsType(types ...reflect.Type) AddOption {
	return addAsOption(types)
}

type addAsOption []reflect.Type

func (o addAsOption) String() string {
	buf := bytes.NewBufferString("As(")
	for i, t := range o {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(formatType(t))
	}
	buf.WriteString(")")
	return buf.String()
}

func (o addAsOption) applyAddOption(opts *addOptions) {
	opts.as = append(opts.as, o...)
}

// AsSelf keeps the concrete type resolvable alongside the types given to As.
func AsSelf() AddOption {
	return addAsSelfOption{}
}

type addAsSelfOption struct{}

func (addAsSelfOption) String() string { return "AsSelf()" }

func (addAsSelfOption) applyAddOption(opts *addOptions) {
	opts.asSelf = true
}

// ExternallyOwned marks produced instances as owned by the caller.
// The container never closes them.
func ExternallyOwned() AddOption {
	return addOwnershipOption(OwnedExternally)
}

type addOwnershipOption Ownership

func (o addOwnershipOption) String() string {
	return fmt.Sprintf("Ownership(%s)", Ownership(o))
}

func (o addOwnershipOption) applyAddOption(opts *addOptions) {
	opts.ownership = Ownership(o)
}

// MatchingScope restricts a Scoped registration to scopes tagged with tag.
// The instance is shared within the nearest enclosing scope carrying the
// tag; resolving it where no such scope exists fails with a
// ScopeMismatchError.
//
//	c.AddScoped(NewUnitOfWork, scopedi.MatchingScope("request"))
//	request, _ := provider.BeginTaggedScope(ctx, "request")
func MatchingScope(tag any) AddOption {
	return addMatchingScopeOption{tag: tag}
}

type addMatchingScopeOption struct {
	tag any
}

func (o addMatchingScopeOption) String() string {
	return fmt.Sprintf("MatchingScope(%v)", o.tag)
}

func (o addMatchingScopeOption) applyAddOption(opts *addOptions) {
	opts.matchingTag = o.tag
	opts.hasMatchingTag = true
}

// PreserveExistingDefaults keeps earlier registrations as the default for
// the registration's types. The registration still appears in ResolveAll.
func PreserveExistingDefaults() AddOption {
	return addPreserveDefaultsOption{}
}

type addPreserveDefaultsOption struct{}

func (addPreserveDefaultsOption) String() string { return "PreserveExistingDefaults()" }

func (addPreserveDefaultsOption) applyAddOption(opts *addOptions) {
	opts.preserveDefaults = true
}

// WithParameter adds a conditional rule for the producer's parameters.
// Rules are tried in declaration order and the first whose predicate
// accepts a parameter supplies its value. Parameters matched by no rule
// are resolved from the container.
//
//	c.AddTransient(NewMainClass,
//	    scopedi.WithParameter(scopedi.ParameterOfType[SomeService](), scopedi.FromContainer()),
//	    scopedi.TypedParameter("hello"),
//	)
func WithParameter(match ParameterPredicate, provide ValueProvider) AddOption {
	return addParameterOption{rule: ParameterRule{Match: match, Provide: provide}}
}

// TypedParameter supplies value to every parameter of type T.
func TypedParameter[T any](value T) AddOption {
	return WithParameter(ParameterOfType[T](), Value(value))
}

// PositionalParameter supplies value to the parameter at index.
func PositionalParameter(index int, value any) AddOption {
	return WithParameter(ParameterAt(index), Value(value))
}

type addParameterOption struct {
	rule ParameterRule
}

func (o addParameterOption) String() string { return "WithParameter(...)" }

func (o addParameterOption) applyAddOption(opts *addOptions) {
	opts.parameters = append(opts.parameters, o.rule)
}
