// Package scopedi provides a service registry with nested lifetime scopes.
//
// # Overview
//
// Registrations bind capabilities (interfaces or concrete types) to
// producers. A built registry resolves whole dependency graphs by
// constructor injection and shares instances according to their lifetime:
//   - Singleton: one instance for the whole container
//   - Scoped: one instance per scope, optionally per tagged scope
//   - Transient: a new instance on every resolution
//
// # Basic Usage
//
// Create a collection, register producers, build a provider, and resolve:
//
//	services := scopedi.NewCollection()
//	services.AddTransient(NewSomeService, scopedi.As(new(SomeService)))
//	services.AddTransient(NewMainClass, scopedi.TypedParameter("hello"))
//
//	provider, err := services.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	main, err := scopedi.Resolve[*MainClass](provider)
//
// A producer is a function returning the instance and, optionally, an
// error. Its parameters are resolved from the container. A value that is
// not a function is registered as a ready-made instance.
//
// # Multiple Registrations
//
// A capability may be registered more than once. Resolve returns the most
// recent registration unless it was added with PreserveExistingDefaults.
// ResolveAll, and any constructor parameter of slice type []I, receives one
// instance per registration of I in registration order.
//
// # Conditional Parameters
//
// WithParameter attaches an ordered list of (predicate, value provider)
// rules to a producer. The first rule accepting a parameter supplies its
// value; parameters no rule accepts are resolved normally.
//
//	services.AddTransient(NewMainClass,
//	    scopedi.WithParameter(scopedi.ParameterOfType[SomeService](), scopedi.FromContainer()),
//	    scopedi.WithParameter(scopedi.ParameterOfType[string](), scopedi.Value("hello")),
//	)
//
// Producers that need to resolve lazily can take a Context parameter.
// Resolutions made through it stay in the same chain, so cycles are still
// detected.
//
// # Scopes
//
// Every scope may begin child scopes. Tagged scopes group Scoped
// registrations declared with MatchingScope:
//
//	request, err := provider.BeginTaggedScope(ctx, "request")
//	if err != nil {
//	    return err
//	}
//	defer request.Close()
//
// Closing a scope closes its children, then disposes the container-owned
// instances it created in reverse order. Instances registered with
// ExternallyOwned are never disposed by the container.
//
// # Validation
//
// Build rejects producers with parameters that no registration, rule or
// built-in type can satisfy, and dependency cycles between registrations.
// Cycles that only appear at run time through Context are reported by the
// resolution that closes them.
//
// # Error Handling
//
// Errors are typed and can be inspected with errors.As or the helpers:
//
//	if scopedi.IsNotFound(err) { ... }
//	if scopedi.IsCircularDependency(err) { ... }
//	if scopedi.IsScopeMismatch(err) { ... }
package scopedi
