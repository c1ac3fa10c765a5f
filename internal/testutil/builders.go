package testutil

import (
	"testing"

	"github.com/junioryono/scopedi"
	"github.com/stretchr/testify/require"
)

// CollectionBuilder provides a fluent interface for building test collections
type CollectionBuilder struct {
	t          *testing.T
	collection scopedi.Collection
}

// NewCollectionBuilder creates a new CollectionBuilder
func NewCollectionBuilder(t *testing.T) *CollectionBuilder {
	return &CollectionBuilder{
		t:          t,
		collection: scopedi.NewCollection(),
	}
}

// WithSingleton adds a singleton registration to the collection
func (b *CollectionBuilder) WithSingleton(producer any, opts ...scopedi.AddOption) *CollectionBuilder {
	require.NoError(b.t, b.collection.AddSingleton(producer, opts...))
	return b
}

// WithScoped adds a scoped registration to the collection
func (b *CollectionBuilder) WithScoped(producer any, opts ...scopedi.AddOption) *CollectionBuilder {
	require.NoError(b.t, b.collection.AddScoped(producer, opts...))
	return b
}

// WithTransient adds a transient registration to the collection
func (b *CollectionBuilder) WithTransient(producer any, opts ...scopedi.AddOption) *CollectionBuilder {
	require.NoError(b.t, b.collection.AddTransient(producer, opts...))
	return b
}

// WithInstance adds a pre-built instance to the collection
func (b *CollectionBuilder) WithInstance(instance any, opts ...scopedi.AddOption) *CollectionBuilder {
	require.NoError(b.t, b.collection.AddInstance(instance, opts...))
	return b
}

// WithModule adds a module to the collection
func (b *CollectionBuilder) WithModule(module scopedi.ModuleOption) *CollectionBuilder {
	require.NoError(b.t, b.collection.AddModules(module))
	return b
}

// Collection returns the underlying collection
func (b *CollectionBuilder) Collection() scopedi.Collection {
	return b.collection
}

// Build builds a Provider and closes it when the test ends
func (b *CollectionBuilder) Build(opts ...*scopedi.ProviderOptions) scopedi.Provider {
	b.t.Helper()

	var options *scopedi.ProviderOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	provider, err := b.collection.BuildWithOptions(options)
	require.NoError(b.t, err)

	b.t.Cleanup(func() {
		_ = provider.Close()
	})

	return provider
}

// BeginScope begins a child scope that is closed when the test ends
func BeginScope(t *testing.T, parent scopedi.Scope) scopedi.Scope {
	t.Helper()

	scope, err := parent.BeginScope(t.Context())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = scope.Close()
	})

	return scope
}
