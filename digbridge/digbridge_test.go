package digbridge_test

import (
	"reflect"
	"testing"

	"github.com/junioryono/scopedi"
	"github.com/junioryono/scopedi/digbridge"
	"github.com/junioryono/scopedi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
)

func TestPopulate(t *testing.T) {
	t.Run("dig resolves scopedi services", func(t *testing.T) {
		t.Parallel()

		provider := testutil.NewCollectionBuilder(t).
			WithSingleton(testutil.NewTestLogger).
			WithSingleton(testutil.NewTestDatabase).
			WithScoped(testutil.NewTestServiceWithDeps).
			Build()
		scope := testutil.BeginScope(t, provider)

		dc := dig.New()
		require.NoError(t, digbridge.Populate(dc, scope))

		err := dc.Invoke(func(svc *testutil.TestServiceWithDeps, logger testutil.TestLogger) {
			assert.Same(t, logger, svc.Logger)

			fromScope := testutil.AssertServiceResolvable[*testutil.TestServiceWithDeps](t, scope)
			assert.Same(t, fromScope, svc)
		})
		require.NoError(t, err)
	})

	t.Run("dig constructors consume scopedi services", func(t *testing.T) {
		t.Parallel()

		provider := testutil.NewCollectionBuilder(t).
			WithSingleton(testutil.NewTestLogger).
			Build()

		type report struct{ logger testutil.TestLogger }

		dc := dig.New()
		require.NoError(t, digbridge.Populate(dc, provider))
		require.NoError(t, dc.Provide(func(l testutil.TestLogger) *report { return &report{logger: l} }))

		require.NoError(t, dc.Invoke(func(r *report) {
			assert.NotNil(t, r.logger)
		}))
	})

	t.Run("collections", func(t *testing.T) {
		t.Parallel()

		provider := testutil.NewCollectionBuilder(t).
			WithTransient(testutil.HandlerProducer("a")).
			WithTransient(testutil.HandlerProducer("b")).
			Build()

		dc := dig.New()
		require.NoError(t, digbridge.Populate(dc, provider, digbridge.WithCollections()))

		require.NoError(t, dc.Invoke(func(handlers []testutil.TestHandler, def testutil.TestHandler) {
			require.Len(t, handlers, 2)
			assert.Equal(t, "a", handlers[0].Handle())
			assert.Equal(t, "b", def.Handle())
		}))
	})

	t.Run("skip", func(t *testing.T) {
		t.Parallel()

		provider := testutil.NewCollectionBuilder(t).
			WithSingleton(testutil.NewTestLogger).
			Build()

		dc := dig.New()
		require.NoError(t, dc.Provide(testutil.NewTestLogger))
		require.NoError(t, digbridge.Populate(dc, provider, digbridge.Skip(reflect.TypeFor[testutil.TestLogger]())))

		err := digbridge.Populate(dig.New(), provider)
		require.NoError(t, err)
	})

	t.Run("resolution errors surface through dig", func(t *testing.T) {
		t.Parallel()

		provider := testutil.NewCollectionBuilder(t).
			WithTransient(func() (*testutil.TestService, error) { return nil, testutil.ErrConstructor }).
			Build()

		err := digbridge.Invoke(provider, func(*testutil.TestService) {})
		require.Error(t, err)
		assert.ErrorIs(t, dig.RootCause(err), testutil.ErrConstructor)
	})

	t.Run("nil arguments", func(t *testing.T) {
		t.Parallel()

		provider := testutil.NewCollectionBuilder(t).Build()

		assert.Error(t, digbridge.Populate(nil, provider))
		assert.ErrorIs(t, digbridge.Populate(dig.New(), nil), scopedi.ErrProviderNil)
	})
}

func TestInvoke(t *testing.T) {
	t.Parallel()

	provider := testutil.NewCollectionBuilder(t).
		WithSingleton(testutil.NewTestDatabase).
		Build()

	var answer string
	err := digbridge.Invoke(provider, func(db testutil.TestDatabase) {
		answer = db.Query("select 1")
	})
	require.NoError(t, err)
	assert.Equal(t, "testdb: select 1", answer)
}
