package scopedi_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/junioryono/scopedi"
	"github.com/junioryono/scopedi/internal/testutil"
	"pgregory.net/rapid"
)

func buildHandlers(t *rapid.T, names []string, preserve []bool, lifetime scopedi.Lifetime) scopedi.Provider {
	c := scopedi.NewCollection()
	for i, name := range names {
		var opts []scopedi.AddOption
		if preserve[i] {
			opts = append(opts, scopedi.PreserveExistingDefaults())
		}
		if err := c.Register(lifetime, testutil.HandlerProducer(name), opts...); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	provider, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return provider
}

func TestProperty_ResolveAllKeepsRegistrationOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "n")
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("h%d", i)
		}
		preserve := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "preserve")
		lifetime := rapid.SampledFrom([]scopedi.Lifetime{scopedi.Singleton, scopedi.Scoped, scopedi.Transient}).Draw(t, "lifetime")

		provider := buildHandlers(t, names, preserve, lifetime)
		defer provider.Close()

		handlers, err := scopedi.ResolveAll[testutil.TestHandler](provider)
		if err != nil {
			t.Fatalf("resolve all: %v", err)
		}

		got := handlerNames(handlers)
		if fmt.Sprint(got) != fmt.Sprint(names) {
			t.Fatalf("expected %v, got %v", names, got)
		}

		// The default is the last registration not marked to preserve an
		// existing default; the first registration always qualifies.
		want := names[0]
		for i := 1; i < n; i++ {
			if !preserve[i] {
				want = names[i]
			}
		}

		handler, err := scopedi.Resolve[testutil.TestHandler](provider)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if handler.Handle() != want {
			t.Fatalf("expected default %s, got %s", want, handler.Handle())
		}
	})
}

func TestProperty_LifetimeSharing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lifetime := rapid.SampledFrom([]scopedi.Lifetime{scopedi.Singleton, scopedi.Scoped, scopedi.Transient}).Draw(t, "lifetime")
		depth := rapid.IntRange(0, 4).Draw(t, "depth")

		provider := buildHandlers(t, []string{"only"}, []bool{false}, lifetime)
		defer provider.Close()

		var scope scopedi.Scope = provider
		for range depth {
			child, err := scope.BeginScope(context.Background())
			if err != nil {
				t.Fatalf("begin scope: %v", err)
			}
			scope = child
		}

		first, err := scopedi.Resolve[testutil.TestHandler](scope)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		second, err := scopedi.Resolve[testutil.TestHandler](scope)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		fromRoot, err := scopedi.Resolve[testutil.TestHandler](provider)
		if err != nil {
			t.Fatalf("resolve from root: %v", err)
		}

		sameInScope := first == second
		sameAsRoot := first == fromRoot

		switch lifetime {
		case scopedi.Singleton:
			if !sameInScope || !sameAsRoot {
				t.Fatalf("singleton must be shared everywhere")
			}
		case scopedi.Scoped:
			if !sameInScope {
				t.Fatalf("scoped must be shared within a scope")
			}
			if sameAsRoot != (depth == 0) {
				t.Fatalf("scoped instance at depth %d shared with root: %v", depth, sameAsRoot)
			}
		case scopedi.Transient:
			if sameInScope || sameAsRoot {
				t.Fatalf("transient must never be shared")
			}
		}
	})
}
