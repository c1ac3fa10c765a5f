package scopedi_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/junioryono/scopedi"
)

// Benchmark service types
type BenchService struct {
	Name string
}

type BenchDep1 struct{ Value int }
type BenchDep2 struct{ Value int }
type BenchDep3 struct{ Value int }
type BenchDep4 struct{ Value int }
type BenchDep5 struct{ Value int }

type BenchServiceWith1Dep struct {
	Dep1 *BenchDep1
}

type BenchServiceWith3Deps struct {
	Dep1 *BenchDep1
	Dep2 *BenchDep2
	Dep3 *BenchDep3
}

type BenchServiceWith5Deps struct {
	Dep1 *BenchDep1
	Dep2 *BenchDep2
	Dep3 *BenchDep3
	Dep4 *BenchDep4
	Dep5 *BenchDep5
}

// Constructors for benchmarks
func NewBenchService() *BenchService {
	return &BenchService{Name: "bench"}
}

func NewBenchDep1() *BenchDep1 { return &BenchDep1{Value: 1} }
func NewBenchDep2() *BenchDep2 { return &BenchDep2{Value: 2} }
func NewBenchDep3() *BenchDep3 { return &BenchDep3{Value: 3} }
func NewBenchDep4() *BenchDep4 { return &BenchDep4{Value: 4} }
func NewBenchDep5() *BenchDep5 { return &BenchDep5{Value: 5} }

func NewBenchServiceWith1Dep(dep1 *BenchDep1) *BenchServiceWith1Dep {
	return &BenchServiceWith1Dep{Dep1: dep1}
}

func NewBenchServiceWith3Deps(dep1 *BenchDep1, dep2 *BenchDep2, dep3 *BenchDep3) *BenchServiceWith3Deps {
	return &BenchServiceWith3Deps{Dep1: dep1, Dep2: dep2, Dep3: dep3}
}

func NewBenchServiceWith5Deps(dep1 *BenchDep1, dep2 *BenchDep2, dep3 *BenchDep3, dep4 *BenchDep4, dep5 *BenchDep5) *BenchServiceWith5Deps {
	return &BenchServiceWith5Deps{Dep1: dep1, Dep2: dep2, Dep3: dep3, Dep4: dep4, Dep5: dep5}
}

var (
	benchDeps = []any{NewBenchDep1, NewBenchDep2, NewBenchDep3, NewBenchDep4, NewBenchDep5}

	benchRoots = map[int]any{
		0: NewBenchService,
		1: NewBenchServiceWith1Dep,
		3: NewBenchServiceWith3Deps,
		5: NewBenchServiceWith5Deps,
	}
)

// setupBenchProvider registers a root service with the given number of
// dependencies, all with the same lifetime.
func setupBenchProvider(b *testing.B, lifetime scopedi.Lifetime, deps int) scopedi.Provider {
	b.Helper()

	c := scopedi.NewCollection()
	for _, producer := range benchDeps[:deps] {
		if err := c.Register(lifetime, producer); err != nil {
			b.Fatal(err)
		}
	}
	if err := c.Register(lifetime, benchRoots[deps]); err != nil {
		b.Fatal(err)
	}

	p, err := c.Build()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = p.Close() })
	return p
}

func resolveBenchRoot(r scopedi.Resolver, deps int) error {
	var err error
	switch deps {
	case 0:
		_, err = scopedi.Resolve[*BenchService](r)
	case 1:
		_, err = scopedi.Resolve[*BenchServiceWith1Dep](r)
	case 3:
		_, err = scopedi.Resolve[*BenchServiceWith3Deps](r)
	case 5:
		_, err = scopedi.Resolve[*BenchServiceWith5Deps](r)
	}
	return err
}

func BenchmarkResolution(b *testing.B) {
	lifetimes := []scopedi.Lifetime{scopedi.Singleton, scopedi.Scoped, scopedi.Transient}

	for _, lifetime := range lifetimes {
		for _, deps := range []int{0, 1, 3, 5} {
			b.Run(fmt.Sprintf("%s/%ddeps", lifetime, deps), func(b *testing.B) {
				p := setupBenchProvider(b, lifetime, deps)

				scope, err := p.BeginScope(context.Background())
				if err != nil {
					b.Fatal(err)
				}
				defer scope.Close()

				b.ResetTimer()
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if err := resolveBenchRoot(scope, deps); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkConcurrentResolution(b *testing.B) {
	for _, lifetime := range []scopedi.Lifetime{scopedi.Singleton, scopedi.Transient} {
		b.Run(lifetime.String(), func(b *testing.B) {
			p := setupBenchProvider(b, lifetime, 3)

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					_ = resolveBenchRoot(p, 3)
				}
			})
		})
	}
}

func BenchmarkScopeCreation(b *testing.B) {
	p := setupBenchProvider(b, scopedi.Scoped, 3)

	b.Run("empty", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			scope, _ := p.BeginScope(context.Background())
			scope.Close()
		}
	})

	b.Run("with resolution", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			scope, _ := p.BeginScope(context.Background())
			_ = resolveBenchRoot(scope, 3)
			scope.Close()
		}
	})

	b.Run("parallel", func(b *testing.B) {
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				scope, _ := p.BeginScope(context.Background())
				_ = resolveBenchRoot(scope, 3)
				scope.Close()
			}
		})
	})
}

func BenchmarkTaggedScope(b *testing.B) {
	c := scopedi.NewCollection()
	c.AddScoped(NewBenchDep1, scopedi.MatchingScope("request"))
	c.AddTransient(NewBenchServiceWith1Dep)
	p, err := c.Build()
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		request, _ := p.BeginTaggedScope(context.Background(), "request")
		inner, _ := request.BeginScope(context.Background())
		_ = scopedi.MustResolve[*BenchServiceWith1Dep](inner)
		request.Close()
	}
}

func BenchmarkResolveAll(b *testing.B) {
	for _, n := range []int{1, 10, 50} {
		b.Run(fmt.Sprintf("%d", n), func(b *testing.B) {
			c := scopedi.NewCollection()
			for range n {
				c.AddTransient(NewBenchService)
			}
			p, err := c.Build()
			if err != nil {
				b.Fatal(err)
			}
			defer p.Close()

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = scopedi.ResolveAll[*BenchService](p)
			}
		})
	}
}

func BenchmarkParameters(b *testing.B) {
	c := scopedi.NewCollection()
	c.AddTransient(NewBenchDep1)
	c.AddTransient(NewBenchServiceWith1Dep,
		scopedi.TypedParameter(&BenchDep1{Value: 42}))
	p, err := c.Build()
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = scopedi.MustResolve[*BenchServiceWith1Dep](p)
	}
}

func BenchmarkProviderBuild(b *testing.B) {
	for _, size := range []int{10, 100} {
		b.Run(fmt.Sprintf("%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				c := scopedi.NewCollection()
				for range size / 2 {
					c.AddSingleton(NewBenchService)
					c.AddScoped(NewBenchDep1)
				}

				p, err := c.Build()
				if err != nil {
					b.Fatal(err)
				}
				p.Close()
			}
		})
	}
}
