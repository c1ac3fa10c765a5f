// Package benchmarks compares scopedi with go.uber.org/dig and samber/do.
//
// Run with: go test -bench=. -benchmem ./benchmarks/
package benchmarks

import (
	"context"
	"testing"

	"github.com/junioryono/scopedi"
	"github.com/samber/do/v2"
	"go.uber.org/dig"
)

type Logger struct{ Name string }

type Config struct{ Value string }

type Database struct {
	Logger *Logger
	Config *Config
}

type Cache struct {
	Logger   *Logger
	Config   *Config
	Database *Database
}

type Dep5 struct{ Value int }

// UserService has five dependencies, two of them with dependencies of
// their own.
type UserService struct {
	Logger   *Logger
	Config   *Config
	Database *Database
	Cache    *Cache
	Dep5     *Dep5
}

func NewLogger() *Logger { return &Logger{Name: "logger"} }
func NewConfig() *Config { return &Config{Value: "config"} }
func NewDep5() *Dep5     { return &Dep5{Value: 5} }

func NewDatabase(logger *Logger, config *Config) *Database {
	return &Database{Logger: logger, Config: config}
}

func NewCache(logger *Logger, config *Config, db *Database) *Cache {
	return &Cache{Logger: logger, Config: config, Database: db}
}

func NewUserService(logger *Logger, config *Config, db *Database, cache *Cache, dep5 *Dep5) *UserService {
	return &UserService{Logger: logger, Config: config, Database: db, Cache: cache, Dep5: dep5}
}

var graph = []any{NewLogger, NewConfig, NewDatabase, NewCache, NewDep5, NewUserService}

func buildScopedi(b *testing.B, lifetime scopedi.Lifetime) scopedi.Provider {
	c := scopedi.NewCollection()
	for _, producer := range graph {
		if err := c.Register(lifetime, producer); err != nil {
			b.Fatal(err)
		}
	}
	p, err := c.Build()
	if err != nil {
		b.Fatal(err)
	}
	return p
}

func buildDig(b *testing.B) *dig.Container {
	c := dig.New()
	for _, producer := range graph {
		if err := c.Provide(producer); err != nil {
			b.Fatal(err)
		}
	}
	return c
}

// buildDo registers the graph with samber/do, which has no reflection
// based constructor injection.
func buildDo(transient bool) *do.RootScope {
	injector := do.New()

	provide := do.Provide[*Logger]
	if transient {
		provide = do.ProvideTransient[*Logger]
	}
	provide(injector, func(do.Injector) (*Logger, error) { return NewLogger(), nil })

	do.Provide(injector, func(do.Injector) (*Config, error) { return NewConfig(), nil })
	do.Provide(injector, func(do.Injector) (*Dep5, error) { return NewDep5(), nil })
	do.Provide(injector, func(i do.Injector) (*Database, error) {
		return NewDatabase(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*Cache, error) {
		return NewCache(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i), do.MustInvoke[*Database](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*UserService, error) {
		return NewUserService(
			do.MustInvoke[*Logger](i),
			do.MustInvoke[*Config](i),
			do.MustInvoke[*Database](i),
			do.MustInvoke[*Cache](i),
			do.MustInvoke[*Dep5](i),
		), nil
	})

	return injector
}

func BenchmarkBuild(b *testing.B) {
	b.Run("scopedi", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			buildScopedi(b, scopedi.Singleton).Close()
		}
	})

	b.Run("dig", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			buildDig(b)
		}
	})

	b.Run("do", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			buildDo(false).Shutdown()
		}
	})
}

// BenchmarkResolveSingleton resolves an already constructed singleton graph.
func BenchmarkResolveSingleton(b *testing.B) {
	b.Run("scopedi", func(b *testing.B) {
		p := buildScopedi(b, scopedi.Singleton)
		defer p.Close()
		scopedi.MustResolve[*UserService](p)

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = scopedi.MustResolve[*UserService](p)
		}
	})

	b.Run("dig", func(b *testing.B) {
		c := buildDig(b)
		c.Invoke(func(*UserService) {})

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c.Invoke(func(*UserService) {})
		}
	})

	b.Run("do", func(b *testing.B) {
		injector := buildDo(false)
		defer injector.Shutdown()
		do.MustInvoke[*UserService](injector)

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = do.MustInvoke[*UserService](injector)
		}
	})
}

// BenchmarkResolveTransient constructs a new Logger on every call. dig has
// no transient lifetime.
func BenchmarkResolveTransient(b *testing.B) {
	b.Run("scopedi", func(b *testing.B) {
		p := buildScopedi(b, scopedi.Transient)
		defer p.Close()

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = scopedi.MustResolve[*Logger](p)
		}
	})

	b.Run("do", func(b *testing.B) {
		injector := buildDo(true)
		defer injector.Shutdown()

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = do.MustInvoke[*Logger](injector)
		}
	})
}

func BenchmarkResolveConcurrent(b *testing.B) {
	b.Run("scopedi", func(b *testing.B) {
		p := buildScopedi(b, scopedi.Singleton)
		defer p.Close()
		scopedi.MustResolve[*UserService](p)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				_ = scopedi.MustResolve[*UserService](p)
			}
		})
	})

	b.Run("dig", func(b *testing.B) {
		c := buildDig(b)
		c.Invoke(func(*UserService) {})

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				c.Invoke(func(*UserService) {})
			}
		})
	})

	b.Run("do", func(b *testing.B) {
		injector := buildDo(false)
		defer injector.Shutdown()
		do.MustInvoke[*UserService](injector)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				_ = do.MustInvoke[*UserService](injector)
			}
		})
	})
}

// BenchmarkColdStart builds a container and resolves the graph once.
func BenchmarkColdStart(b *testing.B) {
	b.Run("scopedi", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			p := buildScopedi(b, scopedi.Singleton)
			_ = scopedi.MustResolve[*UserService](p)
			p.Close()
		}
	})

	b.Run("dig", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			buildDig(b).Invoke(func(*UserService) {})
		}
	})

	b.Run("do", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			injector := buildDo(false)
			_ = do.MustInvoke[*UserService](injector)
			injector.Shutdown()
		}
	})
}

// BenchmarkRequestScope resolves a scoped graph in a fresh tagged scope per
// iteration, the way a web request would.
func BenchmarkRequestScope(b *testing.B) {
	b.Run("scopedi", func(b *testing.B) {
		c := scopedi.NewCollection()
		c.AddSingleton(NewLogger)
		c.AddScoped(NewConfig, scopedi.MatchingScope("request"))
		c.AddScoped(NewDatabase)
		p, err := c.Build()
		if err != nil {
			b.Fatal(err)
		}
		defer p.Close()

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			request, _ := p.BeginTaggedScope(context.Background(), "request")
			_ = scopedi.MustResolve[*Database](request)
			request.Close()
		}
	})

	b.Run("do", func(b *testing.B) {
		injector := do.New()
		do.Provide(injector, func(do.Injector) (*Logger, error) { return NewLogger(), nil })
		defer injector.Shutdown()

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			request := injector.Scope("request")
			do.Provide(request, func(do.Injector) (*Config, error) { return NewConfig(), nil })
			do.Provide(request, func(i do.Injector) (*Database, error) {
				return NewDatabase(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i)), nil
			})
			_ = do.MustInvoke[*Database](request)
			request.Shutdown()
		}
	})
}

func BenchmarkResolveAll(b *testing.B) {
	b.Run("scopedi", func(b *testing.B) {
		c := scopedi.NewCollection()
		for range 5 {
			c.AddTransient(NewLogger)
		}
		p, err := c.Build()
		if err != nil {
			b.Fatal(err)
		}
		defer p.Close()

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = scopedi.ResolveAll[*Logger](p)
		}
	})

	b.Run("dig", func(b *testing.B) {
		type loggers struct {
			dig.In
			All []*Logger `group:"loggers"`
		}

		c := dig.New()
		for range 5 {
			c.Provide(NewLogger, dig.Group("loggers"))
		}

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c.Invoke(func(loggers) {})
		}
	})
}
