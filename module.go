package scopedi

import (
	"fmt"
	"reflect"
	"sync"
)

// ModuleOption represents a registration action within a module.
type ModuleOption func(Collection) error

// NewModule creates a new module with the given name and builders.
// Modules are a way to group related registrations together.
//
// Example:
//
//	var QueryModule = scopedi.NewModule("queries",
//	    scopedi.AddTransient(NewFindEntitiesByNameQuery, scopedi.As(new(EntityQuery))),
//	)
//
//	var AppModule = scopedi.NewModule("app",
//	    QueryModule,
//	    scopedi.AddSingleton(NewClock),
//	    scopedi.AddScoped(NewUnitOfWork, scopedi.MatchingScope("request")),
//	)
func NewModule(name string, builders ...ModuleOption) ModuleOption {
	return func(s Collection) error {
		for _, builder := range builders {
			if builder == nil {
				continue
			}

			if err := builder(s); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// AddSingleton creates a ModuleOption for adding a singleton registration.
func AddSingleton(producer any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddSingleton(producer, opts...)
	}
}

// AddScoped creates a ModuleOption for adding a scoped registration.
func AddScoped(producer any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddScoped(producer, opts...)
	}
}

// AddTransient creates a ModuleOption for adding a transient registration.
func AddTransient(producer any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddTransient(producer, opts...)
	}
}

// AddInstance creates a ModuleOption for adding a pre-built instance.
func AddInstance(instance any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddInstance(instance, opts...)
	}
}

// Module is a reusable unit of registrations. Modules may carry
// configuration in their fields and branch on it inside Load.
//
//	type StorageModule struct {
//	    InMemory bool
//	}
//
//	func (m StorageModule) Load(c scopedi.Collection) error {
//	    if m.InMemory {
//	        return c.AddSingleton(NewMemoryStore, scopedi.As(new(Store)))
//	    }
//	    return c.AddSingleton(NewDiskStore, scopedi.As(new(Store)))
//	}
type Module interface {
	Load(c Collection) error
}

// ModuleFunc adapts an ordinary function to a Module.
type ModuleFunc func(c Collection) error

// Load calls f(c).
func (f ModuleFunc) Load(c Collection) error {
	return f(c)
}

// NamedModule is implemented by modules that report their own name in errors.
type NamedModule interface {
	Module
	Name() string
}

// RegisterModule adapts a Module to a ModuleOption. Errors from Load are
// wrapped in a ModuleError carrying the module name.
func RegisterModule(m Module) ModuleOption {
	return func(s Collection) error {
		if m == nil {
			return ModuleError{Module: "<nil>", Cause: ErrModuleNil}
		}

		if err := m.Load(s); err != nil {
			return ModuleError{Module: moduleName(m), Cause: err}
		}

		return nil
	}
}

func moduleName(m Module) string {
	if named, ok := m.(NamedModule); ok {
		return named.Name()
	}

	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// ModuleCatalog collects modules so they can be registered together.
// Each module type is loaded at most once, the first added instance wins.
// A catalog is safe for concurrent use.
type ModuleCatalog struct {
	mu      sync.Mutex
	modules []Module
	seen    map[reflect.Type]bool
}

// NewModuleCatalog creates an empty catalog.
func NewModuleCatalog(modules ...Module) *ModuleCatalog {
	c := &ModuleCatalog{seen: make(map[reflect.Type]bool)}
	c.Add(modules...)
	return c
}

// Add appends modules whose type has not been added before.
func (c *ModuleCatalog) Add(modules ...Module) *ModuleCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range modules {
		if m == nil {
			continue
		}

		t := reflect.TypeOf(m)
		if c.seen[t] {
			continue
		}

		c.seen[t] = true
		c.modules = append(c.modules, m)
	}

	return c
}

// Modules returns the catalogued modules in the order they were added.
func (c *ModuleCatalog) Modules() []Module {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Module, len(c.modules))
	copy(out, c.modules)
	return out
}

// Len returns the number of catalogued modules.
func (c *ModuleCatalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.modules)
}

// Option returns a ModuleOption that loads every catalogued module in order.
func (c *ModuleCatalog) Option() ModuleOption {
	return func(s Collection) error {
		for _, m := range c.Modules() {
			if err := RegisterModule(m)(s); err != nil {
				return err
			}
		}
		return nil
	}
}

func (c *ModuleCatalog) String() string {
	return fmt.Sprintf("ModuleCatalog(%d)", c.Len())
}
