package scopedi

import (
	"reflect"
	"sync"

	"github.com/junioryono/scopedi/internal/reflection"
)

// Collection holds the registrations that define the services available
// from a Provider.
//
// Collection follows a builder pattern: registrations are added, then the
// collection is built into a Provider. Once built the collection is frozen
// and further registrations fail with ErrCollectionBuilt.
//
// Collection is safe for concurrent registration, although configuring it
// from a single goroutine is the common case.
//
// Example:
//
//	collection := scopedi.NewCollection()
//	collection.AddSingleton(NewLogger)
//	collection.AddScoped(NewDatabase)
//
//	provider, err := collection.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
type Collection interface {
	// Build creates a Provider from the registrations using default options.
	Build() (Provider, error)

	// BuildWithOptions creates a Provider with custom options.
	BuildWithOptions(options *ProviderOptions) (Provider, error)

	// AddModules applies one or more module configurations to the collection.
	AddModules(modules ...ModuleOption) error

	// AddSingleton registers a producer whose instance is shared by the
	// whole container.
	AddSingleton(producer any, opts ...AddOption) error

	// AddScoped registers a producer whose instance is shared within a scope.
	AddScoped(producer any, opts ...AddOption) error

	// AddTransient registers a producer invoked on every resolution.
	AddTransient(producer any, opts ...AddOption) error

	// AddInstance registers a pre-built instance as a singleton.
	AddInstance(instance any, opts ...AddOption) error

	// Register adds a registration with an explicit lifetime.
	Register(lifetime Lifetime, producer any, opts ...AddOption) error

	// Contains reports whether any registration satisfies serviceType.
	Contains(serviceType reflect.Type) bool

	// Registrations returns the registrations for serviceType in order.
	Registrations(serviceType reflect.Type) []*Registration

	// ToSlice returns all registrations in registration order.
	ToSlice() []*Registration

	// Count returns the number of registrations.
	Count() int
}

type collection struct {
	mu sync.RWMutex

	// registrations in the order they were added
	registrations []*Registration

	// services indexes registrations by capability
	services map[reflect.Type][]*Registration

	analyzer *reflection.Analyzer
	built    bool
}

// NewCollection creates a new empty Collection instance.
//
// Example:
//
//	collection := scopedi.NewCollection()
//	collection.AddSingleton(NewLogger)
//	provider, err := collection.Build()
func NewCollection() Collection {
	return &collection{
		services: make(map[reflect.Type][]*Registration),
		analyzer: reflection.New(),
	}
}

// Build creates a Provider from the registrations using default options.
func (c *collection) Build() (Provider, error) {
	return c.BuildWithOptions(nil)
}

// BuildWithOptions validates the registrations, freezes the collection and
// returns the root scope of the new container.
func (c *collection) BuildWithOptions(options *ProviderOptions) (Provider, error) {
	c.mu.Lock()
	if c.built {
		c.mu.Unlock()
		return nil, BuildError{Phase: "build", Details: "collection can only be built once", Cause: ErrCollectionBuilt}
	}
	c.built = true
	registrations := make([]*Registration, len(c.registrations))
	copy(registrations, c.registrations)
	c.mu.Unlock()

	return newProvider(registrations, options)
}

// AddModules applies one or more module configurations to the collection.
func (c *collection) AddModules(modules ...ModuleOption) error {
	for _, module := range modules {
		if module == nil {
			continue
		}

		if err := module(c); err != nil {
			return err
		}
	}

	return nil
}

// AddSingleton adds a singleton registration to the collection.
func (c *collection) AddSingleton(producer any, opts ...AddOption) error {
	return c.Register(Singleton, producer, opts...)
}

// AddScoped adds a scoped registration to the collection.
func (c *collection) AddScoped(producer any, opts ...AddOption) error {
	return c.Register(Scoped, producer, opts...)
}

// AddTransient adds a transient registration to the collection.
func (c *collection) AddTransient(producer any, opts ...AddOption) error {
	return c.Register(Transient, producer, opts...)
}

// AddInstance adds a pre-built instance. Functions are registered as
// values rather than invoked.
func (c *collection) AddInstance(instance any, opts ...AddOption) error {
	if instance == nil {
		return RegistrationError{Operation: "register", Cause: ErrNilInstance}
	}

	if t := reflect.TypeOf(instance); t.Kind() == reflect.Func {
		value := reflect.ValueOf(instance)
		producer := reflect.MakeFunc(reflect.FuncOf(nil, []reflect.Type{t}, false), func([]reflect.Value) []reflect.Value {
			return []reflect.Value{value}
		})
		return c.Register(Singleton, producer.Interface(), opts...)
	}

	return c.Register(Singleton, instance, opts...)
}

// Register adds a registration with an explicit lifetime.
func (c *collection) Register(lifetime Lifetime, producer any, opts ...AddOption) error {
	reg, err := newRegistration(producer, lifetime, c.analyzer, opts...)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built {
		return RegistrationError{ServiceType: reg.ImplementationType, Operation: "register", Cause: ErrCollectionBuilt}
	}

	c.registrations = append(c.registrations, reg)
	for _, t := range reg.ServiceTypes {
		c.services[t] = append(c.services[t], reg)
	}

	return nil
}

// Contains checks if a capability is registered in the collection.
func (c *collection) Contains(serviceType reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.services[serviceType]) > 0
}

// Registrations returns a copy of the registrations for serviceType.
func (c *collection) Registrations(serviceType reflect.Type) []*Registration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	regs := c.services[serviceType]
	if len(regs) == 0 {
		return nil
	}

	out := make([]*Registration, len(regs))
	copy(out, regs)
	return out
}

// ToSlice returns a copy of all registrations in registration order.
func (c *collection) ToSlice() []*Registration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Registration, len(c.registrations))
	copy(out, c.registrations)
	return out
}

// Count returns the number of registrations in the collection.
func (c *collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.registrations)
}
