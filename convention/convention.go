// Package convention registers producers by rule instead of one by one.
//
// Go cannot enumerate the types of a package at run time, so a scan runs
// over an explicit Catalog of producers and the interfaces they may be
// exposed as. The scan filters candidates and turns the survivors into
// ordinary registrations, delivered as a scopedi.ModuleOption:
//
//	catalog := convention.NewCatalog()
//	catalog.Add(NewFindEntitiesByNameQuery, NewFindEntitiesByIDQuery)
//	catalog.Interfaces(new(Query[FindCriterion, EntityList]))
//
//	services.AddModules(catalog.Scan().
//	    Where(convention.NameHasSuffix("Query")).
//	    AsClosedTypesOf(convention.FamilyOf[Query[any, any]]()))
package convention

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/junioryono/scopedi"
	"github.com/junioryono/scopedi/internal/reflection"
)

var (
	// ErrNotInterface is returned when a non-interface is added to the catalog's interfaces.
	ErrNotInterface = errors.New("catalog interfaces must be pointers to interface types")

	// ErrNoFamily is returned by AsClosedTypesOf for an empty family.
	ErrNoFamily = errors.New("generic family cannot be empty")
)

// Candidate is one producer known to a Catalog.
type Candidate struct {
	// Name is the name of the produced type without package or type
	// arguments, for example "FindEntitiesByNameQuery".
	Name string

	// Package is the import path of the produced type.
	Package string

	// Producer is the constructor or instance passed to Catalog.Add.
	Producer any

	// Type is the produced type.
	Type reflect.Type

	// Instance is set when Producer is a ready-made value. Instances are
	// always registered as singletons.
	Instance bool
}

// Shape returns the composite identity of the produced type.
func (c Candidate) Shape() Shape {
	return ShapeOf(c.Type)
}

func (c Candidate) String() string {
	return c.Type.String()
}

// Catalog lists producers and candidate interfaces for convention scans.
// It is safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	analyzer   *reflection.Analyzer
	candidates []Candidate
	interfaces []reflect.Type
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{analyzer: reflection.New()}
}

// Add analyzes producers and appends them as candidates. Producers follow
// the same rules as scopedi producers: a constructor function or a
// ready-made instance.
func (c *Catalog) Add(producers ...any) error {
	added := make([]Candidate, 0, len(producers))

	for _, producer := range producers {
		info, err := c.analyzer.Analyze(producer)
		if err != nil {
			return fmt.Errorf("catalog %T: %w", producer, err)
		}

		base := info.Result
		for base.Kind() == reflect.Pointer {
			base = base.Elem()
		}

		name := base.Name()
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}

		added = append(added, Candidate{
			Name:     name,
			Package:  base.PkgPath(),
			Producer: producer,
			Type:     info.Result,
			Instance: !info.IsFunc,
		})
	}

	c.mu.Lock()
	c.candidates = append(c.candidates, added...)
	c.mu.Unlock()

	return nil
}

// Interfaces declares the interfaces candidates may be exposed as. Each
// argument is a pointer to an interface type, as with scopedi.As.
func (c *Catalog) Interfaces(ifaces ...any) error {
	types := make([]reflect.Type, 0, len(ifaces))
	for _, iface := range ifaces {
		t := reflect.TypeOf(iface)
		if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
			return fmt.Errorf("%w, got %T", ErrNotInterface, iface)
		}
		types = append(types, t.Elem())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range types {
		if !containsType(c.interfaces, t) {
			c.interfaces = append(c.interfaces, t)
		}
	}
	return nil
}

// Candidates returns the catalogued producers in the order they were added.
func (c *Catalog) Candidates() []Candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Candidate, len(c.candidates))
	copy(out, c.candidates)
	return out
}

// KnownInterfaces returns the declared interfaces in declaration order.
func (c *Catalog) KnownInterfaces() []reflect.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]reflect.Type, len(c.interfaces))
	copy(out, c.interfaces)
	return out
}

// Scan starts a scan over every candidate. Matching candidates are
// registered as Transient unless WithLifetime says otherwise.
func (c *Catalog) Scan() *Scan {
	return &Scan{catalog: c, lifetime: scopedi.Transient}
}

// Predicate selects candidates.
type Predicate func(Candidate) bool

// NameHasSuffix matches candidates whose type name ends with suffix.
func NameHasSuffix(suffix string) Predicate {
	return func(c Candidate) bool {
		return strings.HasSuffix(c.Name, suffix)
	}
}

// InPackage matches candidates declared in the package with the given import path.
func InPackage(path string) Predicate {
	return func(c Candidate) bool {
		return c.Package == path
	}
}

// Scan is a filtered view over a catalog. A Scan is a builder and must not
// be shared between goroutines while it is being configured.
type Scan struct {
	catalog  *Catalog
	filters  []Predicate
	lifetime scopedi.Lifetime
	options  []scopedi.AddOption
}

// Where adds a filter. Candidates must pass every filter.
func (s *Scan) Where(pred Predicate) *Scan {
	if pred != nil {
		s.filters = append(s.filters, pred)
	}
	return s
}

// WithLifetime sets the lifetime of the emitted registrations.
func (s *Scan) WithLifetime(lifetime scopedi.Lifetime) *Scan {
	s.lifetime = lifetime
	return s
}

// WithOptions appends options to every emitted registration.
func (s *Scan) WithOptions(opts ...scopedi.AddOption) *Scan {
	s.options = append(s.options, opts...)
	return s
}

// Matches returns the candidates that pass every filter.
func (s *Scan) Matches() []Candidate {
	var out []Candidate
	for _, c := range s.catalog.Candidates() {
		if s.accepts(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Scan) accepts(c Candidate) bool {
	for _, f := range s.filters {
		if !f(c) {
			return false
		}
	}
	return true
}

// AsClosedTypesOf registers each matching candidate under every known
// interface that is an instantiation of family and that the candidate
// implements. Candidates closing no such interface are skipped.
func (s *Scan) AsClosedTypesOf(family string) scopedi.ModuleOption {
	if family == "" {
		return func(scopedi.Collection) error { return ErrNoFamily }
	}

	return s.emit("closed types of "+family, func(iface reflect.Type) bool {
		shape := ShapeOf(iface)
		return shape.IsGeneric() && shape.Family == family
	})
}

// AsImplementedInterfaces registers each matching candidate under every
// known interface it implements. Candidates implementing none are skipped.
func (s *Scan) AsImplementedInterfaces() scopedi.ModuleOption {
	return s.emit("implemented interfaces", func(reflect.Type) bool { return true })
}

func (s *Scan) emit(name string, include func(reflect.Type) bool) scopedi.ModuleOption {
	return scopedi.NewModule("convention: "+name, func(c scopedi.Collection) error {
		ifaces := s.catalog.KnownInterfaces()

		for _, candidate := range s.Matches() {
			var as []reflect.Type
			for _, iface := range ifaces {
				if include(iface) && candidate.Type.Implements(iface) {
					as = append(as, iface)
				}
			}
			if len(as) == 0 {
				continue
			}

			opts := make([]scopedi.AddOption, 0, len(s.options)+1)
			opts = append(opts, s.options...)
			opts = append(opts, scopedi.AsType(as...))

			register := c.Register
			if candidate.Instance {
				register = func(_ scopedi.Lifetime, instance any, opts ...scopedi.AddOption) error {
					return c.AddInstance(instance, opts...)
				}
			}

			if err := register(s.lifetime, candidate.Producer, opts...); err != nil {
				return fmt.Errorf("register %s: %w", candidate, err)
			}
		}

		return nil
	})
}

func containsType(types []reflect.Type, t reflect.Type) bool {
	for _, existing := range types {
		if existing == t {
			return true
		}
	}
	return false
}
