package scopedi

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/junioryono/scopedi/internal/reflection"
)

var (
	contextType = reflect.TypeOf((*Context)(nil)).Elem()
	scopeType   = reflect.TypeOf((*Scope)(nil)).Elem()
)

// Registration binds one or more capabilities to a producer, a lifetime
// and an ownership policy. Registrations are immutable once the
// collection is built.
type Registration struct {
	// ID uniquely identifies the registration.
	ID string

	// ServiceTypes are the capabilities this registration satisfies, in the
	// order they were declared.
	ServiceTypes []reflect.Type

	// ImplementationType is the concrete type the producer creates.
	ImplementationType reflect.Type

	// Lifetime determines instance sharing.
	Lifetime Lifetime

	// Ownership determines whether the container disposes instances.
	Ownership Ownership

	// MatchingTag restricts a Scoped registration to scopes carrying the tag.
	MatchingTag any

	// PreserveDefaults keeps earlier registrations as the default for
	// every capability this registration satisfies.
	PreserveDefaults bool

	producer   reflect.Value
	info       *reflection.ConstructorInfo
	instance   any
	isInstance bool
	parameters []ParameterRule

	// dependencies is filled at build time from the frozen registry.
	dependencies []reflect.Type
}

// RegistrationSummary is a serializable view of a Registration.
type RegistrationSummary struct {
	ID             string    `json:"id" yaml:"id"`
	Services       []string  `json:"services" yaml:"services"`
	Implementation string    `json:"implementation" yaml:"implementation"`
	Lifetime       Lifetime  `json:"lifetime" yaml:"lifetime"`
	Ownership      Ownership `json:"ownership" yaml:"ownership"`
	MatchingTag    string    `json:"matchingTag,omitempty" yaml:"matchingTag,omitempty"`
	Instance       bool      `json:"instance,omitempty" yaml:"instance,omitempty"`
	Parameters     int       `json:"parameterRules,omitempty" yaml:"parameterRules,omitempty"`
	Dependencies   []string  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

func newRegistration(producer any, lifetime Lifetime, analyzer *reflection.Analyzer, opts ...AddOption) (*Registration, error) {
	if !lifetime.IsValid() {
		return nil, RegistrationError{Operation: "register", Cause: LifetimeError{Value: lifetime}}
	}

	info, err := analyzer.Analyze(producer)
	if err != nil {
		return nil, RegistrationError{ServiceType: reflect.TypeOf(producer), Operation: "analyze", Cause: err}
	}

	options := &addOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyAddOption(options)
		}
	}

	reg := &Registration{
		ID:                 uuid.NewString(),
		ImplementationType: info.Result,
		Lifetime:           lifetime,
		Ownership:          options.ownership,
		MatchingTag:        options.matchingTag,
		PreserveDefaults:   options.preserveDefaults,
		producer:           reflect.ValueOf(producer),
		info:               info,
		isInstance:         !info.IsFunc,
		parameters:         options.parameters,
	}

	if reg.isInstance {
		reg.instance = producer
		if lifetime != Singleton {
			return nil, RegistrationError{
				ServiceType: info.Result,
				Operation:   "register",
				Cause:       fmt.Errorf("instances can only be registered as %s, got %s", Singleton, lifetime),
			}
		}
	}

	if options.hasMatchingTag {
		if options.matchingTag == nil || !reflect.TypeOf(options.matchingTag).Comparable() {
			return nil, RegistrationError{ServiceType: info.Result, Operation: "register", Cause: ErrInvalidTag}
		}
		if lifetime != Scoped {
			return nil, RegistrationError{
				ServiceType: info.Result,
				Operation:   "register",
				Cause:       fmt.Errorf("matching scope tags require %s lifetime, got %s", Scoped, lifetime),
			}
		}
	}

	if err := reg.bindServices(options); err != nil {
		return nil, err
	}

	return reg, nil
}

// bindServices computes the capability list from As/AsSelf options.
func (r *Registration) bindServices(options *addOptions) error {
	if len(options.as) == 0 {
		r.ServiceTypes = []reflect.Type{r.ImplementationType}
		return nil
	}

	seen := make(map[reflect.Type]bool)
	add := func(t reflect.Type) {
		if !seen[t] {
			seen[t] = true
			r.ServiceTypes = append(r.ServiceTypes, t)
		}
	}

	if options.asSelf {
		add(r.ImplementationType)
	}

	for _, t := range options.as {
		if t == nil {
			return RegistrationError{ServiceType: r.ImplementationType, Operation: "as", Cause: ErrInvalidAs}
		}

		if !r.ImplementationType.AssignableTo(t) {
			return RegistrationError{
				ServiceType: r.ImplementationType,
				Operation:   "as",
				Cause:       fmt.Errorf("%w: %s is not assignable to %s", ErrNotImplemented, formatType(r.ImplementationType), formatType(t)),
			}
		}

		add(t)
	}

	return nil
}

// IsInstance reports whether the registration holds a pre-built instance.
func (r *Registration) IsInstance() bool {
	return r.isInstance
}

// Parameters returns the constructor parameters of the producer.
// Instance registrations have none.
func (r *Registration) Parameters() []Parameter {
	params := make([]Parameter, len(r.info.Parameters))
	for i, p := range r.info.Parameters {
		params[i] = Parameter{Index: i, Type: p.Type, Implementation: r.ImplementationType}
	}
	return params
}

// Services implements graph.Provider.
func (r *Registration) Services() []reflect.Type {
	return r.ServiceTypes
}

// Dependencies implements graph.Provider. Only dependencies that are
// resolved from the registry are reported; parameters covered by a rule
// and built-in types are excluded.
func (r *Registration) Dependencies() []reflect.Type {
	return r.dependencies
}

// LifetimeName implements graph.Provider.
func (r *Registration) LifetimeName() string {
	return r.Lifetime.String()
}

// matchRule returns the first parameter rule whose predicate accepts p.
func (r *Registration) matchRule(p Parameter) (ParameterRule, bool) {
	for _, rule := range r.parameters {
		if rule.Match != nil && rule.Match(p) {
			return rule, true
		}
	}
	return ParameterRule{}, false
}

// Summary returns a serializable view of the registration.
func (r *Registration) Summary() RegistrationSummary {
	s := RegistrationSummary{
		ID:             r.ID,
		Implementation: r.ImplementationType.String(),
		Lifetime:       r.Lifetime,
		Ownership:      r.Ownership,
		Instance:       r.isInstance,
		Parameters:     len(r.parameters),
	}

	for _, t := range r.ServiceTypes {
		s.Services = append(s.Services, t.String())
	}

	for _, t := range r.dependencies {
		s.Dependencies = append(s.Dependencies, t.String())
	}

	if r.MatchingTag != nil {
		s.MatchingTag = fmt.Sprint(r.MatchingTag)
	}

	return s
}

func (r *Registration) String() string {
	return fmt.Sprintf("%s as %v (%s)", formatType(r.ImplementationType), r.ServiceTypes, r.Lifetime)
}
