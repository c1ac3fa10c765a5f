package scopedi

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/junioryono/scopedi/internal/graph"
)

// resolution is the chain of registrations under construction for one
// top-level request. It is immutable; push returns an extended copy, so a
// Context captured by a producer stays valid after the producer returns.
type resolution struct {
	regs  []*Registration
	types []reflect.Type
	owner *builder
}

func (r resolution) push(reg *Registration, t reflect.Type) resolution {
	return resolution{
		regs:  append(r.regs[:len(r.regs):len(r.regs)], reg),
		types: append(r.types[:len(r.types):len(r.types)], t),
		owner: r.owner,
	}
}

func (r resolution) indexOf(reg *Registration) int {
	for i, existing := range r.regs {
		if existing == reg {
			return i
		}
	}
	return -1
}

// chain returns a copy of the requested types, outermost first.
func (r resolution) chain() []reflect.Type {
	if len(r.types) == 0 {
		return nil
	}
	out := make([]reflect.Type, len(r.types))
	copy(out, r.types)
	return out
}

// resolveContext is the Context handed to producers and value providers.
type resolveContext struct {
	scope *scope
	res   resolution
}

func (c *resolveContext) Resolve(serviceType reflect.Type) (any, error) {
	if serviceType == nil {
		return nil, ErrServiceTypeNil
	}
	return c.scope.resolve(c.res, serviceType)
}

func (c *resolveContext) ResolveOptional(serviceType reflect.Type) (any, bool, error) {
	if serviceType == nil {
		return nil, false, ErrServiceTypeNil
	}

	if !c.scope.registry.canResolve(serviceType) {
		return nil, false, nil
	}

	instance, err := c.scope.resolve(c.res, serviceType)
	if err != nil {
		return nil, false, err
	}
	return instance, true, nil
}

func (c *resolveContext) ResolveAll(serviceType reflect.Type) ([]any, error) {
	if serviceType == nil {
		return nil, ErrServiceTypeNil
	}
	return c.scope.resolveAll(c.res, serviceType)
}

func (c *resolveContext) Scope() Scope {
	return c.scope
}

// resolve returns the default instance for t.
func (s *scope) resolve(res resolution, t reflect.Type) (any, error) {
	if s.disposed.Load() {
		return nil, s.disposedErr()
	}

	switch t {
	case contextType:
		return &resolveContext{scope: s, res: res}, nil
	case scopeType:
		return s, nil
	}

	reg := s.registry.defaults[t]
	if reg == nil {
		if t.Kind() == reflect.Slice {
			v, err := s.resolveSlice(res, t.Elem())
			if err != nil {
				return nil, err
			}
			return v.Interface(), nil
		}

		return nil, s.notFound(res, t)
	}

	return s.resolveRegistration(res, t, reg)
}

func (s *scope) resolveAll(res resolution, t reflect.Type) ([]any, error) {
	if s.disposed.Load() {
		return nil, s.disposedErr()
	}

	regs := s.registry.services[t]
	out := make([]any, 0, len(regs))
	for _, reg := range regs {
		instance, err := s.resolveRegistration(res, t, reg)
		if err != nil {
			return nil, err
		}
		out = append(out, instance)
	}

	return out, nil
}

// resolveSlice builds a typed slice holding one instance per registration
// of elem.
func (s *scope) resolveSlice(res resolution, elem reflect.Type) (reflect.Value, error) {
	regs := s.registry.services[elem]
	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, len(regs))

	for _, reg := range regs {
		instance, err := s.resolveRegistration(res, elem, reg)
		if err != nil {
			return reflect.Value{}, err
		}

		v, err := coerce(Parameter{Type: elem, Implementation: reg.ImplementationType}, instance)
		if err != nil {
			return reflect.Value{}, ResolutionError{ServiceType: elem, Chain: res.chain(), Cause: err}
		}
		out = reflect.Append(out, v)
	}

	return out, nil
}

// resolveRegistration applies the lifetime of reg and returns its instance
// as seen from s.
func (s *scope) resolveRegistration(res resolution, t reflect.Type, reg *Registration) (any, error) {
	// Must run before any slot lock is taken, or a cycle through a shared
	// registration would block on its own slot.
	if idx := res.indexOf(reg); idx >= 0 {
		path := make([]graph.NodeKey, 0, len(res.types)-idx)
		for _, pt := range res.types[idx:] {
			path = append(path, graph.NodeKey{Type: pt})
		}
		return nil, ResolutionError{
			ServiceType: t,
			Chain:       res.chain(),
			Cause:       CircularDependencyError{Node: graph.NodeKey{Type: t}, Path: path},
		}
	}

	if reg.isInstance {
		return reg.instance, nil
	}

	if res.owner == nil {
		res.owner = &builder{}
	}

	switch reg.Lifetime {
	case Singleton:
		return s.root.shared(res, t, reg)

	case Scoped:
		owner := s
		if reg.MatchingTag != nil {
			owner = s.nearestTagged(reg.MatchingTag)
			if owner == nil {
				return nil, ScopeMismatchError{
					ServiceType: t,
					Tag:         reg.MatchingTag,
					ScopeID:     s.id,
					Chain:       res.chain(),
				}
			}
		}
		return owner.shared(res, t, reg)

	default:
		return s.construct(res, t, reg)
	}
}

// shared returns the instance cached for reg in s, building it once.
func (s *scope) shared(res resolution, t reflect.Type, reg *Registration) (any, error) {
	sl, err := s.slot(reg)
	if err != nil {
		return nil, err
	}

	if err := s.root.acquire(res, t, sl); err != nil {
		return nil, err
	}
	defer s.root.release(sl)

	if sl.ready {
		return sl.value, nil
	}

	instance, err := s.construct(res, t, reg)
	if err != nil {
		return nil, err
	}

	sl.value = instance
	sl.ready = true
	return instance, nil
}

// acquire locks sl for res.owner. Before blocking it follows the chain of
// holders and the slots they wait on; reaching res.owner again means the
// two resolutions wait on each other through a cycle, which is reported
// instead of blocking forever. Called on the root scope.
func (s *scope) acquire(res resolution, t reflect.Type, sl *instanceSlot) error {
	s.waitMu.Lock()
	if sl.mu.TryLock() {
		sl.holder = res.owner
		sl.service = t
		s.waitMu.Unlock()
		return nil
	}

	path := []graph.NodeKey{{Type: t}}
	for h := sl.holder; h != nil; {
		if h == res.owner {
			s.waitMu.Unlock()
			return ResolutionError{
				ServiceType: t,
				Chain:       res.chain(),
				Cause:       CircularDependencyError{Node: graph.NodeKey{Type: t}, Path: path},
			}
		}
		if h.waiting == nil {
			break
		}
		path = append(path, graph.NodeKey{Type: h.waiting.service})
		h = h.waiting.holder
	}

	res.owner.waiting = sl
	s.waitMu.Unlock()

	sl.mu.Lock()

	s.waitMu.Lock()
	res.owner.waiting = nil
	sl.holder = res.owner
	sl.service = t
	s.waitMu.Unlock()
	return nil
}

func (s *scope) release(sl *instanceSlot) {
	s.waitMu.Lock()
	sl.holder = nil
	s.waitMu.Unlock()
	sl.mu.Unlock()
}

// construct invokes the producer of reg with arguments resolved from s and
// takes ownership of the result.
func (s *scope) construct(res resolution, t reflect.Type, reg *Registration) (any, error) {
	outer := res
	res = res.push(reg, t)

	args := make([]reflect.Value, len(reg.info.Parameters))
	for i := range reg.info.Parameters {
		arg, err := s.argument(res, reg, i)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	instance, err := s.invoke(reg, args)
	if err != nil {
		switch err.(type) {
		case ResolutionError, ScopeMismatchError:
			return nil, err
		}
		return nil, ResolutionError{ServiceType: t, Chain: outer.chain(), Cause: err}
	}

	if reg.Ownership == OwnedByContainer {
		if err := s.track(instance); err != nil {
			return nil, ResolutionError{ServiceType: t, Chain: outer.chain(), Cause: err}
		}
	}

	return instance, nil
}

// argument produces the value for parameter i of reg. Rules come first,
// then built-in types, then registrations, then implicit collections.
func (s *scope) argument(res resolution, reg *Registration, i int) (reflect.Value, error) {
	info := reg.info.Parameters[i]
	param := Parameter{Index: i, Type: info.Type, Implementation: reg.ImplementationType}

	if rule, ok := reg.matchRule(param); ok {
		var value any
		if rule.Provide != nil {
			v, err := rule.Provide(param, &resolveContext{scope: s, res: res})
			if err != nil {
				switch err.(type) {
				case ResolutionError, ScopeMismatchError:
					return reflect.Value{}, err
				}
				return reflect.Value{}, s.parameterError(res, param, err)
			}
			value = v
		}

		arg, err := coerce(param, value)
		if err != nil {
			return reflect.Value{}, s.parameterError(res, param, err)
		}
		return arg, nil
	}

	switch info.Type {
	case contextType:
		return reflect.ValueOf(&resolveContext{scope: s, res: res}), nil
	case scopeType:
		return reflect.ValueOf(s), nil
	}

	if s.registry.has(info.Type) {
		instance, err := s.resolve(res, info.Type)
		if err != nil {
			return reflect.Value{}, err
		}

		arg, err := coerce(param, instance)
		if err != nil {
			return reflect.Value{}, s.parameterError(res, param, err)
		}
		return arg, nil
	}

	if info.IsSlice {
		return s.resolveSlice(res, info.ElemType)
	}

	return reflect.Value{}, s.notFound(res, info.Type)
}

// invoke calls the producer, converting panics and error returns.
func (s *scope) invoke(reg *Registration, args []reflect.Value) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = ConstructorPanicError{Constructor: reg.info.Type, Panic: r, Stack: debug.Stack()}
		}
	}()

	instance, err = reg.info.Invoke(reg.producer, args)
	if err != nil {
		switch err.(type) {
		case ResolutionError, ScopeMismatchError:
			return nil, err
		}

		params := make([]reflect.Type, len(reg.info.Parameters))
		for i, p := range reg.info.Parameters {
			params[i] = p.Type
		}
		return nil, ConstructorInvocationError{Constructor: reg.info.Type, Parameters: params, Cause: err}
	}

	if instance == nil {
		return nil, ErrNilInstance
	}

	return instance, nil
}

func (s *scope) notFound(res resolution, t reflect.Type) error {
	return ResolutionError{
		ServiceType: t,
		Chain:       res.chain(),
		Cause:       ErrServiceNotFound,
		Available:   s.registry.order,
	}
}

func (s *scope) parameterError(res resolution, param Parameter, err error) error {
	// res already includes the registration being built; report the
	// failure against it.
	chain := res.chain()
	service := chain[len(chain)-1]
	return ResolutionError{
		ServiceType: service,
		Chain:       chain[:len(chain)-1],
		Cause:       fmt.Errorf("parameter %d (%s): %w", param.Index, formatType(param.Type), err),
	}
}
