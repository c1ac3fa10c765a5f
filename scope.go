package scopedi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Resolver resolves services by type.
type Resolver interface {
	// Resolve returns the default instance for serviceType.
	Resolve(serviceType reflect.Type) (any, error)

	// ResolveOptional behaves like Resolve, but reports false instead of
	// failing when serviceType itself is not registered. Failures of a
	// registered service's own dependencies are returned as errors.
	ResolveOptional(serviceType reflect.Type) (any, bool, error)

	// ResolveAll returns one instance from every registration of
	// serviceType, in registration order. The result is empty when
	// nothing is registered.
	ResolveAll(serviceType reflect.Type) ([]any, error)
}

// Scope defines a disposable resolution scope.
// Scopes control the lifetime of scoped services and own the disposable
// instances created within them.
//
// Scopes form a tree rooted at the Provider. Closing a scope closes its
// child scopes first, then disposes its own instances in reverse creation
// order. Closing is idempotent.
//
// Example:
//
//	scope, err := provider.BeginScope(ctx)
//	if err != nil {
//	    return err
//	}
//	defer scope.Close()
//
//	service, err := scopedi.Resolve[MyService](scope)
type Scope interface {
	Disposable
	Resolver

	// ID returns the unique ID of this scope.
	ID() string

	// Tag returns the tag given to BeginTaggedScope, or nil.
	Tag() any

	// Context returns the context associated with this scope.
	Context() context.Context

	// IsRootScope returns true if this scope is the provider's root scope.
	IsRootScope() bool

	// Parent returns the parent scope, or nil for the root scope.
	Parent() Scope

	// IsDisposed reports whether the scope has been closed.
	IsDisposed() bool

	// IsRegistered reports whether serviceType can be resolved.
	IsRegistered(serviceType reflect.Type) bool

	// Services returns every registered service type in first
	// registration order.
	Services() []reflect.Type

	// BeginScope creates a child scope. The child is closed when ctx is
	// cancelled or when this scope closes, whichever happens first.
	BeginScope(ctx context.Context) (Scope, error)

	// BeginTaggedScope creates a child scope carrying tag. Registrations
	// made with MatchingScope(tag) share one instance per tagged scope.
	BeginTaggedScope(ctx context.Context, tag any) (Scope, error)
}

// Context is handed to producers and value providers that need to resolve
// further services while an instance is being built. Resolutions made
// through a Context take part in circular dependency detection.
type Context interface {
	Resolver

	// Scope returns the scope that owns the instance being built.
	Scope() Scope
}

// instanceSlot holds one shared instance. The slot mutex serializes
// construction so at most one instance is built per slot. holder and
// service are guarded by the root scope's waitMu.
type instanceSlot struct {
	mu    sync.Mutex
	ready bool
	value any

	holder  *builder
	service reflect.Type
}

// builder identifies one top-level resolution across every slot it
// holds. waiting is the slot it is blocked on, guarded by waitMu.
type builder struct {
	waiting *instanceSlot
}

type scope struct {
	id       string
	tag      any
	ctx      context.Context
	stop     func() bool
	registry *registry
	options  *ProviderOptions
	logger   *slog.Logger

	parent *scope
	root   *scope

	mu          sync.Mutex
	slots       map[*Registration]*instanceSlot
	waitMu      sync.Mutex
	children    []*scope
	disposables []disposeFunc
	tracked     map[any]struct{}

	disposed atomic.Bool
	done     chan struct{}
}

func newScope(reg *registry, parent *scope, ctx context.Context, tag any, options *ProviderOptions, logger *slog.Logger) *scope {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &scope{
		id:       uuid.NewString(),
		tag:      tag,
		registry: reg,
		options:  options,
		logger:   logger,
		parent:   parent,
		slots:    make(map[*Registration]*instanceSlot),
		tracked:  make(map[any]struct{}),
		done:     make(chan struct{}),
	}

	s.root = s
	if parent != nil {
		s.root = parent.root
	}

	s.ctx = contextWithScope(ctx, s)

	if ctx.Done() != nil {
		s.stop = context.AfterFunc(ctx, func() {
			if err := s.Close(); err != nil {
				s.logger.Warn("scope auto-close failed", "scope", s.id, "error", err)
			}
		})
	}

	return s
}

// ID returns the unique identifier of the scope.
func (s *scope) ID() string {
	return s.id
}

// Tag returns the scope tag, or nil for untagged scopes.
func (s *scope) Tag() any {
	return s.tag
}

// Context returns the scope's context. The scope can be recovered from it
// with ScopeFromContext.
func (s *scope) Context() context.Context {
	return s.ctx
}

// IsRootScope reports whether this is the provider's root scope.
func (s *scope) IsRootScope() bool {
	return s.parent == nil
}

// Parent returns the parent scope, or nil for the root scope.
func (s *scope) Parent() Scope {
	if s.parent == nil {
		return nil
	}
	return s.parent
}

// IsDisposed reports whether the scope has been closed.
func (s *scope) IsDisposed() bool {
	return s.disposed.Load()
}

// IsRegistered reports whether serviceType can be resolved from this scope.
// Slice types always resolve, possibly to an empty slice.
func (s *scope) IsRegistered(serviceType reflect.Type) bool {
	return s.registry.canResolve(serviceType)
}

// Services returns every registered service type in first registration order.
func (s *scope) Services() []reflect.Type {
	out := make([]reflect.Type, len(s.registry.order))
	copy(out, s.registry.order)
	return out
}

// BeginScope creates an untagged child scope.
func (s *scope) BeginScope(ctx context.Context) (Scope, error) {
	return s.beginScope(ctx, nil)
}

// BeginTaggedScope creates a child scope carrying tag.
func (s *scope) BeginTaggedScope(ctx context.Context, tag any) (Scope, error) {
	if tag == nil || !reflect.TypeOf(tag).Comparable() {
		return nil, ErrInvalidTag
	}
	return s.beginScope(ctx, tag)
}

func (s *scope) beginScope(ctx context.Context, tag any) (Scope, error) {
	if ctx == nil {
		ctx = context.WithoutCancel(s.ctx)
	}

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return nil, s.disposedErr()
	}

	child := newScope(s.registry, s, ctx, tag, s.options, s.logger)
	s.children = append(s.children, child)
	s.mu.Unlock()

	s.logger.Debug("scope created", "scope", child.id, "parent", s.id, "tag", tag)

	return child, nil
}

// Close closes child scopes, then disposes container-owned instances in
// reverse creation order. Calling Close more than once is a no-op; a
// concurrent caller waits until the first close has finished.
func (s *scope) Close() error {
	if !s.disposed.CompareAndSwap(false, true) {
		<-s.done
		return nil
	}
	defer close(s.done)

	if s.stop != nil {
		s.stop()
	}

	s.mu.Lock()
	children := s.children
	s.children = nil
	s.mu.Unlock()

	var errs []error

	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("scope %s: %w", children[i].id, err))
		}
	}

	s.mu.Lock()
	disposables := s.disposables
	s.disposables = nil
	s.slots = nil
	s.tracked = nil
	s.mu.Unlock()

	ctx := context.WithoutCancel(s.ctx)
	for i := len(disposables) - 1; i >= 0; i-- {
		if err := disposables[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.logger.Debug("scope closed", "scope", s.id, "disposed", len(disposables), "errors", len(errs))

	if len(errs) > 0 {
		kind := "scope"
		if s.parent == nil {
			kind = "provider"
		}
		return DisposalError{Context: kind, Errors: errs}
	}

	return nil
}

func (s *scope) removeChild(child *scope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

func (s *scope) disposedErr() error {
	if s.parent == nil {
		return ErrProviderDisposed
	}
	return ErrScopeDisposed
}

// slot returns the instance slot for reg, creating it on first use.
func (s *scope) slot(reg *Registration) (*instanceSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed.Load() {
		return nil, s.disposedErr()
	}

	sl, ok := s.slots[reg]
	if !ok {
		sl = &instanceSlot{}
		s.slots[reg] = sl
	}
	return sl, nil
}

// track records a container-owned instance for disposal. An instance that
// arrives after the scope closed is disposed immediately.
func (s *scope) track(instance any) error {
	dispose := disposerFor(instance)
	if dispose == nil {
		return nil
	}

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return errors.Join(s.disposedErr(), dispose(context.WithoutCancel(s.ctx)))
	}

	if key, ok := identityKey(instance); ok {
		if _, seen := s.tracked[key]; seen {
			s.mu.Unlock()
			return nil
		}
		s.tracked[key] = struct{}{}
	}

	s.disposables = append(s.disposables, dispose)
	s.mu.Unlock()

	return nil
}

// nearestTagged finds the closest scope, starting with s, carrying tag.
func (s *scope) nearestTagged(tag any) *scope {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.tag != nil && sc.tag == tag {
			return sc
		}
	}
	return nil
}

// Resolve returns the default instance for serviceType.
func (s *scope) Resolve(serviceType reflect.Type) (any, error) {
	if serviceType == nil {
		return nil, ErrServiceTypeNil
	}

	start := time.Now()
	instance, err := s.resolve(resolution{}, serviceType)
	s.report(serviceType, instance, err, start)
	return instance, err
}

// ResolveOptional returns false when serviceType is not registered.
func (s *scope) ResolveOptional(serviceType reflect.Type) (any, bool, error) {
	if serviceType == nil {
		return nil, false, ErrServiceTypeNil
	}

	if s.disposed.Load() {
		return nil, false, s.disposedErr()
	}

	if !s.registry.canResolve(serviceType) {
		return nil, false, nil
	}

	instance, err := s.Resolve(serviceType)
	if err != nil {
		return nil, false, err
	}
	return instance, true, nil
}

// ResolveAll returns an instance from every registration of serviceType.
func (s *scope) ResolveAll(serviceType reflect.Type) ([]any, error) {
	if serviceType == nil {
		return nil, ErrServiceTypeNil
	}

	start := time.Now()
	all, err := s.resolveAll(resolution{}, serviceType)
	s.report(reflect.SliceOf(serviceType), all, err, start)
	return all, err
}

func (s *scope) report(serviceType reflect.Type, instance any, err error, start time.Time) {
	if err != nil {
		s.logger.Debug("resolution failed", "service", serviceType.String(), "scope", s.id, "error", err)
		if s.options.OnServiceError != nil {
			s.options.OnServiceError(serviceType, err)
		}
		return
	}

	if s.options.OnServiceResolved != nil {
		s.options.OnServiceResolved(serviceType, instance, time.Since(start))
	}
}

// scopeContextKey is the key for storing the current scope in context.
type scopeContextKey struct{}

// contextWithScope returns a context with the current scope.
func contextWithScope(ctx context.Context, s *scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// ScopeFromContext gets the scope from a context returned by Scope.Context.
func ScopeFromContext(ctx context.Context) (Scope, error) {
	if ctx == nil {
		return nil, ErrScopeNotInContext
	}

	s, ok := ctx.Value(scopeContextKey{}).(*scope)
	if !ok || s == nil {
		return nil, ErrScopeNotInContext
	}

	if s.IsDisposed() {
		return nil, s.disposedErr()
	}

	return s, nil
}
