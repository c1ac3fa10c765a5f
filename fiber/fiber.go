// Package fiber opens a scopedi request scope for every Fiber request.
//
// Registrations made with scopedi.MatchingScope(fiber.RequestTag) get one
// instance per request, shared by everything resolved while serving it,
// and are disposed after the remaining handlers have run. The scope is
// kept in the request locals and in the user context.
//
//	provider, _ := collection.Build()
//
//	app := fiber.New()
//	app.Use(scopedifiber.ScopeMiddleware(provider))
//
//	app.Post("/login", scopedifiber.Handle(AuthController.Login))
//	app.Get("/users/:id", scopedifiber.Handle(UserController.GetByID))
package fiber

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/junioryono/scopedi"
)

// RequestTag tags the scopes opened by ScopeMiddleware unless WithTag says
// otherwise.
const RequestTag = "request"

const scopeKey = "scopedi_scope"

// RequestHook runs inside a freshly opened request scope before the next
// handler. A non-nil error stops the request.
type RequestHook func(scopedi.Scope, *fiber.Ctx) error

// Config controls ScopeMiddleware.
type Config struct {
	// Tag is attached to every request scope.
	Tag any

	// ErrorHandler produces the handler result when the scope cannot be
	// opened or a hook fails.
	ErrorHandler func(*fiber.Ctx, error) error

	// CloseErrorHandler receives disposal failures of the request scope.
	CloseErrorHandler func(error)

	// Middlewares run in order after the scope is opened.
	Middlewares []RequestHook
}

// Option changes a Config.
type Option func(*Config)

// WithTag replaces RequestTag.
func WithTag(tag any) Option {
	return func(c *Config) { c.Tag = tag }
}

// WithErrorHandler replaces the default JSON 500 response.
func WithErrorHandler(h func(*fiber.Ctx, error) error) Option {
	return func(c *Config) { c.ErrorHandler = h }
}

// WithCloseErrorHandler replaces logging of disposal failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) { c.CloseErrorHandler = h }
}

// WithMiddleware appends a RequestHook.
func WithMiddleware(mw func(scopedi.Scope, *fiber.Ctx) error) Option {
	return func(c *Config) { c.Middlewares = append(c.Middlewares, mw) }
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fiber.ErrInternalServerError.Message,
	})
}

func defaultConfig() *Config {
	return &Config{
		Tag:          RequestTag,
		ErrorHandler: func(c *fiber.Ctx, _ error) error { return internalError(c) },
		CloseErrorHandler: func(err error) {
			slog.Error("failed to close request scope", "error", err)
		},
	}
}

// ScopeMiddleware begins a tagged child of parent per request. FromContext
// and scopedi.ScopeFromContext(c.UserContext()) both find it. The scope is
// closed once c.Next returns.
func ScopeMiddleware(parent scopedi.Scope, opts ...Option) fiber.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *fiber.Ctx) error {
		request, err := parent.BeginTaggedScope(c.UserContext(), cfg.Tag)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}
		defer func() {
			if err := request.Close(); err != nil {
				cfg.CloseErrorHandler(err)
			}
		}()

		c.SetUserContext(request.Context())
		c.Locals(scopeKey, request)
		for _, hook := range cfg.Middlewares {
			if err := hook(request, c); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		return c.Next()
	}
}

// FromContext returns the request scope of c, or nil when ScopeMiddleware
// did not run.
func FromContext(c *fiber.Ctx) scopedi.Scope {
	request, _ := c.Locals(scopeKey).(scopedi.Scope)
	return request
}

// HandlerConfig controls Handle.
type HandlerConfig struct {
	// PanicRecovery turns controller panics into PanicHandler calls.
	PanicRecovery bool

	PanicHandler           func(*fiber.Ctx, any) error
	ScopeErrorHandler      func(*fiber.Ctx, error) error
	ResolutionErrorHandler func(*fiber.Ctx, error) error
}

// HandlerOption changes a HandlerConfig.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery toggles recovery of controller panics. Off by default.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) { c.PanicRecovery = enabled }
}

// WithPanicHandler answers a recovered panic.
func WithPanicHandler(h func(*fiber.Ctx, any) error) HandlerOption {
	return func(c *HandlerConfig) { c.PanicHandler = h }
}

// WithScopeErrorHandler answers requests that did not pass ScopeMiddleware.
func WithScopeErrorHandler(h func(*fiber.Ctx, error) error) HandlerOption {
	return func(c *HandlerConfig) { c.ScopeErrorHandler = h }
}

// WithResolutionErrorHandler answers requests whose controller could not
// be built.
func WithResolutionErrorHandler(h func(*fiber.Ctx, error) error) HandlerOption {
	return func(c *HandlerConfig) { c.ResolutionErrorHandler = h }
}

func defaultHandlerConfig() *HandlerConfig {
	logged := func(msg string) func(*fiber.Ctx, error) error {
		return func(c *fiber.Ctx, err error) error {
			slog.Error(msg, "error", err)
			return internalError(c)
		}
	}

	return &HandlerConfig{
		PanicHandler: func(c *fiber.Ctx, v any) error {
			slog.Error("controller panicked", "panic", v)
			return internalError(c)
		},
		ScopeErrorHandler:      logged("request has no scope"),
		ResolutionErrorHandler: logged("failed to resolve controller"),
	}
}

// Handle turns a controller method expression into a handler. Each call
// resolves T from the request scope, so controllers may depend on
// request-tagged services. A request without a scope is reported to the
// scope error handler as scopedi.ErrScopeNotInContext.
//
//	app.Get("/users/:id", scopedifiber.Handle(UserController.GetByID))
func Handle[T any](method func(T, *fiber.Ctx) error, opts ...HandlerOption) fiber.Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *fiber.Ctx) (err error) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					err = cfg.PanicHandler(c, v)
				}
			}()
		}

		request := FromContext(c)
		if request == nil {
			return cfg.ScopeErrorHandler(c, scopedi.ErrScopeNotInContext)
		}

		controller, err := scopedi.Resolve[T](request)
		if err != nil {
			return cfg.ResolutionErrorHandler(c, err)
		}

		return method(controller, c)
	}
}
