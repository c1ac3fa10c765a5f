// Package echo opens a scopedi request scope for every Echo request.
//
// Registrations made with scopedi.MatchingScope(echo.RequestTag) get one
// instance per request, shared by everything resolved while serving it,
// and are disposed when the handler chain returns.
//
//	provider, _ := collection.Build()
//
//	e := echo.New()
//	e.Use(scopediecho.ScopeMiddleware(provider))
//
//	e.POST("/login", scopediecho.Handle(AuthController.Login))
//	e.GET("/users/:id", scopediecho.Handle(UserController.GetByID))
package echo

import (
	"log/slog"
	"net/http"

	"github.com/junioryono/scopedi"
	"github.com/labstack/echo/v4"
)

// RequestTag tags the scopes opened by ScopeMiddleware unless WithTag says
// otherwise.
const RequestTag = "request"

// RequestHook runs inside a freshly opened request scope before the next
// handler. A non-nil error stops the request.
type RequestHook func(scopedi.Scope, echo.Context) error

// Config controls ScopeMiddleware.
type Config struct {
	// Tag is attached to every request scope.
	Tag any

	// ErrorHandler produces the handler result when the scope cannot be
	// opened or a hook fails.
	ErrorHandler func(echo.Context, error) error

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

// WithErrorHandler replaces the default 500 HTTPError.
func WithErrorHandler(h func(echo.Context, error) error) Option {
	return func(c *Config) { c.ErrorHandler = h }
}

// WithCloseErrorHandler replaces logging of disposal failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) { c.CloseErrorHandler = h }
}

// WithMiddleware appends a RequestHook.
func WithMiddleware(mw func(scopedi.Scope, echo.Context) error) Option {
	return func(c *Config) { c.Middlewares = append(c.Middlewares, mw) }
}

func internalError() error {
	return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func defaultConfig() *Config {
	return &Config{
		Tag:          RequestTag,
		ErrorHandler: func(echo.Context, error) error { return internalError() },
		CloseErrorHandler: func(err error) {
			slog.Error("failed to close request scope", "error", err)
		},
	}
}

// ScopeMiddleware begins a tagged child of parent per request and swaps it
// into the request context, where FromContext and scopedi.ScopeFromContext
// find it. The scope is closed once the rest of the chain returns.
func ScopeMiddleware(parent scopedi.Scope, opts ...Option) echo.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			request, err := parent.BeginTaggedScope(c.Request().Context(), cfg.Tag)
			if err != nil {
				return cfg.ErrorHandler(c, err)
			}
			defer func() {
				if err := request.Close(); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			c.SetRequest(c.Request().WithContext(request.Context()))
			for _, hook := range cfg.Middlewares {
				if err := hook(request, c); err != nil {
					return cfg.ErrorHandler(c, err)
				}
			}

			return next(c)
		}
	}
}

// FromContext returns the request scope of c.
func FromContext(c echo.Context) (scopedi.Scope, error) {
	return scopedi.ScopeFromContext(c.Request().Context())
}

// HandlerConfig controls Handle.
type HandlerConfig struct {
	// PanicRecovery turns controller panics into PanicHandler calls.
	PanicRecovery bool

	PanicHandler           func(echo.Context, any) error
	ScopeErrorHandler      func(echo.Context, error) error
	ResolutionErrorHandler func(echo.Context, error) error
}

// HandlerOption changes a HandlerConfig.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery toggles recovery of controller panics. Off by default.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) { c.PanicRecovery = enabled }
}

// WithPanicHandler answers a recovered panic.
func WithPanicHandler(h func(echo.Context, any) error) HandlerOption {
	return func(c *HandlerConfig) { c.PanicHandler = h }
}

// WithScopeErrorHandler answers requests that did not pass ScopeMiddleware.
func WithScopeErrorHandler(h func(echo.Context, error) error) HandlerOption {
	return func(c *HandlerConfig) { c.ScopeErrorHandler = h }
}

// WithResolutionErrorHandler answers requests whose controller could not
// be built.
func WithResolutionErrorHandler(h func(echo.Context, error) error) HandlerOption {
	return func(c *HandlerConfig) { c.ResolutionErrorHandler = h }
}

func defaultHandlerConfig() *HandlerConfig {
	logged := func(msg string) func(echo.Context, error) error {
		return func(_ echo.Context, err error) error {
			slog.Error(msg, "error", err)
			return internalError()
		}
	}

	return &HandlerConfig{
		PanicHandler: func(_ echo.Context, v any) error {
			slog.Error("controller panicked", "panic", v)
			return internalError()
		},
		ScopeErrorHandler:      logged("request has no scope"),
		ResolutionErrorHandler: logged("failed to resolve controller"),
	}
}

// Handle turns a controller method expression into a handler. Each call
// resolves T from the request scope, so controllers may depend on
// request-tagged services.
//
//	e.GET("/users/:id", scopediecho.Handle(UserController.GetByID))
func Handle[T any](method func(T, echo.Context) error, opts ...HandlerOption) echo.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c echo.Context) (err error) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					err = cfg.PanicHandler(c, v)
				}
			}()
		}

		request, err := FromContext(c)
		if err != nil {
			return cfg.ScopeErrorHandler(c, err)
		}

		controller, err := scopedi.Resolve[T](request)
		if err != nil {
			return cfg.ResolutionErrorHandler(c, err)
		}

		return method(controller, c)
	}
}
