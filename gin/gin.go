// Package gin opens a scopedi request scope for every Gin request.
//
// Registrations made with scopedi.MatchingScope(gin.RequestTag) get one
// instance per request, shared by everything resolved while serving it,
// and are disposed after the remaining handlers have run.
//
//	provider, _ := collection.Build()
//
//	g := gin.New()
//	g.Use(scopedigin.ScopeMiddleware(provider))
//
//	g.POST("/login", scopedigin.Handle(AuthController.Login))
//	g.GET("/users/:id", scopedigin.Handle(UserController.GetByID))
package gin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/junioryono/scopedi"
)

// RequestTag tags the scopes opened by ScopeMiddleware unless WithTag says
// otherwise.
const RequestTag = "request"

// RequestHook runs inside a freshly opened request scope before the next
// handler. A non-nil error stops the request.
type RequestHook func(scopedi.Scope, *gin.Context) error

// Config controls ScopeMiddleware.
type Config struct {
	// Tag is attached to every request scope.
	Tag any

	// ErrorHandler aborts the request when the scope cannot be opened or a
	// hook fails.
	ErrorHandler func(*gin.Context, error)

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

// WithErrorHandler replaces the default JSON 500 abort.
func WithErrorHandler(h func(*gin.Context, error)) Option {
	return func(c *Config) { c.ErrorHandler = h }
}

// WithCloseErrorHandler replaces logging of disposal failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) { c.CloseErrorHandler = h }
}

// WithMiddleware appends a RequestHook.
func WithMiddleware(mw func(scopedi.Scope, *gin.Context) error) Option {
	return func(c *Config) { c.Middlewares = append(c.Middlewares, mw) }
}

func internalError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": http.StatusText(http.StatusInternalServerError),
	})
}

func defaultConfig() *Config {
	return &Config{
		Tag:          RequestTag,
		ErrorHandler: func(c *gin.Context, _ error) { internalError(c) },
		CloseErrorHandler: func(err error) {
			slog.Error("failed to close request scope", "error", err)
		},
	}
}

// ScopeMiddleware begins a tagged child of parent per request and swaps it
// into the request context, where FromContext and scopedi.ScopeFromContext
// find it. The scope is closed once c.Next returns.
func ScopeMiddleware(parent scopedi.Scope, opts ...Option) gin.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		request, err := parent.BeginTaggedScope(c.Request.Context(), cfg.Tag)
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}
		defer func() {
			if err := request.Close(); err != nil {
				cfg.CloseErrorHandler(err)
			}
		}()

		c.Request = c.Request.WithContext(request.Context())
		for _, hook := range cfg.Middlewares {
			if err := hook(request, c); err != nil {
				cfg.ErrorHandler(c, err)
				return
			}
		}

		c.Next()
	}
}

// FromContext returns the request scope of c.
func FromContext(c *gin.Context) (scopedi.Scope, error) {
	return scopedi.ScopeFromContext(c.Request.Context())
}

// HandlerConfig controls Handle.
type HandlerConfig struct {
	// PanicRecovery turns controller panics into PanicHandler calls.
	PanicRecovery bool

	PanicHandler           func(*gin.Context, any)
	ScopeErrorHandler      func(*gin.Context, error)
	ResolutionErrorHandler func(*gin.Context, error)
}

// HandlerOption changes a HandlerConfig.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery toggles recovery of controller panics. Off by default.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) { c.PanicRecovery = enabled }
}

// WithPanicHandler answers a recovered panic.
func WithPanicHandler(h func(*gin.Context, any)) HandlerOption {
	return func(c *HandlerConfig) { c.PanicHandler = h }
}

// WithScopeErrorHandler answers requests that did not pass ScopeMiddleware.
func WithScopeErrorHandler(h func(*gin.Context, error)) HandlerOption {
	return func(c *HandlerConfig) { c.ScopeErrorHandler = h }
}

// WithResolutionErrorHandler answers requests whose controller could not
// be built.
func WithResolutionErrorHandler(h func(*gin.Context, error)) HandlerOption {
	return func(c *HandlerConfig) { c.ResolutionErrorHandler = h }
}

func defaultHandlerConfig() *HandlerConfig {
	logged := func(msg string) func(*gin.Context, error) {
		return func(c *gin.Context, err error) {
			slog.Error(msg, "error", err)
			internalError(c)
		}
	}

	return &HandlerConfig{
		PanicHandler: func(c *gin.Context, v any) {
			slog.Error("controller panicked", "panic", v)
			internalError(c)
		},
		ScopeErrorHandler:      logged("request has no scope"),
		ResolutionErrorHandler: logged("failed to resolve controller"),
	}
}

// Handle turns a controller method expression into a handler. Each call
// resolves T from the request scope, so controllers may depend on
// request-tagged services.
//
//	g.GET("/users/:id", scopedigin.Handle(UserController.GetByID))
func Handle[T any](method func(T, *gin.Context), opts ...HandlerOption) gin.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(c, v)
				}
			}()
		}

		request, err := FromContext(c)
		if err != nil {
			cfg.ScopeErrorHandler(c, err)
			return
		}

		controller, err := scopedi.Resolve[T](request)
		if err != nil {
			cfg.ResolutionErrorHandler(c, err)
			return
		}

		method(controller, c)
	}
}
