// Package http opens a scopedi request scope for every net/http request.
// It works with any router that accepts func(http.Handler) http.Handler,
// chi and gorilla/mux included.
//
// Registrations made with scopedi.MatchingScope(http.RequestTag) get one
// instance per request, shared by everything resolved while serving it,
// and are disposed when the response has been written.
//
//	provider, _ := collection.Build()
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("POST /login", scopedihttp.Handle(AuthController.Login))
//	mux.HandleFunc("GET /users/{id}", scopedihttp.Handle(UserController.GetByID))
//
//	http.ListenAndServe(":8080", scopedihttp.ScopeMiddleware(provider)(mux))
package http

import (
	"log/slog"
	"net/http"

	"github.com/junioryono/scopedi"
)

// RequestTag tags the scopes opened by ScopeMiddleware unless WithTag says
// otherwise.
const RequestTag = "request"

// RequestHook runs inside a freshly opened request scope before the next
// handler. A non-nil error stops the request.
type RequestHook func(scopedi.Scope, *http.Request) error

// Config controls ScopeMiddleware.
type Config struct {
	// Tag is attached to every request scope.
	Tag any

	// ErrorHandler writes the response when the scope cannot be opened or
	// a hook fails.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

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

// WithErrorHandler replaces the plain 500 response.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) { c.ErrorHandler = h }
}

// WithCloseErrorHandler replaces logging of disposal failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) { c.CloseErrorHandler = h }
}

// WithMiddleware appends a RequestHook.
func WithMiddleware(mw func(scopedi.Scope, *http.Request) error) Option {
	return func(c *Config) { c.Middlewares = append(c.Middlewares, mw) }
}

func internalError(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func defaultConfig() *Config {
	return &Config{
		Tag: RequestTag,
		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, _ error) {
			internalError(w)
		},
		CloseErrorHandler: func(err error) {
			slog.Error("failed to close request scope", "error", err)
		},
	}
}

// ScopeMiddleware begins a tagged child of parent per request and stores it
// in the request context, where scopedi.ScopeFromContext finds it. parent
// is normally the Provider. The scope is closed once next returns.
func ScopeMiddleware(parent scopedi.Scope, opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			request, err := parent.BeginTaggedScope(r.Context(), cfg.Tag)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}
			defer func() {
				if err := request.Close(); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			r = r.WithContext(request.Context())
			for _, hook := range cfg.Middlewares {
				if err := hook(request, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandlerConfig controls Handle.
type HandlerConfig struct {
	// PanicRecovery turns controller panics into PanicHandler calls.
	PanicRecovery bool

	PanicHandler           func(http.ResponseWriter, *http.Request, any)
	ScopeErrorHandler      func(http.ResponseWriter, *http.Request, error)
	ResolutionErrorHandler func(http.ResponseWriter, *http.Request, error)
}

// HandlerOption changes a HandlerConfig.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery toggles recovery of controller panics. Off by default.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) { c.PanicRecovery = enabled }
}

// WithPanicHandler answers a recovered panic.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) HandlerOption {
	return func(c *HandlerConfig) { c.PanicHandler = h }
}

// WithScopeErrorHandler answers requests that did not pass ScopeMiddleware.
func WithScopeErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) { c.ScopeErrorHandler = h }
}

// WithResolutionErrorHandler answers requests whose controller could not
// be built.
func WithResolutionErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) { c.ResolutionErrorHandler = h }
}

func defaultHandlerConfig() *HandlerConfig {
	logged := func(msg string) func(http.ResponseWriter, *http.Request, error) {
		return func(w http.ResponseWriter, _ *http.Request, err error) {
			slog.Error(msg, "error", err)
			internalError(w)
		}
	}

	return &HandlerConfig{
		PanicHandler: func(w http.ResponseWriter, _ *http.Request, v any) {
			slog.Error("controller panicked", "panic", v)
			internalError(w)
		},
		ScopeErrorHandler:      logged("request has no scope"),
		ResolutionErrorHandler: logged("failed to resolve controller"),
	}
}

// Handle turns a controller method expression into a handler. Each call
// resolves T from the request scope, so controllers may depend on
// request-tagged services.
//
//	mux.HandleFunc("GET /users/{id}", scopedihttp.Handle(UserController.GetByID))
func Handle[T any](method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(w, r, v)
				}
			}()
		}

		request, err := scopedi.ScopeFromContext(r.Context())
		if err != nil {
			cfg.ScopeErrorHandler(w, r, err)
			return
		}

		controller, err := scopedi.Resolve[T](request)
		if err != nil {
			cfg.ResolutionErrorHandler(w, r, err)
			return
		}

		method(controller, w, r)
	}
}
