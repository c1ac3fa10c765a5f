package scopedi_test

import (
	"github.com/junioryono/scopedi/internal/testutil"
)

// ============================================================================
// Shared Test Types
// ============================================================================

// greeter combines literal and resolved parameters.
type greeter struct {
	greeting string
	logger   testutil.TestLogger
	suffix   string
}

func newGreeter(greeting string, logger testutil.TestLogger, suffix string) *greeter {
	return &greeter{greeting: greeting, logger: logger, suffix: suffix}
}

func (g *greeter) Greet() string {
	return g.greeting + g.suffix
}

// handlerSet receives every TestHandler registration.
type handlerSet struct {
	handlers []testutil.TestHandler
}

func newHandlerSet(handlers []testutil.TestHandler) *handlerSet {
	return &handlerSet{handlers: handlers}
}

func (s *handlerSet) Names() []string {
	names := make([]string, len(s.handlers))
	for i, h := range s.handlers {
		names[i] = h.Handle()
	}
	return names
}

// requestState is bound to tagged request scopes.
type requestState struct {
	ID int64
}

// cachedReport is a singleton that depends on per-request state.
type cachedReport struct {
	state *requestState
}

func newCachedReport(state *requestState) *cachedReport {
	return &cachedReport{state: state}
}

func handlerNames(handlers []testutil.TestHandler) []string {
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Handle()
	}
	return names
}
