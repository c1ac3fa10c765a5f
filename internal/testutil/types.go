package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Common test errors
var (
	ErrTest            = errors.New("test error")
	ErrConstructor     = errors.New("constructor error")
	ErrDisposal        = errors.New("disposal error")
	ErrAlreadyDisposed = errors.New("already disposed")
)

// TestService is a basic test service
type TestService struct {
	ID   string
	Data string
}

// NewTestService creates a new test service
func NewTestService() *TestService {
	return &TestService{
		ID:   uuid.NewString(),
		Data: "test",
	}
}

// TestLogger is a test logger interface
type TestLogger interface {
	Log(msg string)
	GetLogs() []string
}

// TestLoggerImpl implements TestLogger
type TestLoggerImpl struct {
	logs []string
	mu   sync.Mutex
}

func NewTestLogger() TestLogger {
	return &TestLoggerImpl{}
}

func (l *TestLoggerImpl) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
}

func (l *TestLoggerImpl) GetLogs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.logs))
	copy(result, l.logs)
	return result
}

// TestDatabase is a test database interface
type TestDatabase interface {
	Query(sql string) string
}

// TestDatabaseImpl implements TestDatabase
type TestDatabaseImpl struct {
	name string
}

func NewTestDatabase() TestDatabase {
	return &TestDatabaseImpl{name: "testdb"}
}

func (d *TestDatabaseImpl) Query(sql string) string {
	return fmt.Sprintf("%s: %s", d.name, sql)
}

// TestServiceWithDeps is a service with dependencies for testing
type TestServiceWithDeps struct {
	Logger   TestLogger
	Database TestDatabase
	ID       string
}

func NewTestServiceWithDeps(logger TestLogger, db TestDatabase) *TestServiceWithDeps {
	return &TestServiceWithDeps{
		Logger:   logger,
		Database: db,
		ID:       uuid.NewString(),
	}
}

// TestHandler is a test handler interface
type TestHandler interface {
	Handle() string
}

// TestHandlerImpl implements TestHandler
type TestHandlerImpl struct {
	name string
}

func NewTestHandler(name string) TestHandler {
	return &TestHandlerImpl{name: name}
}

func (h *TestHandlerImpl) Handle() string {
	return h.name
}

// HandlerProducer returns a producer for a named TestHandler.
func HandlerProducer(name string) func() TestHandler {
	return func() TestHandler { return NewTestHandler(name) }
}

// DisposalLog records the order in which disposables are closed.
type DisposalLog struct {
	mu    sync.Mutex
	names []string
}

func (l *DisposalLog) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

// Names returns the recorded names in close order.
func (l *DisposalLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// TestDisposable is a test type that implements Disposable
type TestDisposable struct {
	ID           string
	Name         string
	log          *DisposalLog
	disposeError error
	closes       atomic.Int32
}

func NewTestDisposable() *TestDisposable {
	return &TestDisposable{ID: uuid.NewString()}
}

func NewTestDisposableWithError(err error) *TestDisposable {
	return &TestDisposable{ID: uuid.NewString(), disposeError: err}
}

// NewLoggedDisposable records its name in log when closed.
func NewLoggedDisposable(name string, log *DisposalLog) *TestDisposable {
	return &TestDisposable{ID: uuid.NewString(), Name: name, log: log}
}

func (s *TestDisposable) Close() error {
	if s.closes.Add(1) > 1 {
		return ErrAlreadyDisposed
	}

	if s.log != nil {
		s.log.record(s.Name)
	}
	return s.disposeError
}

func (s *TestDisposable) IsDisposed() bool {
	return s.closes.Load() > 0
}

// CloseCount returns how many times Close was called.
func (s *TestDisposable) CloseCount() int {
	return int(s.closes.Load())
}

// TestContextDisposable implements DisposableWithContext
type TestContextDisposable struct {
	ID       string
	mu       sync.Mutex
	ctx      context.Context
	disposed bool
}

func NewTestContextDisposable() *TestContextDisposable {
	return &TestContextDisposable{ID: uuid.NewString()}
}

func (s *TestContextDisposable) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrAlreadyDisposed
	}

	s.ctx = ctx
	s.disposed = true
	return nil
}

func (s *TestContextDisposable) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// DisposedWith returns the context passed to Close.
func (s *TestContextDisposable) DisposedWith() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// CircularServiceA and CircularServiceB for testing circular dependencies
type CircularServiceA struct {
	B *CircularServiceB
}

type CircularServiceB struct {
	A *CircularServiceA
}

func NewCircularServiceA(b *CircularServiceB) *CircularServiceA {
	return &CircularServiceA{B: b}
}

func NewCircularServiceB(a *CircularServiceA) *CircularServiceB {
	return &CircularServiceB{A: a}
}

// Counter counts producer invocations.
type Counter struct {
	n atomic.Int64
}

// Next increments the counter and returns the new value.
func (c *Counter) Next() int64 {
	return c.n.Add(1)
}

// Load returns the current count.
func (c *Counter) Load() int64 {
	return c.n.Load()
}
