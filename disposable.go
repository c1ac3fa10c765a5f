package scopedi

import (
	"context"
	"reflect"
)

// Disposable is implemented by instances that hold resources.
// Container-owned instances are closed when the scope that owns them closes.
//
// Example:
//
//	type Connection struct {
//	    conn net.Conn
//	}
//
//	func (c *Connection) Close() error {
//	    return c.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext is the context-aware variant of Disposable.
// The scope's context is passed when the owning scope closes.
//
// Example:
//
//	func (c *Cache) Close(ctx context.Context) error {
//	    return c.flush(ctx)
//	}
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

// disposeFunc closes a tracked instance.
type disposeFunc func(ctx context.Context) error

// disposerFor returns the disposal action for instance, or nil if it
// holds nothing to release.
func disposerFor(instance any) disposeFunc {
	switch d := instance.(type) {
	case DisposableWithContext:
		return d.Close
	case Disposable:
		return func(context.Context) error { return d.Close() }
	default:
		return nil
	}
}

type identity struct {
	typ reflect.Type
	ptr uintptr
}

// identityKey returns a key that identifies instance by reference, so an
// instance reachable through several registrations is closed once.
func identityKey(instance any) (any, bool) {
	v := reflect.ValueOf(instance)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return identity{typ: v.Type(), ptr: v.Pointer()}, true
	default:
		return nil, false
	}
}
