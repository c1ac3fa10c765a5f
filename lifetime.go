package scopedi

import (
	"encoding/json"
	"fmt"
)

// Lifetime specifies how many instances of a registration exist and
// over what span they are shared.
type Lifetime int

const (
	// Singleton specifies that a single instance of the service will be created.
	// The instance is created on first request, cached in the root scope and
	// shared by every scope of the provider.
	Singleton Lifetime = iota

	// Scoped specifies that one instance is created per scope.
	// Registrations added with MatchingScope are shared by the
	// nearest scope carrying the matching tag and all of its descendants.
	Scoped

	// Transient specifies that a new instance is created on every request.
	Transient
)

// String returns the string representation of the Lifetime.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Scoped:
		return "Scoped"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifetime is one of the known values.
func (l Lifetime) IsValid() bool {
	return l >= Singleton && l <= Transient
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Singleton", "singleton":
		*l = Singleton
	case "Scoped", "scoped":
		*l = Scoped
	case "Transient", "transient":
		*l = Transient
	default:
		return LifetimeError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}

// Ownership decides who disposes an instance.
type Ownership int

const (
	// OwnedByContainer instances are disposed by the scope that owns them
	// when that scope is closed.
	OwnedByContainer Ownership = iota

	// OwnedExternally instances are never disposed by the container.
	OwnedExternally
)

func (o Ownership) String() string {
	switch o {
	case OwnedByContainer:
		return "ContainerOwned"
	case OwnedExternally:
		return "ExternallyOwned"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Ownership) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
