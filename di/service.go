// Package di provides the composition primitives the parent context is built from.
//
// It models a published bean (Val) plus the references it took on other beans
// while it was constructed (Deps). Beans are declared as Definitions: a name, an
// optional Guard and a Factory. Assemble evaluates every guard first, then runs
// the active factories in declaration order and publishes an immutable Context.
//
// Design goals:
//   - Explicit wiring: factories ask for their dependencies by name through a Resolver.
//   - No reflection-driven injection and no runtime graph solver; order is declaration order.
//   - All-or-nothing: a failed guard or factory publishes nothing.
//   - Test-friendly: recorded dependencies are visible through Bean.Deps and Context.DependenciesOf.
//
// Error paths avoid fmt.Errorf; typed errors carry the bean key for errors.As.
package di

import (
	"errors"
	"reflect"
	"strconv"
)

var (
	// ErrNilContext is returned by lookups against a nil Context.
	ErrNilContext = errors.New("di: nil context")

	// ErrNilBean is returned when a factory reports success but yields a nil value.
	ErrNilBean = errors.New("di: factory returned nil bean")

	// ErrContextClosed is returned by Close when the context was already closed.
	ErrContextClosed = errors.New("di: context closed")
)

// DependencyKey names a bean inside a Context.
//
// Keys are typically defined as package-level constants to avoid typos.
//
// Example:
//
//	const (
//	  BeanCloud      di.DependencyKey = "cloud"
//	  BeanDataSource di.DependencyKey = "dataSource"
//	)
type DependencyKey string

// Key converts a string into a DependencyKey.
func Key(name string) DependencyKey { return DependencyKey(name) }

// DuplicateKeyError is returned when two definitions in one assembly share a name.
type DuplicateKeyError struct{ Key DependencyKey }

// Error implements the error interface.
func (e DuplicateKeyError) Error() string {
	// Example: di: duplicate bean name "cloud"
	return "di: duplicate bean name " + strconv.Quote(string(e.Key))
}

// MissingDependencyError is returned when a bean key is not present in the
// context (or was not created yet when a factory asked for it).
type MissingDependencyError struct{ Key DependencyKey }

// Error implements the error interface.
func (e MissingDependencyError) Error() string {
	// Example: di: bean "cloud" missing
	return "di: bean " + strconv.Quote(string(e.Key)) + " missing"
}

// WrongTypeDependencyError is returned when a bean exists but is not a *D.
type WrongTypeDependencyError struct {
	// Key is the bean key requested.
	Key DependencyKey

	// GotType is reflect.TypeOf(raw).String() for the stored value.
	GotType string
}

// Error implements the error interface.
func (e WrongTypeDependencyError) Error() string {
	// Example: di: bean "cloud" has wrong type (*mgmt.Server)
	return "di: bean " + strconv.Quote(string(e.Key)) + " has wrong type (" + e.GotType + ")"
}

// NilFactoryError indicates a definition without a factory.
type NilFactoryError struct{ Key DependencyKey }

// Error implements the error interface.
func (e NilFactoryError) Error() string {
	return "di: nil factory for bean " + strconv.Quote(string(e.Key))
}

// GuardError wraps a failure to evaluate a bean's activation guard.
//
// The cause is reachable through errors.As / errors.Is.
type GuardError struct {
	Key DependencyKey
	Err error
}

// Error implements the error interface.
func (e GuardError) Error() string {
	return "di: guard for bean " + strconv.Quote(string(e.Key)) + ": " + errString(e.Err)
}

// Unwrap returns the guard's cause.
func (e GuardError) Unwrap() error { return e.Err }

// FactoryError wraps a failure raised by a bean factory.
type FactoryError struct {
	Key DependencyKey
	Err error
}

// Error implements the error interface.
func (e FactoryError) Error() string {
	return "di: create bean " + strconv.Quote(string(e.Key)) + ": " + errString(e.Err)
}

// Unwrap returns the factory's cause.
func (e FactoryError) Unwrap() error { return e.Err }

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

// Bean is a typed view over a published bean.
//
// Val is the constructed value.
// Deps holds the beans the factory resolved while constructing Val, keyed by name.
// The map is a copy; mutating it does not affect the Context.
type Bean[T any] struct {
	Name DependencyKey
	Val  *T
	Deps map[DependencyKey]any
}

// Value returns the constructed value pointer.
func (b *Bean[T]) Value() *T { return b.Val }

// Has reports whether the bean took a reference on key (regardless of type).
func (b *Bean[T]) Has(key DependencyKey) bool {
	if b == nil || b.Deps == nil {
		return false
	}
	_, ok := b.Deps[key]
	return ok
}

// GetAny returns the raw referenced bean without type assertions.
func (b *Bean[T]) GetAny(key DependencyKey) (any, bool) {
	if b == nil || b.Deps == nil {
		return nil, false
	}
	v, ok := b.Deps[key]
	return v, ok
}

// GetAs returns the referenced bean typed as *D.
//
// ok is false if the key is missing or the stored value is not a *D.
func GetAs[T any, D any](b *Bean[T], key DependencyKey) (*D, bool) {
	if b == nil || b.Deps == nil {
		return nil, false
	}
	raw, ok := b.Deps[key]
	if !ok || raw == nil {
		return nil, false
	}
	d, ok := raw.(*D)
	return d, ok
}

// TryGetAs returns the referenced bean typed as *D.
//
// It returns:
//   - MissingDependencyError if the key is not present
//   - WrongTypeDependencyError if the key exists but is not a *D
func TryGetAs[T any, D any](b *Bean[T], key DependencyKey) (*D, error) {
	if b == nil || b.Deps == nil {
		return nil, MissingDependencyError{Key: key}
	}
	raw, ok := b.Deps[key]
	if !ok || raw == nil {
		return nil, MissingDependencyError{Key: key}
	}
	return assertAs[D](key, raw)
}

// MustGetAs returns the referenced bean typed as *D or panics.
func MustGetAs[T any, D any](b *Bean[T], key DependencyKey) *D {
	d, ok := GetAs[T, D](b, key)
	if !ok {
		panic(MissingDependencyError{Key: key})
	}
	return d
}

func assertAs[D any](key DependencyKey, raw any) (*D, error) {
	d, ok := raw.(*D)
	if !ok {
		return nil, WrongTypeDependencyError{
			Key:     key,
			GotType: reflect.TypeOf(raw).String(),
		}
	}
	return d, nil
}
