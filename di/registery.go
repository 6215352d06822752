package di

import (
	"errors"
	"fmt"
	"sync"
)

// Registry holds process-wide singletons that outlive any single Context,
// such as the management server every context in the process shares.
//
// Expected usage:
//
//	val, located, err := reg.LocateOrProvide("mgmt.server", newServer)
type Registry interface {
	LocateOrProvide(key string, ctor func() (any, error)) (val any, located bool, err error)
}

// ErrRegistryPanic is returned if a constructor panics inside LocateOrProvide.
var ErrRegistryPanic = errors.New("registry: panic during provide")

// MapRegistry is a mutex-guarded in-memory Registry.
type MapRegistry struct {
	mu    sync.Mutex
	items map[string]any
}

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{items: map[string]any{}}
}

var (
	processOnce     sync.Once
	processRegistry *MapRegistry
)

// Process returns the registry shared by everything running in this process.
func Process() *MapRegistry {
	processOnce.Do(func() { processRegistry = NewMapRegistry() })
	return processRegistry
}

// Provide stores a value under a key and returns the registry for chaining.
func (r *MapRegistry) Provide(key string, val any) *MapRegistry {
	r.mu.Lock()
	r.items[key] = val
	r.mu.Unlock()
	return r
}

// Get returns the value if present (no panic).
func (r *MapRegistry) Get(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[key]
	return v, ok
}

// MustGet returns the value or panics with a helpful message.
func (r *MapRegistry) MustGet(key string) any {
	v, ok := r.Get(key)
	if !ok {
		panic(fmt.Errorf("di: registry missing key %q", key))
	}
	return v
}

// LocateOrProvide returns the value stored under key (located=true), or
// calls ctor, stores its result and returns it (located=false).
//
// ctor runs under the registry lock, so concurrent callers observe exactly
// one construction. A panicking ctor is reported as ErrRegistryPanic and
// nothing is stored.
func (r *MapRegistry) LocateOrProvide(key string, ctor func() (any, error)) (val any, located bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.items[key]; ok {
		return v, true, nil
	}
	if ctor == nil {
		return nil, false, MissingDependencyError{Key: Key(key)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			val = nil
			located = false
			err = fmt.Errorf("%w: %v", ErrRegistryPanic, rec)
		}
	}()

	v, err := ctor()
	if err != nil {
		return nil, false, err
	}
	r.items[key] = v
	return v, false, nil
}
