package di

import "reflect"

// Guard decides at assembly time whether a definition is active.
//
// A nil Guard means "always". A Guard that returns an error aborts assembly
// before any factory runs.
type Guard func() (bool, error)

// AllOf is active only when every guard is active. Guards are evaluated in
// order and evaluation stops at the first false or error.
func AllOf(guards ...Guard) Guard {
	return func() (bool, error) {
		for _, g := range guards {
			if g == nil {
				continue
			}
			ok, err := g()
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Factory constructs a bean. Dependencies on other beans are obtained through r.
type Factory func(r *Resolver) (any, error)

// Definition declares one bean of a Context.
type Definition struct {
	Name    DependencyKey
	Guard   Guard
	Factory Factory

	// Type is informational (describe output, logs).
	Type string
}

// Provide builds a Definition from a typed constructor.
//
// A nil *T returned without error is reported as ErrNilBean.
func Provide[T any](name DependencyKey, guard Guard, ctor func(r *Resolver) (*T, error)) Definition {
	def := Definition{
		Name:  name,
		Guard: guard,
		Type:  reflect.TypeFor[*T]().String(),
	}
	if ctor == nil {
		return def
	}
	def.Factory = func(r *Resolver) (any, error) {
		v, err := ctor(r)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, ErrNilBean
		}
		return v, nil
	}
	return def
}

// Resolver hands already-created beans to a factory and records every
// reference it gives out, so the published Context knows who depends on whom.
type Resolver struct {
	created map[DependencyKey]*entry
	parent  *Context
	handle  *Handle
	deps    map[DependencyKey]any
}

func newResolver(created map[DependencyKey]*entry, parent *Context, handle *Handle) *Resolver {
	return &Resolver{
		created: created,
		parent:  parent,
		handle:  handle,
		deps:    make(map[DependencyKey]any),
	}
}

// Context returns a handle that yields the Context under assembly once it is
// published. Before that, and forever if assembly fails, Get returns nil.
func (r *Resolver) Context() *Handle { return r.handle }

// Resolve returns a bean created earlier in this assembly or found in the
// parent context, recording it as a dependency of the bean being built.
func (r *Resolver) Resolve(key DependencyKey) (any, error) {
	if e, ok := r.created[key]; ok {
		r.deps[key] = e.val
		return e.val, nil
	}
	if r.parent != nil {
		if v, ok := r.parent.Lookup(key); ok {
			r.deps[key] = v
			return v, nil
		}
	}
	return nil, MissingDependencyError{Key: key}
}

// Ref resolves key through r and asserts it is a *D.
func Ref[D any](r *Resolver, key DependencyKey) (*D, error) {
	raw, err := r.Resolve(key)
	if err != nil {
		return nil, err
	}
	return assertAs[D](key, raw)
}
