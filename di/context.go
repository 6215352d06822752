package di

import (
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type entry struct {
	name DependencyKey
	val  any
	typ  string
	deps map[DependencyKey]any
}

// Context is an immutable, named set of beans produced by Assemble.
//
// Lookups fall back to the parent context, which is how beans of the root
// context become visible to every child context.
type Context struct {
	id     string
	parent *Context
	order  []DependencyKey
	beans  map[DependencyKey]*entry

	mu     sync.Mutex
	closed bool
}

// Handle is a late-bound reference to a Context that is still being assembled.
type Handle struct {
	mu  sync.RWMutex
	ctx *Context
}

// Get returns the published Context, or nil while assembly is running or after it failed.
func (h *Handle) Get() *Context {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

func (h *Handle) set(c *Context) {
	h.mu.Lock()
	h.ctx = c
	h.mu.Unlock()
}

type options struct {
	id     string
	parent *Context
	logger *zap.Logger
}

// Option configures Assemble.
type Option func(*options)

// WithID sets the context id. Defaults to a random UUID.
func WithID(id string) Option { return func(o *options) { o.id = id } }

// WithParent makes the assembled context a child of p.
func WithParent(p *Context) Option { return func(o *options) { o.parent = p } }

// WithLogger sets the logger used while assembling. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Assemble evaluates defs and publishes the resulting Context.
//
// Phases:
//  1. validate definitions (NilFactoryError, DuplicateKeyError)
//  2. evaluate every guard (GuardError); nothing has been constructed yet
//  3. run active factories in declaration order (FactoryError)
//
// On a factory failure, beans already constructed that implement io.Closer are
// closed in reverse order and no Context is returned.
func Assemble(defs []Definition, opts ...Option) (*Context, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	log := o.logger.With(zap.String("context", o.id))

	seen := make(map[DependencyKey]struct{}, len(defs))
	for _, d := range defs {
		if d.Factory == nil {
			return nil, NilFactoryError{Key: d.Name}
		}
		if _, dup := seen[d.Name]; dup {
			return nil, DuplicateKeyError{Key: d.Name}
		}
		seen[d.Name] = struct{}{}
	}

	active := make([]bool, len(defs))
	for i, d := range defs {
		if d.Guard == nil {
			active[i] = true
			continue
		}
		ok, err := d.Guard()
		if err != nil {
			return nil, GuardError{Key: d.Name, Err: err}
		}
		active[i] = ok
	}

	handle := &Handle{}
	created := make(map[DependencyKey]*entry, len(defs))
	order := make([]DependencyKey, 0, len(defs))

	for i, d := range defs {
		if !active[i] {
			log.Debug("bean skipped", zap.String("bean", string(d.Name)))
			continue
		}
		r := newResolver(created, o.parent, handle)
		val, err := d.Factory(r)
		if err != nil {
			closeEntries(created, order, log)
			return nil, FactoryError{Key: d.Name, Err: err}
		}
		if val == nil {
			closeEntries(created, order, log)
			return nil, FactoryError{Key: d.Name, Err: ErrNilBean}
		}
		created[d.Name] = &entry{name: d.Name, val: val, typ: d.Type, deps: r.deps}
		order = append(order, d.Name)
		log.Debug("bean created", zap.String("bean", string(d.Name)), zap.String("type", d.Type))
	}

	c := &Context{
		id:     o.id,
		parent: o.parent,
		order:  order,
		beans:  created,
	}
	handle.set(c)
	log.Info("context published", zap.Int("beans", len(order)))
	return c, nil
}

// NewChild assembles defs as a child of parent.
func NewChild(parent *Context, defs []Definition, opts ...Option) (*Context, error) {
	if parent == nil {
		return nil, ErrNilContext
	}
	return Assemble(defs, append(opts, WithParent(parent))...)
}

func closeEntries(created map[DependencyKey]*entry, order []DependencyKey, log *zap.Logger) error {
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		e := created[order[i]]
		if c, ok := e.val.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn("bean close failed", zap.String("bean", string(e.name)), zap.Error(err))
				errs = append(errs, FactoryError{Key: e.name, Err: err})
			}
		}
	}
	return errors.Join(errs...)
}

// ID returns the context id.
func (c *Context) ID() string { return c.id }

// Parent returns the parent context, or nil for a root context.
func (c *Context) Parent() *Context { return c.parent }

// Names returns the keys of the beans owned by c, in creation order.
// Parent beans are not included.
func (c *Context) Names() []DependencyKey {
	if c == nil {
		return nil
	}
	return slices.Clone(c.order)
}

// Contains reports whether key resolves in c or one of its ancestors.
func (c *Context) Contains(key DependencyKey) bool {
	_, ok := c.Lookup(key)
	return ok
}

// Lookup returns the bean stored under key, searching ancestors when c does not own it.
func (c *Context) Lookup(key DependencyKey) (any, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if e, ok := cur.beans[key]; ok {
			return e.val, true
		}
	}
	return nil, false
}

// TypeOf returns the declared type of the bean stored under key.
func (c *Context) TypeOf(key DependencyKey) (string, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if e, ok := cur.beans[key]; ok {
			return e.typ, true
		}
	}
	return "", false
}

// DependenciesOf returns the keys the bean stored under key resolved while
// it was constructed, sorted by name.
func (c *Context) DependenciesOf(key DependencyKey) []DependencyKey {
	for cur := c; cur != nil; cur = cur.parent {
		if e, ok := cur.beans[key]; ok {
			out := make([]DependencyKey, 0, len(e.deps))
			for k := range e.deps {
				out = append(out, k)
			}
			slices.Sort(out)
			return out
		}
	}
	return nil
}

// Close releases the beans owned by c that implement io.Closer, in reverse
// creation order. Parent beans are left to the parent.
func (c *Context) Close() error {
	if c == nil {
		return ErrNilContext
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.closed = true
	return closeEntries(c.beans, c.order, zap.NewNop())
}

// Lookup returns the bean stored under key typed as *T.
func Lookup[T any](c *Context, key DependencyKey) (*T, error) {
	if c == nil {
		return nil, ErrNilContext
	}
	raw, ok := c.Lookup(key)
	if !ok {
		return nil, MissingDependencyError{Key: key}
	}
	return assertAs[T](key, raw)
}

// LookupBean returns a typed view of the bean stored under key together with
// the references it took during construction.
func LookupBean[T any](c *Context, key DependencyKey) (*Bean[T], error) {
	if c == nil {
		return nil, ErrNilContext
	}
	for cur := c; cur != nil; cur = cur.parent {
		e, ok := cur.beans[key]
		if !ok {
			continue
		}
		v, err := assertAs[T](key, e.val)
		if err != nil {
			return nil, err
		}
		deps := make(map[DependencyKey]any, len(e.deps))
		for k, d := range e.deps {
			deps[k] = d
		}
		return &Bean[T]{Name: key, Val: v, Deps: deps}, nil
	}
	return nil, MissingDependencyError{Key: key}
}
