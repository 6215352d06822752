// Package routing provides the routing facade child contexts register their
// handler mappings with.
package routing

import (
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Mapping resolves a request to a handler.
type Mapping interface {
	Handler(r *http.Request) (http.Handler, bool)
}

// MappingFunc adapts a function to Mapping.
type MappingFunc func(r *http.Request) (http.Handler, bool)

// Handler implements Mapping.
func (f MappingFunc) Handler(r *http.Request) (http.Handler, bool) { return f(r) }

// DelegatingHandlerMapping asks its delegates, in registration order, for a
// handler and serves the first match. It starts empty.
type DelegatingHandlerMapping struct {
	mu        sync.RWMutex
	delegates []Mapping
}

// NewDelegatingHandlerMapping returns a mapping with no delegates.
func NewDelegatingHandlerMapping() *DelegatingHandlerMapping {
	return &DelegatingHandlerMapping{}
}

// AddDelegate appends m. Nil mappings are ignored.
func (d *DelegatingHandlerMapping) AddDelegate(m Mapping) {
	if m == nil {
		return
	}
	d.mu.Lock()
	d.delegates = append(d.delegates, m)
	d.mu.Unlock()
}

// Delegates returns the registered mappings.
func (d *DelegatingHandlerMapping) Delegates() []Mapping {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.delegates)
}

// Handler implements Mapping.
func (d *DelegatingHandlerMapping) Handler(r *http.Request) (http.Handler, bool) {
	d.mu.RLock()
	delegates := d.delegates
	d.mu.RUnlock()

	for _, m := range delegates {
		if h, ok := m.Handler(r); ok && h != nil {
			return h, true
		}
	}
	return nil, false
}

// ServeHTTP serves the first matching delegate, or 404.
func (d *DelegatingHandlerMapping) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := d.Handler(r); ok {
		h.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}

// ChiMapping matches requests against the routes of a chi router.
type ChiMapping struct {
	router chi.Router
}

// NewChiMapping wraps router.
func NewChiMapping(router chi.Router) *ChiMapping {
	return &ChiMapping{router: router}
}

// Handler implements Mapping. It matches when router has a route for the
// request's method and path.
func (m *ChiMapping) Handler(r *http.Request) (http.Handler, bool) {
	path := r.URL.RawPath
	if path == "" {
		path = r.URL.Path
	}
	if !m.router.Match(chi.NewRouteContext(), r.Method, path) {
		return nil, false
	}
	return m.router, true
}
