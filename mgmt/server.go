// Package mgmt provides the management-bean server every context in a process
// shares, and the Exporter that publishes a context's beans on it.
//
// The server is a Prometheus registry. It is located or created through a
// di.Registry, so a process never ends up with two of them.
package mgmt

import (
	"net/http"
	"reflect"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sghaida/xdparent/di"
)

// ServerKey is the registry key the process server is stored under.
const ServerKey = "mgmt.server"

// Server is a management-bean server.
type Server struct {
	id       string
	registry *prometheus.Registry
}

// NewServer returns a server with Go runtime and process collectors registered.
func NewServer() *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Server{id: uuid.NewString(), registry: reg}
}

// LocateServer returns the server stored in reg, creating and storing one when
// none exists. located reports whether an existing server was reused.
// A nil reg means di.Process().
func LocateServer(reg di.Registry) (srv *Server, located bool, err error) {
	if reg == nil {
		reg = di.Process()
	}
	raw, located, err := reg.LocateOrProvide(ServerKey, func() (any, error) {
		return NewServer(), nil
	})
	if err != nil {
		return nil, false, err
	}
	srv, ok := raw.(*Server)
	if !ok || srv == nil {
		got := "<nil>"
		if raw != nil {
			got = reflect.TypeOf(raw).String()
		}
		return nil, false, di.WrongTypeDependencyError{Key: di.Key(ServerKey), GotType: got}
	}
	return srv, located, nil
}

// ID identifies the server instance.
func (s *Server) ID() string { return s.id }

// Register adds c to the server.
func (s *Server) Register(c prometheus.Collector) error { return s.registry.Register(c) }

// Unregister removes c and reports whether it was registered.
func (s *Server) Unregister(c prometheus.Collector) bool { return s.registry.Unregister(c) }

// Registerer exposes the server for wrapping registerers.
func (s *Server) Registerer() prometheus.Registerer { return s.registry }

// Gatherer exposes the server for scraping.
func (s *Server) Gatherer() prometheus.Gatherer { return s.registry }

// Handler serves the server's metrics in the Prometheus exposition format.
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}
