package mgmt

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sghaida/xdparent/di"
)

// ErrNilServer is returned by NewExporter without a server.
var ErrNilServer = errors.New("mgmt: nil server")

// Exporter publishes the beans of one context on a Server.
//
// Every published bean is reported as a <namespace>_bean_info gauge. Beans
// that are themselves prometheus.Collectors are registered by ExportBeans
// under the same labels as Export. The namespace is the domain with dots
// replaced by underscores.
type Exporter struct {
	server    *Server
	name      string
	domain    string
	namespace string
	context   string
	beans     *di.Handle

	info *prometheus.Desc

	mu       sync.Mutex
	exported []exported
	closed   bool
}

type exported struct {
	reg prometheus.Registerer
	c   prometheus.Collector
}

// NewExporter registers an exporter named name in domain on srv.
// contextID labels everything the exporter reports; beans is resolved on
// every scrape, so the exporter can be built while its context is assembling.
func NewExporter(srv *Server, name, domain, contextID string, beans *di.Handle) (*Exporter, error) {
	if srv == nil {
		return nil, ErrNilServer
	}
	ns := strings.ReplaceAll(domain, ".", "_")
	e := &Exporter{
		server:    srv,
		name:      name,
		domain:    domain,
		namespace: ns,
		context:   contextID,
		beans:     beans,
		info: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "bean_info"),
			"Beans published by the context.",
			[]string{"bean", "type"},
			prometheus.Labels{"domain": domain, "context": contextID},
		),
	}
	if err := srv.Register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Name returns the exporter's bean name.
func (e *Exporter) Name() string { return e.name }

// Domain returns the management domain.
func (e *Exporter) Domain() string { return e.domain }

// Namespace returns the metric namespace derived from the domain.
func (e *Exporter) Namespace() string { return e.namespace }

// Server returns the server the exporter registered on.
func (e *Exporter) Server() *Server { return e.server }

// ObjectName returns the management object name of component, for example
// "xd.parent:type=XDParentMBean,name=dataSource".
func (e *Exporter) ObjectName(component string) string {
	return e.domain + ":type=" + e.name + ",name=" + component
}

// Export registers c on the server under the exporter's namespace, labelled
// with component. Exported collectors are unregistered by Close.
func (e *Exporter) Export(component string, c prometheus.Collector) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return di.ErrContextClosed
	}
	reg := prometheus.WrapRegistererWithPrefix(e.namespace+"_",
		prometheus.WrapRegistererWith(prometheus.Labels{
			"domain":    e.domain,
			"context":   e.context,
			"component": component,
		}, e.server.Registerer()))
	if err := reg.Register(c); err != nil {
		return err
	}
	e.exported = append(e.exported, exported{reg: reg, c: c})
	return nil
}

// ExportBeans exports every bean of the published context that is a
// prometheus.Collector, with the bean name as component. It fails with
// di.ErrNilContext while the context is not published.
func (e *Exporter) ExportBeans() error {
	c := e.beans.Get()
	if c == nil {
		return di.ErrNilContext
	}
	for _, name := range c.Names() {
		v, _ := c.Lookup(name)
		col, ok := v.(prometheus.Collector)
		if !ok || col == prometheus.Collector(e) {
			continue
		}
		if err := e.Export(string(name), col); err != nil {
			return err
		}
	}
	return nil
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) { ch <- e.info }

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	c := e.beans.Get()
	if c == nil {
		return
	}
	for _, name := range c.Names() {
		typ, _ := c.TypeOf(name)
		ch <- prometheus.MustNewConstMetric(e.info, prometheus.GaugeValue, 1, string(name), typ)
	}
}

// Close unregisters the exporter and everything it exported.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	for i := len(e.exported) - 1; i >= 0; i-- {
		e.exported[i].reg.Unregister(e.exported[i].c)
	}
	e.exported = nil
	e.server.Unregister(e)
	return nil
}
