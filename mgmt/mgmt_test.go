package mgmt_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sghaida/xdparent/di"
	"github.com/sghaida/xdparent/mgmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolStats struct{ prometheus.Gauge }

func newPoolStats() *poolStats {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pool_open_connections", Help: "Open connections."})
	g.Set(3)
	return &poolStats{Gauge: g}
}

type plain struct{}

func TestLocateServer_CreatesOnceThenLocates(t *testing.T) {
	t.Parallel()

	reg := di.NewMapRegistry()

	first, located, err := mgmt.LocateServer(reg)
	require.NoError(t, err)
	assert.False(t, located)
	require.NotNil(t, first)
	assert.NotEmpty(t, first.ID())

	second, located, err := mgmt.LocateServer(reg)
	require.NoError(t, err)
	assert.True(t, located)
	assert.Same(t, first, second)
}

func TestLocateServer_ReusesProvidedServer(t *testing.T) {
	t.Parallel()

	existing := mgmt.NewServer()
	reg := di.NewMapRegistry().Provide(mgmt.ServerKey, existing)

	srv, located, err := mgmt.LocateServer(reg)
	require.NoError(t, err)
	assert.True(t, located)
	assert.Same(t, existing, srv)
}

func TestLocateServer_Concurrent(t *testing.T) {
	t.Parallel()

	reg := di.NewMapRegistry()
	const n = 16
	got := make([]*mgmt.Server, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			srv, _, err := mgmt.LocateServer(reg)
			assert.NoError(t, err)
			got[i] = srv
		}(i)
	}
	wg.Wait()

	for _, srv := range got {
		assert.Same(t, got[0], srv)
	}
}

func TestLocateServer_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := mgmt.LocateServer(di.NewMapRegistry().Provide(mgmt.ServerKey, "not a server"))
	var wrongType di.WrongTypeDependencyError
	require.True(t, errors.As(err, &wrongType))
	assert.Equal(t, "string", wrongType.GotType)

	_, _, err = mgmt.LocateServer(di.NewMapRegistry().Provide(mgmt.ServerKey, nil))
	require.True(t, errors.As(err, &wrongType))
	assert.Equal(t, "<nil>", wrongType.GotType)
}

func TestServer_HandlerServesRuntimeMetrics(t *testing.T) {
	t.Parallel()

	srv := mgmt.NewServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func assembleExported(t *testing.T, srv *mgmt.Server) (*di.Context, *mgmt.Exporter) {
	t.Helper()
	return assembleExportedAs(t, srv, "ctx-1")
}

func assembleExportedAs(t *testing.T, srv *mgmt.Server, id string) (*di.Context, *mgmt.Exporter) {
	t.Helper()

	c, err := di.Assemble([]di.Definition{
		di.Provide("mbeanServer", nil, func(*di.Resolver) (*mgmt.Server, error) { return srv, nil }),
		di.Provide("pool", nil, func(*di.Resolver) (*poolStats, error) { return newPoolStats(), nil }),
		di.Provide("plain", nil, func(*di.Resolver) (*plain, error) { return &plain{}, nil }),
		di.Provide("XDParentMBean", nil, func(r *di.Resolver) (*mgmt.Exporter, error) {
			s, err := di.Ref[mgmt.Server](r, "mbeanServer")
			if err != nil {
				return nil, err
			}
			return mgmt.NewExporter(s, "XDParentMBean", "xd.parent", id, r.Context())
		}),
	}, di.WithID(id))
	require.NoError(t, err)

	exp, err := di.Lookup[mgmt.Exporter](c, "XDParentMBean")
	require.NoError(t, err)
	return c, exp
}

func TestExporter_ReportsPublishedBeans(t *testing.T) {
	t.Parallel()

	srv := mgmt.NewServer()
	c, exp := assembleExported(t, srv)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, "XDParentMBean", exp.Name())
	assert.Equal(t, "xd.parent", exp.Domain())
	assert.Equal(t, "xd_parent", exp.Namespace())
	assert.Same(t, srv, exp.Server())

	n, err := testutil.GatherAndCount(srv.Gatherer(), "xd_parent_bean_info")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = testutil.GatherAndCount(srv.Gatherer(), "xd_parent_pool_open_connections")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, exp.ExportBeans())

	n, err = testutil.GatherAndCount(srv.Gatherer(), "pool_open_connections")
	require.NoError(t, err)
	assert.Zero(t, n)

	pool := `
# HELP xd_parent_pool_open_connections Open connections.
# TYPE xd_parent_pool_open_connections gauge
xd_parent_pool_open_connections{component="pool",context="ctx-1",domain="xd.parent"} 3
`
	require.NoError(t, testutil.GatherAndCompare(srv.Gatherer(), strings.NewReader(pool), "xd_parent_pool_open_connections"))

	expected := `
# HELP xd_parent_bean_info Beans published by the context.
# TYPE xd_parent_bean_info gauge
xd_parent_bean_info{bean="XDParentMBean",context="ctx-1",domain="xd.parent",type="*mgmt.Exporter"} 1
xd_parent_bean_info{bean="mbeanServer",context="ctx-1",domain="xd.parent",type="*mgmt.Server"} 1
xd_parent_bean_info{bean="plain",context="ctx-1",domain="xd.parent",type="*mgmt_test.plain"} 1
xd_parent_bean_info{bean="pool",context="ctx-1",domain="xd.parent",type="*mgmt_test.poolStats"} 1
`
	require.NoError(t, testutil.GatherAndCompare(srv.Gatherer(), strings.NewReader(expected), "xd_parent_bean_info"))
}

func TestExporter_BeansOfTwoContextsOnOneServer(t *testing.T) {
	t.Parallel()

	srv := mgmt.NewServer()
	for _, id := range []string{"ctx-a", "ctx-b"} {
		c, exp := assembleExportedAs(t, srv, id)
		t.Cleanup(func() { _ = c.Close() })
		require.NoError(t, exp.ExportBeans())
	}

	n, err := testutil.GatherAndCount(srv.Gatherer(), "xd_parent_pool_open_connections")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(srv.Gatherer(), "xd_parent_bean_info")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestExporter_ExportBeansClosedContext(t *testing.T) {
	t.Parallel()

	srv := mgmt.NewServer()
	c, exp := assembleExportedAs(t, srv, "ctx-closed")
	require.NoError(t, c.Close())

	assert.ErrorIs(t, exp.ExportBeans(), di.ErrContextClosed)

	n, err := testutil.GatherAndCount(srv.Gatherer(), "xd_parent_pool_open_connections")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExporter_ReportsNothingBeforePublish(t *testing.T) {
	t.Parallel()

	srv := mgmt.NewServer()
	exp, err := mgmt.NewExporter(srv, "XDParentMBean", "xd.parent", "pending", &di.Handle{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exp.Close() })

	assert.Zero(t, testutil.CollectAndCount(exp))
	assert.ErrorIs(t, exp.ExportBeans(), di.ErrNilContext)
}

func TestExporter_DuplicateContextIsRejected(t *testing.T) {
	t.Parallel()

	srv := mgmt.NewServer()
	first, err := mgmt.NewExporter(srv, "XDParentMBean", "xd.parent", "same", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })

	_, err = mgmt.NewExporter(srv, "XDParentMBean", "xd.parent", "same", nil)
	var already prometheus.AlreadyRegisteredError
	assert.True(t, errors.As(err, &already))

	other, err := mgmt.NewExporter(srv, "XDParentMBean", "xd.parent", "other", nil)
	require.NoError(t, err)
	require.NoError(t, other.Close())
}

func TestExporter_ExportAndClose(t *testing.T) {
	t.Parallel()

	srv := mgmt.NewServer()
	exp, err := mgmt.NewExporter(srv, "XDParentMBean", "xd.parent", "ctx-2", nil)
	require.NoError(t, err)

	requests := prometheus.NewCounter(prometheus.CounterOpts{Name: "http_requests_total", Help: "Requests served."})
	requests.Inc()
	require.NoError(t, exp.Export("http", requests))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `xd_parent_http_requests_total{component="http",context="ctx-2",domain="xd.parent"} 1`)

	require.NoError(t, exp.Close())
	require.NoError(t, exp.Close())

	n, err := testutil.GatherAndCount(srv.Gatherer(), "xd_parent_http_requests_total")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, exp.Export("late", requests), di.ErrContextClosed)
}

func TestExporter_ObjectName(t *testing.T) {
	t.Parallel()

	exp, err := mgmt.NewExporter(mgmt.NewServer(), "XDParentMBean", "xd.parent", "ctx", nil)
	require.NoError(t, err)

	assert.Equal(t, "xd.parent:type=XDParentMBean,name=dataSource", exp.ObjectName("dataSource"))

	_, err = mgmt.NewExporter(nil, "XDParentMBean", "xd.parent", "ctx", nil)
	assert.ErrorIs(t, err, mgmt.ErrNilServer)
}
