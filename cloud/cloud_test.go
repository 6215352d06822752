package cloud_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sghaida/xdparent/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vcapServices = `{
  "cleardb": [{
    "name": "mysql",
    "label": "cleardb",
    "tags": ["mysql", "relational"],
    "plan": "spark",
    "credentials": {"uri": "mysql://u:p@db.example.com:3306/xd?reconnect=true", "port": 3306}
  }],
  "cloudamqp": [{
    "name": "bus",
    "label": "cloudamqp",
    "tags": ["rabbit", "amqp"],
    "plan": "lemur",
    "credentials": {"uris": ["amqp://u:p@mq.example.com/vhost"]}
  }]
}`

const vcapApplication = `{"instance_id":"abc-123","instance_index":2,"name":"xd-admin","space_name":"dev"}`

func runtimeWith(bindings ...cloud.ServiceBinding) cloud.Discoverer {
	return cloud.DiscovererFunc(func() (*cloud.Runtime, error) {
		return &cloud.Runtime{AppName: "xd", Bindings: bindings}, nil
	})
}

func TestCFDiscoverer_NoRuntime(t *testing.T) {
	t.Parallel()

	_, err := cloud.CFDiscoverer{Environ: []string{"HOME=/home/vcap"}}.Discover()

	var unavailable *cloud.DiscoveryUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Contains(t, err.Error(), "VCAP_APPLICATION")
}

func TestCFDiscoverer_MalformedApplication(t *testing.T) {
	t.Parallel()

	_, err := cloud.CFDiscoverer{Environ: []string{"VCAP_APPLICATION={not json"}}.Discover()

	var unavailable *cloud.DiscoveryUnavailableError
	require.True(t, errors.As(err, &unavailable))
	require.NotNil(t, unavailable.Err)
}

func TestCFDiscoverer_ParsesBindings(t *testing.T) {
	t.Parallel()

	rt, err := cloud.CFDiscoverer{Environ: []string{
		"VCAP_APPLICATION=" + vcapApplication,
		"VCAP_SERVICES=" + vcapServices,
	}}.Discover()
	require.NoError(t, err)

	assert.Equal(t, "xd-admin", rt.AppName)
	assert.Equal(t, "abc-123", rt.InstanceID)
	assert.Equal(t, 2, rt.InstanceIndex)
	assert.Equal(t, "dev", rt.SpaceName)

	require.Len(t, rt.Bindings, 2)
	assert.Equal(t, "bus", rt.Bindings[0].Name)
	assert.Equal(t, "mysql", rt.Bindings[1].Name)
	assert.Equal(t, "cleardb", rt.Bindings[1].Label)
	assert.Equal(t, "spark", rt.Bindings[1].Plan)

	port, ok := rt.Bindings[1].Credential("port")
	require.True(t, ok)
	assert.Equal(t, "3306", port)

	uri, ok := rt.Bindings[0].URI()
	require.True(t, ok)
	assert.Equal(t, "amqp://u:p@mq.example.com/vhost", uri)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("metadata endpoint down")

	cases := []struct {
		name      string
		d         cloud.Discoverer
		wantCause error
	}{
		{name: "nil discoverer", d: nil},
		{name: "nil runtime", d: cloud.DiscovererFunc(func() (*cloud.Runtime, error) { return nil, nil })},
		{name: "untyped error is wrapped", d: cloud.DiscovererFunc(func() (*cloud.Runtime, error) { return nil, boom }), wantCause: boom},
		{name: "typed error passes through", d: cloud.CFDiscoverer{Environ: []string{}}},
		{name: "wrapped typed error passes through", d: cloud.DiscovererFunc(func() (*cloud.Runtime, error) {
			return nil, fmt.Errorf("metadata: %w", &cloud.DiscoveryUnavailableError{Reason: "not on a platform"})
		})},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, err := cloud.New(tc.d)
			assert.Nil(t, c)

			var unavailable *cloud.DiscoveryUnavailableError
			require.True(t, errors.As(err, &unavailable))
			if tc.wantCause != nil {
				assert.ErrorIs(t, err, tc.wantCause)
			}
		})
	}
}

func TestNew_WrappedUnavailableIsNotWrappedAgain(t *testing.T) {
	t.Parallel()

	inner := &cloud.DiscoveryUnavailableError{Reason: "not on a platform"}
	wrapped := fmt.Errorf("metadata: %w", inner)

	c, err := cloud.New(cloud.DiscovererFunc(func() (*cloud.Runtime, error) { return nil, wrapped }))
	assert.Nil(t, c)
	assert.Same(t, wrapped, err)

	var unavailable *cloud.DiscoveryUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Same(t, inner, unavailable)
	assert.Equal(t, "metadata: cloud: no cloud runtime detected: not on a platform", err.Error())
}

func TestCloud_DiscoversOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	c, err := cloud.New(cloud.DiscovererFunc(func() (*cloud.Runtime, error) {
		calls++
		return &cloud.Runtime{AppName: "xd", InstanceID: "i-1", Bindings: []cloud.ServiceBinding{{Name: "mysql"}}}, nil
	}))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.ServiceBinding("mysql")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, c.Lookups("mysql"))
	assert.Zero(t, c.Lookups("rabbit"))
	assert.Equal(t, "xd", c.AppName())
	assert.Equal(t, "i-1", c.InstanceID())
	assert.Len(t, c.ServiceBindings(), 1)
}

func TestCloud_ServiceBinding(t *testing.T) {
	t.Parallel()

	c, err := cloud.New(runtimeWith(
		cloud.ServiceBinding{Name: "xd-db", Label: "p-mysql", Tags: []string{"mysql"}},
		cloud.ServiceBinding{Name: "rabbit", Label: "p-rabbitmq"},
		cloud.ServiceBinding{Name: "cache-a", Tags: []string{"redis"}},
		cloud.ServiceBinding{Name: "cache-b", Label: "redis"},
	))
	require.NoError(t, err)

	cases := []struct {
		name      string
		serviceID string
		wantName  string
		wantErr   bool
	}{
		{name: "by name", serviceID: "rabbit", wantName: "rabbit"},
		{name: "by tag", serviceID: "mysql", wantName: "xd-db"},
		{name: "by label", serviceID: "p-rabbitmq", wantName: "rabbit"},
		{name: "ambiguous", serviceID: "redis", wantErr: true},
		{name: "absent", serviceID: "postgres", wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b, err := c.ServiceBinding(tc.serviceID)
			if tc.wantErr {
				var notFound *cloud.ServiceBindingNotFoundError
				require.True(t, errors.As(err, &notFound))
				assert.Equal(t, tc.serviceID, notFound.ServiceID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, b.Name)
		})
	}
}

func TestServiceBinding_Credentials(t *testing.T) {
	t.Parallel()

	b := cloud.ServiceBinding{Credentials: map[string]any{
		"url":    "postgres://db",
		"port":   5432.0,
		"ratio":  0.5,
		"tls":    true,
		"empty":  "",
		"absent": nil,
	}}

	uri, ok := b.URI()
	require.True(t, ok)
	assert.Equal(t, "postgres://db", uri)

	v, _ := b.Credential("port")
	assert.Equal(t, "5432", v)
	v, _ = b.Credential("ratio")
	assert.Equal(t, "0.5", v)
	v, _ = b.Credential("tls")
	assert.Equal(t, "true", v)

	_, ok = b.Credential("empty")
	assert.False(t, ok)
	_, ok = b.Credential("absent")
	assert.False(t, ok)

	_, ok = cloud.ServiceBinding{}.URI()
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `cloud: service binding "mysql" not found`,
		(&cloud.ServiceBindingNotFoundError{ServiceID: "mysql"}).Error())
	assert.Equal(t, `cloud: service binding "rabbit" of kind message-broker not found: unsupported scheme "http"`,
		(&cloud.ServiceBindingNotFoundError{ServiceID: "rabbit", Kind: "message-broker", Reason: `unsupported scheme "http"`}).Error())
	assert.Equal(t, "cloud: no cloud runtime detected: VCAP_APPLICATION is not set",
		(&cloud.DiscoveryUnavailableError{Reason: "VCAP_APPLICATION is not set"}).Error())
}
