// Package parent composes the root context every process role shares.
//
// The context always holds the routing facade and the management-bean
// server. The health endpoint and the management exporter are on unless
// switched off by property. Under the "cloud" profile the cloud discovery
// handle and the datastore connector are added, and under "cloud" and
// "rabbit" together the broker connector as well.
//
// Typical usage:
//
//	e, err := env.FromOS()
//	if err != nil { ... }
//	ctx, err := parent.Compose(e, parent.Options{Logger: log})
//	if err != nil { ... }
//	defer ctx.Close()
package parent

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sghaida/xdparent/cloud"
	"github.com/sghaida/xdparent/connector"
	"github.com/sghaida/xdparent/di"
	"github.com/sghaida/xdparent/env"
	"github.com/sghaida/xdparent/health"
	"github.com/sghaida/xdparent/mgmt"
	"github.com/sghaida/xdparent/routing"
	"go.uber.org/zap"
)

// Bean names of the root context.
const (
	BeanDelegatingHandlerMapping di.DependencyKey = "delegatingHandlerMapping"
	BeanMBeanServer              di.DependencyKey = "mbeanServer"
	BeanHealthEndpoint           di.DependencyKey = "healthEndpoint"
	BeanXDParentMBean            di.DependencyKey = "XDParentMBean"
	BeanCloud                    di.DependencyKey = "cloud"
	BeanDataSource               di.DependencyKey = "dataSource"
	BeanRabbitConnectionFactory  di.DependencyKey = "rabbitConnectionFactory"
)

// Management exporter identity.
const (
	ExporterName = "XDParentMBean"
	JMXDomain    = "xd.parent"
)

// Properties read while composing.
const (
	PropHealthEnabled = "endpoints.health.enabled"
	PropJMXEnabled    = "XD_JMX_ENABLED"
	PropContextID     = "xd.parent.context.id"
)

// Profiles and the service names looked up under them.
const (
	ProfileCloud  = "cloud"
	ProfileRabbit = "rabbit"

	ServiceMySQL  = "mysql"
	ServiceRabbit = "rabbit"
)

// Options carries the collaborators Compose needs besides the environment.
// The zero value is usable.
type Options struct {
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	// Registry holds the process-wide management server. Defaults to di.Process().
	Registry di.Registry

	// Discoverer finds the cloud runtime. Defaults to Cloud Foundry discovery
	// over the composed environment's properties, so VCAP_APPLICATION and
	// VCAP_SERVICES are read from it. Only consulted under the cloud profile.
	Discoverer cloud.Discoverer

	// DataSource tunes the datastore pool. May be nil.
	DataSource *connector.DataSourceConfig

	// ContextID names the context. Defaults to the xd.parent.context.id
	// property, then to a random UUID.
	ContextID string
}

func (o Options) withDefaults(e *env.Environment) Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Registry == nil {
		o.Registry = di.Process()
	}
	if o.Discoverer == nil {
		o.Discoverer = cloud.CFDiscoverer{Environ: e.Environ()}
	}
	if o.ContextID == "" {
		o.ContextID = e.String(PropContextID, "")
	}
	if o.ContextID == "" {
		o.ContextID = uuid.NewString()
	}
	return o
}

// Compose assembles the root context for e.
//
// Every guard is evaluated before any bean is built, so a malformed flag
// fails with *env.ConfigurationError without side effects. A failing bean
// fails the whole composition: beans built so far are closed and no context
// is returned. Failures can be matched with errors.As against
// *env.ConfigurationError, *cloud.DiscoveryUnavailableError and
// *cloud.ServiceBindingNotFoundError.
func Compose(e *env.Environment, opts Options) (*di.Context, error) {
	if e == nil {
		e = env.Empty()
	}
	opts = opts.withDefaults(e)
	log := opts.Logger.With(zap.String("context", opts.ContextID))
	log.Info("composing parent context", zap.Strings("profiles", e.Profiles()))

	c, err := di.Assemble(Definitions(e, opts),
		di.WithID(opts.ContextID),
		di.WithLogger(opts.Logger),
	)
	if err != nil {
		log.Error("parent context failed", zap.Error(err))
		return nil, err
	}

	if exp, err := di.Lookup[mgmt.Exporter](c, BeanXDParentMBean); err == nil {
		if err := exp.ExportBeans(); err != nil {
			log.Error("exporting beans failed", zap.Error(err))
			if cerr := c.Close(); cerr != nil {
				log.Warn("closing parent context", zap.Error(cerr))
			}
			return nil, err
		}
	}
	return c, nil
}

// Definitions returns the composition policy for e in declaration order.
// Compose is the usual entry point; Definitions is exposed for child
// assemblies and for describing the policy without building it.
func Definitions(e *env.Environment, opts Options) []di.Definition {
	if e == nil {
		e = env.Empty()
	}
	opts = opts.withDefaults(e)
	log := opts.Logger

	defs := []di.Definition{
		di.Provide(BeanDelegatingHandlerMapping, nil, func(*di.Resolver) (*routing.DelegatingHandlerMapping, error) {
			return routing.NewDelegatingHandlerMapping(), nil
		}),
		di.Provide(BeanMBeanServer, nil, func(*di.Resolver) (*mgmt.Server, error) {
			srv, located, err := mgmt.LocateServer(opts.Registry)
			if err != nil {
				return nil, err
			}
			log.Debug("management server", zap.String("server", srv.ID()), zap.Bool("located", located))
			return srv, nil
		}),
		di.Provide(BeanHealthEndpoint, flag(e, PropHealthEnabled), func(*di.Resolver) (*health.Endpoint, error) {
			return health.NewEndpoint(health.VanillaIndicator{}), nil
		}),
		di.Provide(BeanXDParentMBean, flag(e, PropJMXEnabled), func(r *di.Resolver) (*mgmt.Exporter, error) {
			srv, err := di.Ref[mgmt.Server](r, BeanMBeanServer)
			if err != nil {
				return nil, err
			}
			return mgmt.NewExporter(srv, ExporterName, JMXDomain, opts.ContextID, r.Context())
		}),
	}
	return append(defs, cloudDefinitions(e, opts)...)
}

func cloudDefinitions(e *env.Environment, opts Options) []di.Definition {
	return []di.Definition{
		di.Provide(BeanCloud, profiles(e, ProfileCloud), func(*di.Resolver) (*cloud.Cloud, error) {
			c, err := cloud.New(opts.Discoverer)
			if err != nil {
				return nil, err
			}
			opts.Logger.Info("cloud runtime discovered",
				zap.String("app", c.AppName()),
				zap.Int("bindings", len(c.ServiceBindings())),
			)
			return c, nil
		}),
		di.Provide(BeanDataSource, profiles(e, ProfileCloud), func(r *di.Resolver) (*connector.DataSource, error) {
			b, err := binding(r, ServiceMySQL, connector.KindDatastore)
			if err != nil {
				return nil, err
			}
			return connector.NewDataSource(b, opts.DataSource)
		}),
		di.Provide(BeanRabbitConnectionFactory, di.AllOf(profiles(e, ProfileCloud), profiles(e, ProfileRabbit)), func(r *di.Resolver) (*connector.RabbitConnectionFactory, error) {
			b, err := binding(r, ServiceRabbit, connector.KindBroker)
			if err != nil {
				return nil, err
			}
			return connector.NewRabbitConnectionFactory(b)
		}),
	}
}

// binding looks serviceID up on the context's cloud bean.
func binding(r *di.Resolver, serviceID, kind string) (cloud.ServiceBinding, error) {
	c, err := di.Ref[cloud.Cloud](r, BeanCloud)
	if err != nil {
		return cloud.ServiceBinding{}, err
	}
	b, err := c.ServiceBinding(serviceID)
	if err != nil {
		var notFound *cloud.ServiceBindingNotFoundError
		if errors.As(err, &notFound) && notFound.Kind == "" {
			notFound.Kind = kind
		}
		return cloud.ServiceBinding{}, err
	}
	return b, nil
}

// flag is active when key is true or unset.
func flag(e *env.Environment, key string) di.Guard {
	return func() (bool, error) { return e.Bool(key, true) }
}

// profiles is active when every one of names is an active profile.
// Guards combining several conditions are built with di.AllOf.
func profiles(e *env.Environment, names ...string) di.Guard {
	return func() (bool, error) { return e.AllActive(names...), nil }
}
