package parent

import (
	"errors"

	"github.com/sghaida/xdparent/cloud"
	"github.com/sghaida/xdparent/connector"
	"github.com/sghaida/xdparent/di"
	"github.com/sghaida/xdparent/health"
	"github.com/sghaida/xdparent/mgmt"
	"github.com/sghaida/xdparent/routing"
)

// Beans is a typed view of a composed root context. Beans whose guard was
// off are nil.
type Beans struct {
	HandlerMapping *routing.DelegatingHandlerMapping
	MBeanServer    *mgmt.Server
	Health         *health.Endpoint
	Exporter       *mgmt.Exporter
	Cloud          *cloud.Cloud
	DataSource     *connector.DataSource
	Rabbit         *connector.RabbitConnectionFactory
}

// BeansOf reads the root beans out of c or one of its ancestors.
func BeansOf(c *di.Context) (Beans, error) {
	if c == nil {
		return Beans{}, di.ErrNilContext
	}

	var b Beans
	var err error
	if b.HandlerMapping, err = di.Lookup[routing.DelegatingHandlerMapping](c, BeanDelegatingHandlerMapping); err != nil {
		return Beans{}, err
	}
	if b.MBeanServer, err = di.Lookup[mgmt.Server](c, BeanMBeanServer); err != nil {
		return Beans{}, err
	}
	if b.Health, err = optional[health.Endpoint](c, BeanHealthEndpoint); err != nil {
		return Beans{}, err
	}
	if b.Exporter, err = optional[mgmt.Exporter](c, BeanXDParentMBean); err != nil {
		return Beans{}, err
	}
	if b.Cloud, err = optional[cloud.Cloud](c, BeanCloud); err != nil {
		return Beans{}, err
	}
	if b.DataSource, err = optional[connector.DataSource](c, BeanDataSource); err != nil {
		return Beans{}, err
	}
	if b.Rabbit, err = optional[connector.RabbitConnectionFactory](c, BeanRabbitConnectionFactory); err != nil {
		return Beans{}, err
	}
	return b, nil
}

func optional[T any](c *di.Context, key di.DependencyKey) (*T, error) {
	v, err := di.Lookup[T](c, key)
	var missing di.MissingDependencyError
	if errors.As(err, &missing) {
		return nil, nil
	}
	return v, err
}
