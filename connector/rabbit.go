package connector

import (
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sghaida/xdparent/cloud"
)

const defaultHeartbeat = 10 * time.Second

// RabbitConnectionFactory opens AMQP 0-9-1 connections to a bound broker.
type RabbitConnectionFactory struct {
	serviceID string
	uri       amqp.URI
	config    amqp.Config
	dial      func(url string, cfg amqp.Config) (*amqp.Connection, error)
}

// NewRabbitConnectionFactory builds a factory from a RabbitMQ binding.
//
// The binding must carry an amqp:// or amqps:// URI ("uri", "url" or the first
// of "uris"), or discrete hostname/port/username/password/vhost fields.
func NewRabbitConnectionFactory(b cloud.ServiceBinding) (*RabbitConnectionFactory, error) {
	creds := readCredentials(b)
	if err := creds.validate(); err != nil {
		return nil, unsuitable(b, KindBroker, err.Error())
	}

	var uri amqp.URI
	if creds.URI != "" {
		parsed, err := amqp.ParseURI(creds.URI)
		if err != nil {
			return nil, unsuitable(b, KindBroker, err.Error())
		}
		uri = parsed
	} else {
		port := 5672
		if creds.Port != "" {
			p, err := strconv.Atoi(creds.Port)
			if err != nil {
				return nil, unsuitable(b, KindBroker, "invalid port "+strconv.Quote(creds.Port))
			}
			port = p
		}
		vhost := creds.Name
		if vhost == "" {
			vhost = "/"
		}
		uri = amqp.URI{
			Scheme:   "amqp",
			Host:     creds.Hostname,
			Port:     port,
			Username: creds.Username,
			Password: creds.Password,
			Vhost:    vhost,
		}
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName("xd-parent:" + b.Name)

	return &RabbitConnectionFactory{
		serviceID: b.Name,
		uri:       uri,
		config: amqp.Config{
			Heartbeat:  defaultHeartbeat,
			Locale:     "en_US",
			Properties: props,
		},
		dial: amqp.DialConfig,
	}, nil
}

// ServiceID returns the name of the binding the factory was built from.
func (f *RabbitConnectionFactory) ServiceID() string { return f.serviceID }

// Host returns the broker host.
func (f *RabbitConnectionFactory) Host() string { return f.uri.Host }

// Port returns the broker port.
func (f *RabbitConnectionFactory) Port() int { return f.uri.Port }

// VirtualHost returns the broker virtual host.
func (f *RabbitConnectionFactory) VirtualHost() string { return f.uri.Vhost }

// Username returns the user the factory authenticates as.
func (f *RabbitConnectionFactory) Username() string { return f.uri.Username }

// Secure reports whether connections use TLS.
func (f *RabbitConnectionFactory) Secure() bool { return f.uri.Scheme == "amqps" }

// NewConnection dials the broker.
func (f *RabbitConnectionFactory) NewConnection() (*amqp.Connection, error) {
	return f.dial(f.uri.String(), f.config)
}
