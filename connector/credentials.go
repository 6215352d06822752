// Package connector turns discovered service bindings into service connectors:
// a pooled relational DataSource and a RabbitMQ connection factory.
//
// Connectors are lazy. Building one validates the binding and prepares
// connection parameters; no network I/O happens until first use.
package connector

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sghaida/xdparent/cloud"
)

// Connector kinds, as reported in *cloud.ServiceBindingNotFoundError.
const (
	KindDatastore = "relational-datastore"
	KindBroker    = "message-broker"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// endpointCredentials is the common shape of datastore and broker bindings:
// either a URI, or discrete host fields.
type endpointCredentials struct {
	URI      string `validate:"required_without=Hostname,omitempty,uri"`
	Hostname string `validate:"required_without=URI"`
	Port     string `validate:"omitempty,numeric"`
	Name     string
	Username string
	Password string
}

func readCredentials(b cloud.ServiceBinding) endpointCredentials {
	c := endpointCredentials{}
	c.URI, _ = b.URI()
	c.Hostname = first(b, "hostname", "host")
	c.Port = first(b, "port")
	c.Name = first(b, "name", "vhost", "database")
	c.Username = first(b, "username", "user")
	c.Password = first(b, "password")
	return c
}

func first(b cloud.ServiceBinding, keys ...string) string {
	for _, k := range keys {
		if v, ok := b.Credential(k); ok {
			return v
		}
	}
	return ""
}

func (c endpointCredentials) validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
	}
	return errors.New("invalid credentials: " + strings.Join(fields, ", "))
}

func unsuitable(b cloud.ServiceBinding, kind, reason string) error {
	return &cloud.ServiceBindingNotFoundError{ServiceID: b.Name, Kind: kind, Reason: reason}
}
