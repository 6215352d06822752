package env

import (
	"errors"
	"strconv"
)

// ErrInvalidBool marks a property value that is not a recognised boolean.
var ErrInvalidBool = errors.New("invalid boolean")

// ConfigurationError reports a property that cannot be evaluated.
type ConfigurationError struct {
	Key   string
	Value string
	Err   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	// Example: env: property "XD_JMX_ENABLED"="maybe": invalid boolean
	msg := "env: property " + strconv.Quote(e.Key)
	if e.Value != "" {
		msg += "=" + strconv.Quote(e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }
