package cloud

import "strconv"

// DiscoveryUnavailableError means no cloud runtime could be detected.
type DiscoveryUnavailableError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DiscoveryUnavailableError) Error() string {
	msg := "cloud: no cloud runtime detected"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DiscoveryUnavailableError) Unwrap() error { return e.Err }

// ServiceBindingNotFoundError means no usable binding exists for a service id.
type ServiceBindingNotFoundError struct {
	ServiceID string

	// Kind is the connector kind that asked, when the binding exists but is
	// unusable for it (e.g. "relational-datastore").
	Kind string

	Reason string
}

// Error implements the error interface.
func (e *ServiceBindingNotFoundError) Error() string {
	// Example: cloud: service binding "mysql" not found
	msg := "cloud: service binding " + strconv.Quote(e.ServiceID)
	if e.Kind != "" {
		msg += " of kind " + e.Kind
	}
	msg += " not found"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
