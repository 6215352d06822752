// Package cloud resolves the service bindings a managed cloud platform hands
// to this process and looks them up by logical service id.
package cloud

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
)

// ServiceBinding is one service bound to the application.
type ServiceBinding struct {
	Name        string
	Label       string
	Tags        []string
	Plan        string
	Credentials map[string]any
}

// Credential returns a credential as a string. Numbers are formatted without
// a fractional part when they are integral (ports).
func (b ServiceBinding) Credential(key string) (string, bool) {
	raw, ok := b.Credentials[key]
	if !ok || raw == nil {
		return "", false
	}
	s := stringify(raw)
	return s, s != ""
}

// URI returns the "uri" credential, falling back to "url" and the first of "uris".
func (b ServiceBinding) URI() (string, bool) {
	for _, k := range []string{"uri", "url"} {
		if v, ok := b.Credential(k); ok {
			return v, true
		}
	}
	if list, ok := b.Credentials["uris"].([]any); ok && len(list) > 0 {
		if s, ok := list[0].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// HasTag reports whether the binding carries tag.
func (b ServiceBinding) HasTag(tag string) bool { return slices.Contains(b.Tags, tag) }

// Runtime is what a Discoverer reports about the hosting platform.
type Runtime struct {
	AppName       string
	InstanceID    string
	InstanceIndex int
	SpaceName     string
	Bindings      []ServiceBinding
}

// Discoverer detects the cloud runtime and lists its service bindings.
type Discoverer interface {
	Discover() (*Runtime, error)
}

// DiscovererFunc adapts a function to Discoverer.
type DiscovererFunc func() (*Runtime, error)

// Discover implements Discoverer.
func (f DiscovererFunc) Discover() (*Runtime, error) { return f() }

// Cloud is the discovery handle shared by every connector of a context.
// Discovery runs once, in New.
type Cloud struct {
	runtime Runtime

	mu      sync.Mutex
	lookups map[string]int
}

// New runs discovery through d.
//
// Errors from d are returned as they are when they are already a
// *DiscoveryUnavailableError, and wrapped in one otherwise.
func New(d Discoverer) (*Cloud, error) {
	if d == nil {
		return nil, &DiscoveryUnavailableError{Reason: "no discoverer configured"}
	}
	rt, err := d.Discover()
	if err != nil {
		var unavailable *DiscoveryUnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		return nil, &DiscoveryUnavailableError{Reason: "discovery failed", Err: err}
	}
	if rt == nil {
		return nil, &DiscoveryUnavailableError{Reason: "discoverer returned no runtime"}
	}
	c := &Cloud{runtime: *rt, lookups: map[string]int{}}
	c.runtime.Bindings = slices.Clone(rt.Bindings)
	return c, nil
}

// AppName returns the application name reported by the platform.
func (c *Cloud) AppName() string { return c.runtime.AppName }

// InstanceID returns the application instance id reported by the platform.
func (c *Cloud) InstanceID() string { return c.runtime.InstanceID }

// ServiceBindings returns every discovered binding.
func (c *Cloud) ServiceBindings() []ServiceBinding { return slices.Clone(c.runtime.Bindings) }

// ServiceBinding returns the binding for serviceID.
//
// A binding whose Name equals serviceID wins. Otherwise exactly one binding
// must carry serviceID as its Label or one of its Tags; zero or several
// matches yield a *ServiceBindingNotFoundError.
func (c *Cloud) ServiceBinding(serviceID string) (ServiceBinding, error) {
	c.mu.Lock()
	c.lookups[serviceID]++
	c.mu.Unlock()

	for _, b := range c.runtime.Bindings {
		if b.Name == serviceID {
			return b, nil
		}
	}

	var matches []ServiceBinding
	for _, b := range c.runtime.Bindings {
		if b.Label == serviceID || b.HasTag(serviceID) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return ServiceBinding{}, &ServiceBindingNotFoundError{ServiceID: serviceID}
	default:
		return ServiceBinding{}, &ServiceBindingNotFoundError{ServiceID: serviceID, Reason: "ambiguous: several bindings match by label or tag"}
	}
}

// Lookups reports how many times ServiceBinding was asked for serviceID.
func (c *Cloud) Lookups(serviceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups[serviceID]
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
