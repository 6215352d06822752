// Package health reports whether the process is fit to serve.
package health

import (
	"context"
	"encoding/json"
	"maps"
)

// Status is the coarse health of a component.
type Status string

const (
	StatusUp           Status = "UP"
	StatusDown         Status = "DOWN"
	StatusUnknown      Status = "UNKNOWN"
	StatusOutOfService Status = "OUT_OF_SERVICE"
)

// Health is a read-only health report.
type Health struct {
	status  Status
	details map[string]any
}

// Up returns an UP report without details.
func Up() Health { return Health{status: StatusUp} }

// Down returns a DOWN report carrying err as the "error" detail.
func Down(err error) Health {
	h := Health{status: StatusDown}
	if err != nil {
		h.details = map[string]any{"error": err.Error()}
	}
	return h
}

// New returns a report with the given status.
func New(s Status) Health { return Health{status: s} }

// Status returns the reported status.
func (h Health) Status() Status { return h.status }

// Details returns a copy of the report's details.
func (h Health) Details() map[string]any { return maps.Clone(h.details) }

// WithDetail returns a copy of h with key set to value.
func (h Health) WithDetail(key string, value any) Health {
	d := maps.Clone(h.details)
	if d == nil {
		d = make(map[string]any, 1)
	}
	d[key] = value
	return Health{status: h.status, details: d}
}

// MarshalJSON renders {"status":"UP","details":{...}}; details are omitted when empty.
func (h Health) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status  Status         `json:"status"`
		Details map[string]any `json:"details,omitempty"`
	}{h.status, h.details})
}

// Indicator reports the health of one component.
type Indicator interface {
	Health(ctx context.Context) Health
}

// IndicatorFunc adapts a function to Indicator.
type IndicatorFunc func(ctx context.Context) Health

// Health implements Indicator.
func (f IndicatorFunc) Health(ctx context.Context) Health { return f(ctx) }

// VanillaIndicator is always UP.
type VanillaIndicator struct{}

// Health implements Indicator.
func (VanillaIndicator) Health(context.Context) Health { return Up() }
