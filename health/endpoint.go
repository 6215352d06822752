package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// EndpointID is the id the health endpoint is exposed under.
const EndpointID = "health"

// Endpoint exposes an Indicator as a read-only operation and over HTTP.
type Endpoint struct {
	indicator Indicator
}

// NewEndpoint returns an endpoint backed by ind. A nil ind is treated as
// VanillaIndicator.
func NewEndpoint(ind Indicator) *Endpoint {
	if ind == nil {
		ind = VanillaIndicator{}
	}
	return &Endpoint{indicator: ind}
}

// ID returns EndpointID.
func (e *Endpoint) ID() string { return EndpointID }

// Invoke returns the current health.
func (e *Endpoint) Invoke(ctx context.Context) Health {
	return e.indicator.Health(ctx)
}

// ServeHTTP writes the current health as JSON: 200 when UP or UNKNOWN,
// 503 when DOWN or OUT_OF_SERVICE.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h := e.Invoke(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(h.Status()))
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(h)
}

// StatusCode maps a Status to the HTTP status the endpoint answers with.
func StatusCode(s Status) int {
	switch s {
	case StatusDown, StatusOutOfService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}
