package cloud

import (
	"os"
	"slices"
	"strings"

	cfenv "github.com/cloudfoundry-community/go-cfenv"
)

// CFDiscoverer reads the Cloud Foundry VCAP_APPLICATION / VCAP_SERVICES variables.
type CFDiscoverer struct {
	// Environ replaces os.Environ when non-nil.
	Environ []string
}

// Discover implements Discoverer.
func (d CFDiscoverer) Discover() (*Runtime, error) {
	environ := d.Environ
	if environ == nil {
		environ = os.Environ()
	}
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	if strings.TrimSpace(vars["VCAP_APPLICATION"]) == "" {
		return nil, &DiscoveryUnavailableError{Reason: "VCAP_APPLICATION is not set"}
	}

	app, err := cfenv.New(vars)
	if err != nil {
		return nil, &DiscoveryUnavailableError{Reason: "cannot parse VCAP environment", Err: err}
	}

	rt := &Runtime{
		AppName:       app.Name,
		InstanceID:    app.ID,
		InstanceIndex: app.Index,
		SpaceName:     app.SpaceName,
	}
	for _, services := range app.Services {
		for _, s := range services {
			rt.Bindings = append(rt.Bindings, ServiceBinding{
				Name:        s.Name,
				Label:       s.Label,
				Tags:        slices.Clone(s.Tags),
				Plan:        s.Plan,
				Credentials: s.Credentials,
			})
		}
	}
	slices.SortFunc(rt.Bindings, func(a, b ServiceBinding) int { return strings.Compare(a.Name, b.Name) })
	return rt, nil
}
