// Package env holds the immutable Environment a process is composed against:
// the set of active profiles and a flat property table.
//
// Property keys are relaxed: "endpoints.health.enabled", "ENDPOINTS_HEALTH_ENABLED"
// and "endpoints-health-enabled" name the same property.
package env

import (
	"maps"
	"slices"
	"strings"
)

// ActiveProfilesKey lists active profiles, comma separated.
const ActiveProfilesKey = "spring.profiles.active"

// Environment is an immutable snapshot of profiles and properties.
type Environment struct {
	profiles []string
	props    map[string]string
}

// New builds an Environment from explicit profiles and properties.
//
// Profiles named by the ActiveProfilesKey property are added to profiles.
// Blank profile names are dropped and duplicates collapse.
func New(profiles []string, props map[string]string) *Environment {
	e := &Environment{props: make(map[string]string, len(props))}
	for k, v := range props {
		e.props[Canonical(k)] = v
	}

	active := slices.Clone(profiles)
	if v, ok := e.props[Canonical(ActiveProfilesKey)]; ok {
		active = append(active, strings.Split(v, ",")...)
	}
	for _, p := range active {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(e.profiles, p) {
			continue
		}
		e.profiles = append(e.profiles, p)
	}
	slices.Sort(e.profiles)
	return e
}

// Empty returns an Environment with no profiles and no properties.
func Empty() *Environment { return New(nil, nil) }

// Canonical returns the relaxed form of a property key: lower case with
// '_' and '-' folded to '.'.
func Canonical(key string) string {
	key = strings.TrimSpace(strings.ToLower(key))
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return '.'
		}
		return r
	}, key)
}

// Profiles returns the active profiles, sorted.
func (e *Environment) Profiles() []string { return slices.Clone(e.profiles) }

// IsActive reports whether profile is active.
func (e *Environment) IsActive(profile string) bool {
	return slices.Contains(e.profiles, profile)
}

// AllActive reports whether every named profile is active.
func (e *Environment) AllActive(profiles ...string) bool {
	for _, p := range profiles {
		if !e.IsActive(p) {
			return false
		}
	}
	return true
}

// Property returns the raw value of key.
func (e *Environment) Property(key string) (string, bool) {
	v, ok := e.props[Canonical(key)]
	return v, ok
}

// String returns the value of key, or def when it is unset.
func (e *Environment) String(key, def string) string {
	if v, ok := e.Property(key); ok {
		return v
	}
	return def
}

// Bool returns the boolean value of key, or def when it is unset or blank.
//
// Only true and false are accepted, case-insensitively and ignoring
// surrounding space. Anything else is a ConfigurationError.
func (e *Environment) Bool(key string, def bool) (bool, error) {
	raw, ok := e.Property(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, &ConfigurationError{Key: key, Value: raw, Err: ErrInvalidBool}
}

// Properties returns a copy of the property table keyed by canonical key.
func (e *Environment) Properties() map[string]string { return maps.Clone(e.props) }

// Environ renders the property table as sorted KEY=VALUE entries, keys in
// upper case with '.' folded to '_'. It is never nil.
func (e *Environment) Environ() []string {
	out := make([]string, 0, len(e.props))
	for _, k := range slices.Sorted(maps.Keys(e.props)) {
		out = append(out, strings.ToUpper(strings.ReplaceAll(k, ".", "_"))+"="+e.props[k])
	}
	return out
}
