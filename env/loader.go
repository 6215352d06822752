package env

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader builds an Environment from layered sources.
//
// Precedence, lowest to highest:
//  1. property files, in the order they were added (YAML; nested maps become dotted keys)
//  2. process environment variables
//  3. explicit overrides
type Loader struct {
	files     []fileSource
	environ   func() []string
	overrides map[string]string
	profiles  []string
}

type fileSource struct {
	path     string
	optional bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFile adds a required YAML property file.
func WithFile(path string) LoaderOption {
	return func(l *Loader) { l.files = append(l.files, fileSource{path: path}) }
}

// WithOptionalFile adds a YAML property file that may be absent.
func WithOptionalFile(path string) LoaderOption {
	return func(l *Loader) { l.files = append(l.files, fileSource{path: path, optional: true}) }
}

// WithEnviron replaces os.Environ as the source of environment variables.
// Pass nil to ignore the process environment entirely.
func WithEnviron(environ []string) LoaderOption {
	return func(l *Loader) { l.environ = func() []string { return environ } }
}

// WithOverrides sets properties that win over every other source.
func WithOverrides(props map[string]string) LoaderOption {
	return func(l *Loader) {
		for k, v := range props {
			l.overrides[k] = v
		}
	}
}

// WithProfiles activates profiles in addition to those named by ActiveProfilesKey.
func WithProfiles(profiles ...string) LoaderOption {
	return func(l *Loader) { l.profiles = append(l.profiles, profiles...) }
}

// NewLoader returns a Loader reading os.Environ plus whatever opts add.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		environ:   os.Environ,
		overrides: map[string]string{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and returns the resulting Environment.
func (l *Loader) Load() (*Environment, error) {
	props := map[string]string{}

	for _, f := range l.files {
		if err := loadFile(f, props); err != nil {
			return nil, err
		}
	}

	if l.environ != nil {
		for _, kv := range l.environ() {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				continue
			}
			props[Canonical(k)] = v
		}
	}

	for k, v := range l.overrides {
		props[Canonical(k)] = v
	}

	return New(l.profiles, props), nil
}

// FromOS loads an Environment from the process environment only.
func FromOS() (*Environment, error) { return NewLoader().Load() }

func loadFile(f fileSource, props map[string]string) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if f.optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env: read %s: %w", f.path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &ConfigurationError{Key: f.path, Err: err}
	}
	flatten("", doc, props)
	return nil
}

func flatten(prefix string, node any, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(join(prefix, k), child, out)
		}
	case map[any]any:
		for k, child := range v {
			flatten(join(prefix, fmt.Sprint(k)), child, out)
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		out[Canonical(prefix)] = strings.Join(parts, ",")
	case nil:
		out[Canonical(prefix)] = ""
	default:
		out[Canonical(prefix)] = fmt.Sprint(v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
