package policyfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"mercator-hq/warden/pkg/warden/filter"
	"mercator-hq/warden/pkg/warden/types"
)

// RouteSpec is a route as written in the file.
type RouteSpec struct {
	URL    string `yaml:"url"`
	Method string `yaml:"method,omitempty"`
}

// Entry is one declared policy with the routes it guards.
type Entry struct {
	types.Policy `yaml:",inline"`
	Routes       []RouteSpec `yaml:"routes,omitempty"`
}

// File is a parsed policy file.
type File struct {
	Policies []Entry `yaml:"policies"`
}

// Load reads, parses and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a policy document. Unknown fields are
// rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate normalizes the entries and reports every problem found.
func (f *File) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(f.Policies))

	for i := range f.Policies {
		e := &f.Policies[i]
		e.Normalize()
		if err := e.Policy.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("policies[%d]: %w", i, err))
		}

		id := e.Service + "/" + e.Name
		if seen[id] {
			errs = append(errs, fmt.Errorf("policies[%d]: %s declared twice", i, id))
		}
		seen[id] = true

		for j, r := range e.Routes {
			if r.URL == "" {
				errs = append(errs, fmt.Errorf("policies[%d].routes[%d]: url is required", i, j))
				continue
			}
			if _, err := filter.NewRoute(r.URL, r.Method); err != nil {
				errs = append(errs, fmt.Errorf("policies[%d].routes[%d]: %w", i, j, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Declared returns the policies without their routes.
func (f *File) Declared() []types.Policy {
	out := make([]types.Policy, len(f.Policies))
	for i, e := range f.Policies {
		out[i] = e.Policy
	}
	return out
}

// Routes builds the filter routes. Each declared route charges the policy
// it is listed under.
func (f *File) Routes() ([]filter.Route, error) {
	var routes []filter.Route
	for _, e := range f.Policies {
		for _, r := range e.Routes {
			route, err := filter.NewRoute(r.URL, r.Method, e.Policy)
			if err != nil {
				return nil, fmt.Errorf("policy %s: %w", e.Policy.String(), err)
			}
			routes = append(routes, route)
		}
	}
	return routes, nil
}

// Marshal renders the file back to YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}
