// Package wps implements a Web Processing Service 1.0.0 front end: services
// callable through Execute, the XML documents describing them and the HTTP
// server answering requests.
package wps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/beevik/etree"
	"github.com/maruel/natural"

	"tempus/xmlutil"
)

var (
	// ErrInvalidParameter is reported as InvalidParameterValue.
	ErrInvalidParameter = errors.New("invalid parameter value")
	// ErrNotApplicable is reported as NoApplicableCode with a client error
	// status, the request is valid but cannot be served in the current state.
	ErrNotApplicable = errors.New("not applicable")
	ErrDuplicate     = errors.New("duplicate service")
)

// Parameter is a service input or output, its value is a single element
// valid against Schema.
type Parameter struct {
	Name   string
	Title  string
	Schema *xmlutil.Schema
}

// Values maps parameter names to the element carrying their value.
type Values map[string]*etree.Element

type ExecuteFunc func(ctx context.Context, in Values) (Values, error)

type Service struct {
	Name    string
	Title   string
	Inputs  []Parameter
	Outputs []Parameter
	Execute ExecuteFunc
}

// CheckParameters makes sure values match declarations one to one and are
// valid against their schemas.
func CheckParameters(values Values, params []Parameter) error {
	if len(values) != len(params) {
		return fmt.Errorf("wrong number of parameters, %d instead of %d: %w", len(values), len(params), ErrInvalidParameter)
	}
	declared := make(map[string]*xmlutil.Schema, len(params))
	for _, p := range params {
		declared[p.Name] = p.Schema
	}
	for name, e := range values {
		schema, ok := declared[name]
		if !ok {
			return fmt.Errorf("unknown parameter %q: %w", name, ErrInvalidParameter)
		}
		if e == nil {
			return fmt.Errorf("parameter %q has no value: %w", name, ErrInvalidParameter)
		}
		if err := schema.EnsureValidity(e); err != nil {
			return fmt.Errorf("parameter %q: %w: %w", name, ErrInvalidParameter, err)
		}
	}
	return nil
}

// Run checks inputs, executes the service and checks what it produced.
func (s *Service) Run(ctx context.Context, in Values) (Values, error) {
	if err := CheckParameters(in, s.Inputs); err != nil {
		return nil, err
	}
	out, err := s.Execute(ctx, in)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = Values{}
	}
	if err := CheckParameters(out, s.Outputs); err != nil {
		// outputs are produced here, a mismatch is not the client's fault
		return nil, fmt.Errorf("service %s output: %s", s.Name, err.Error())
	}
	return out, nil
}

type Registry struct {
	mu       sync.RWMutex
	services map[string]*Service
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*Service)}
}

func (r *Registry) Register(s *Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[s.Name]; ok {
		return fmt.Errorf("service %q: %w", s.Name, ErrDuplicate)
	}
	r.services[s.Name] = s
	return nil
}

func (r *Registry) Get(name string) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.services[name]
	return s, ok
}

// Services returns registered services in natural order of their names.
func (r *Registry) Services() []*Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Service, 0, len(r.services))
	for _, s := range r.services {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return natural.Less(list[i].Name, list[j].Name) })
	return list
}

func sortedNames(v Values) []string {
	names := make([]string, 0, len(v))
	for n := range v {
		names = append(names, n)
	}
	sort.Sort(natural.StringSlice(names))
	return names
}
