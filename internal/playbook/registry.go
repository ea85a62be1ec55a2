package playbook

import (
	"context"
	"fmt"
	"sort"
)

// Registration binds a playbook name and factory to the finding types it
// handles.
type Registration struct {
	Name         string
	Factory      Factory
	FindingTypes []string
}

type entry struct {
	name    string
	factory Factory
}

// Registry maps finding types to playbook factories. It is built once at
// startup and only read afterwards; it is not safe for concurrent Register
// calls.
type Registry struct {
	byType map[string]entry
	order  []string // playbook names in first-registration order
	seen   map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]entry),
		seen:   make(map[string]struct{}),
	}
}

// Register maps every finding type to factory under name. A finding type
// that is already registered is overwritten: the last registration wins.
func (r *Registry) Register(name string, factory Factory, findingTypes ...string) {
	if _, ok := r.seen[name]; !ok {
		r.seen[name] = struct{}{}
		r.order = append(r.order, name)
	}
	for _, t := range findingTypes {
		r.byType[t] = entry{name: name, factory: factory}
	}
}

// Lookup returns the registration currently handling findingType.
// FindingTypes lists every type resolving to the same playbook.
func (r *Registry) Lookup(findingType string) (Registration, bool) {
	e, ok := r.byType[findingType]
	if !ok {
		return Registration{}, false
	}
	return Registration{Name: e.name, Factory: e.factory, FindingTypes: r.typesFor(e.name)}, true
}

// FindingTypes returns every registered finding type, sorted.
func (r *Registry) FindingTypes() []string {
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Registrations returns one entry per playbook in first-registration order.
// A playbook whose finding types were all taken over by later registrations
// is omitted.
func (r *Registry) Registrations() []Registration {
	var out []Registration
	for _, name := range r.order {
		types := r.typesFor(name)
		if len(types) == 0 {
			continue
		}
		out = append(out, Registration{Name: name, Factory: r.byType[types[0]].factory, FindingTypes: types})
	}
	return out
}

// GetInstance constructs the playbook registered for findingType. build is
// called only when a playbook exists.
func (r *Registry) GetInstance(ctx context.Context, findingType string, build EnvBuilder) (Playbook, error) {
	e, ok := r.byType[findingType]
	if !ok {
		return nil, &NoPlaybookRegisteredError{FindingType: findingType}
	}
	env, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build environment for playbook %s: %w", e.name, err)
	}
	return e.factory(env), nil
}

// Len returns the number of registered finding types.
func (r *Registry) Len() int { return len(r.byType) }

func (r *Registry) typesFor(name string) []string {
	var out []string
	for t, e := range r.byType {
		if e.name == name {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Duplicates reports finding types claimed by more than one registration in
// regs, mapped to the claiming playbook names in order. A Registry silently
// resolves such conflicts by last-write-wins; callers use this to surface
// them instead.
func Duplicates(regs []Registration) map[string][]string {
	claims := make(map[string][]string)
	for _, reg := range regs {
		for _, t := range reg.FindingTypes {
			claims[t] = append(claims[t], reg.Name)
		}
	}
	out := make(map[string][]string)
	for t, names := range claims {
		if len(names) > 1 {
			out[t] = names
		}
	}
	return out
}

// FromRegistrations builds a Registry by registering regs in order.
func FromRegistrations(regs []Registration) *Registry {
	r := NewRegistry()
	for _, reg := range regs {
		r.Register(reg.Name, reg.Factory, reg.FindingTypes...)
	}
	return r
}
