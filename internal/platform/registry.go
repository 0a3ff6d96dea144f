package platform

import (
	"fmt"
	"maps"
	"sort"

	"dario.cat/mergo"
)

// Registry holds the descriptors known to one run.
type Registry struct {
	order       []string
	builtins    int
	descriptors map[string]Descriptor
}

// NewRegistry creates a registry holding the built-in descriptors.
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[string]Descriptor)}
	for _, d := range Builtin() {
		r.order = append(r.order, d.Name)
		r.descriptors[d.Name] = d
	}
	r.builtins = len(r.order)
	return r
}

// Get returns the descriptor called name.
func (r *Registry) Get(name string) (Descriptor, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPlatform, name, r.Names())
	}
	return d, nil
}

// Names returns the platform names, built-ins first in display order,
// then user-defined platforms alphabetically.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns every descriptor in Names order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Override merges override into the descriptor called name. Non-zero fields
// of override win; map entries are merged key by key. An unknown name
// registers a new platform, which must then be complete on its own.
//
// The merged descriptor is validated before it replaces the old one, so a
// failed override leaves the registry unchanged.
func (r *Registry) Override(name string, override Descriptor) error {
	override.Name = name

	base, known := r.descriptors[name]
	if !known {
		base = Descriptor{Name: name}
	}
	merged := base
	merged.Headers = maps.Clone(base.Headers)
	merged.Schema.Fields = maps.Clone(base.Schema.Fields)
	if base.Schema.Block != nil {
		block := *base.Schema.Block
		merged.Schema.Block = &block
	}

	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge platform %s: %w", name, err)
	}
	if err := merged.Validate(); err != nil {
		return err
	}

	r.descriptors[name] = merged
	if !known {
		r.order = append(r.order, name)
		sort.Strings(r.order[r.builtins:])
	}
	return nil
}
