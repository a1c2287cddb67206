// Package registry maps a workflow's declared node types onto
// concrete node.Node constructors, the join point between the IR and
// the handful of node implementations the engine ships with.
package registry

import (
	"fmt"
	"sort"

	"github.com/lyzr/flowcore/node"
)

// Declaration is the static metadata the validator and compiler need
// about a node type: its interface shape, independent of any single
// node instance's params.
type Declaration struct {
	Type           string
	RequiredParams []string
	OptionalParams []string
	// AllowAnyParam marks a node type whose params are opaque to the
	// engine (e.g. passthrough nodes), exempting it from the
	// validator's unknown-params check.
	AllowAnyParam bool
}

// Factory constructs a fresh node.Node instance for a declared type.
type Factory func() node.Node

// Registry looks up node types and instantiates them.
type Registry interface {
	Lookup(nodeType string) (Declaration, bool)
	New(nodeType string) (node.Node, error)
	Types() []string
}

// StaticRegistry is a map-backed Registry built once at startup from
// a fixed set of factories, resolving a node type string to a
// constructor.
type StaticRegistry struct {
	declarations map[string]Declaration
	factories    map[string]Factory
}

// NewStatic builds a StaticRegistry from a set of declarations paired
// with factories keyed by the same type string.
func NewStatic(declarations []Declaration, factories map[string]Factory) *StaticRegistry {
	declIndex := make(map[string]Declaration, len(declarations))
	for _, d := range declarations {
		declIndex[d.Type] = d
	}
	return &StaticRegistry{declarations: declIndex, factories: factories}
}

func (r *StaticRegistry) Lookup(nodeType string) (Declaration, bool) {
	d, ok := r.declarations[nodeType]
	return d, ok
}

func (r *StaticRegistry) New(nodeType string) (node.Node, error) {
	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, fmt.Errorf("registry: unknown node type %q", nodeType)
	}
	return factory(), nil
}

// Types returns every registered type name, sorted, for validator
// error messages and diagnostics.
func (r *StaticRegistry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
