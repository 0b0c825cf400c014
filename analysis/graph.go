// Package analysis builds the dependency graph of linked inputs and
// reports input coverage.
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/crosstab/crosstab-go/common"
	"github.com/crosstab/crosstab-go/inputs"
)

// Edge links a parent input to a child input. Options maps the canonical
// key of a parent value to the child values it allows.
type Edge struct {
	Parent  string                   `json:"parent" yaml:"parent"`
	Child   string                   `json:"child" yaml:"child"`
	Options map[string][]interface{} `json:"options" yaml:"options"`
}

// NewEdge builds an edge keyed by parent value.
func NewEdge(parent, child string, options map[interface{}][]interface{}) Edge {
	edge := Edge{Parent: parent, Child: child, Options: make(map[string][]interface{}, len(options))}
	for value, allowed := range options {
		normalized := make([]interface{}, len(allowed))
		for i, v := range allowed {
			normalized[i] = common.Normalize(v)
		}
		edge.Options[common.Key(value)] = normalized
	}
	return edge
}

// CyclicDependencyError reports a cycle among linked inputs. Cycle lists the
// path with its first input repeated at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic input dependency: %s", strings.Join(e.Cycle, " -> "))
}

// InvalidEdgeError reports a link the registry cannot support.
type InvalidEdgeError struct {
	Parent string
	Child  string
	Reason string
}

func (e *InvalidEdgeError) Error() string {
	return fmt.Sprintf("link %s -> %s: %s", e.Parent, e.Child, e.Reason)
}

// Descriptor is the serialized form of a graph.
type Descriptor struct {
	Order []string `json:"order"`
	Edges []Edge   `json:"edges"`
}

// Graph is the topologically ordered update plan of linked inputs.
type Graph struct {
	registry *inputs.Registry
	edges    []Edge
	order    []string
	parents  map[string][]Edge
}

// BuildGraph validates edges against the registry and orders the inputs so
// that every parent precedes its children. Ties resolve by declaration order.
func BuildGraph(edges []Edge, registry *inputs.Registry) (*Graph, error) {
	g := &Graph{
		registry: registry,
		parents:  make(map[string][]Edge),
	}

	var errs []error
	seen := make(map[string]struct{})
	for _, edge := range edges {
		ok := true
		for _, id := range []string{edge.Parent, edge.Child} {
			if !registry.Has(id) {
				errs = append(errs, registry.Unknown(id))
				ok = false
			}
		}
		if !ok {
			continue
		}
		if edge.Parent == edge.Child {
			errs = append(errs, &CyclicDependencyError{Cycle: []string{edge.Parent, edge.Child}})
			continue
		}
		key := edge.Parent + "\x00" + edge.Child
		if _, dup := seen[key]; dup {
			errs = append(errs, &InvalidEdgeError{Parent: edge.Parent, Child: edge.Child, Reason: "declared twice"})
			continue
		}
		seen[key] = struct{}{}
		if child, _ := registry.Lookup(edge.Child); !child.Kind.Enumerated() {
			errs = append(errs, &InvalidEdgeError{
				Parent: edge.Parent,
				Child:  edge.Child,
				Reason: "child kind " + string(child.Kind) + " has no options",
			})
			continue
		}
		g.edges = append(g.edges, edge)
		g.parents[edge.Child] = append(g.parents[edge.Child], edge)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// sort runs Kahn's algorithm, picking the earliest declared ready input.
func (g *Graph) sort() ([]string, error) {
	ids := g.registry.IDs()
	indegree := make(map[string]int, len(ids))
	children := make(map[string][]string)
	for _, edge := range g.edges {
		indegree[edge.Child]++
		children[edge.Parent] = append(children[edge.Parent], edge.Child)
	}

	done := make(map[string]bool, len(ids))
	order := make([]string, 0, len(ids))
	for len(order) < len(ids) {
		next := ""
		for _, id := range ids {
			if !done[id] && indegree[id] == 0 {
				next = id
				break
			}
		}
		if next == "" {
			return nil, &CyclicDependencyError{Cycle: g.findCycle(ids, done, children)}
		}
		done[next] = true
		order = append(order, next)
		for _, child := range children[next] {
			indegree[child]--
		}
	}
	return order, nil
}

func (g *Graph) findCycle(ids []string, done map[string]bool, children map[string][]string) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, child := range children[id] {
			if done[child] {
				continue
			}
			switch color[child] {
			case grey:
				for i, s := range stack {
					if s == child {
						cycle = append(append([]string{}, stack[i:]...), child)
						return true
					}
				}
			case white:
				if visit(child) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if !done[id] && color[id] == white && visit(id) {
			return cycle
		}
	}
	return cycle
}

// Order returns every input id in update order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns the validated edges in declaration order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Parents returns the parent ids of child.
func (g *Graph) Parents(child string) []string {
	edges := g.parents[child]
	out := make([]string, len(edges))
	for i, edge := range edges {
		out[i] = edge.Parent
	}
	return out
}

// Descriptor returns the serializable form of the graph.
func (g *Graph) Descriptor() Descriptor {
	return Descriptor{Order: g.Order(), Edges: g.Edges()}
}

// Options returns the valid options of child under state. Each parent
// contributes the union of the option sets of its selected values; several
// parents intersect. A parent with no selection does not constrain the
// child. The second result is false when child has no parents.
func (g *Graph) Options(child string, state inputs.State) ([]interface{}, bool) {
	edges := g.parents[child]
	if len(edges) == 0 {
		return nil, false
	}

	var result []interface{}
	constrained := false
	for _, edge := range edges {
		selected := state.Values(edge.Parent)
		if len(selected) == 0 {
			continue
		}
		allowed := unionOptions(edge, selected)
		if !constrained {
			result = allowed
			constrained = true
			continue
		}
		result = intersect(result, allowed)
	}
	if !constrained {
		spec, _ := g.registry.Lookup(child)
		return spec.Options(), true
	}
	return result, true
}

// Allows reports whether value is a valid selection for child under the
// current parent values in state. Inputs without parents allow anything.
// A single value must be one of the options; a multi value must be a
// non-empty subset of them. An empty option set allows only nil.
func (g *Graph) Allows(child string, state inputs.State, value interface{}) bool {
	options, ok := g.Options(child, state)
	if !ok {
		return true
	}
	if len(options) == 0 {
		return value == nil
	}
	spec, _ := g.registry.Lookup(child)
	if !spec.Kind.MultiValued() {
		return value != nil && contains(options, value)
	}
	items, isSlice := common.ToSlice(value)
	if !isSlice && value != nil {
		items = []interface{}{value}
	}
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !contains(options, item) {
			return false
		}
	}
	return true
}

func unionOptions(edge Edge, selected []interface{}) []interface{} {
	seen := make(map[string]struct{})
	var out []interface{}
	for _, value := range selected {
		for _, option := range edge.Options[common.Key(value)] {
			key := common.Key(option)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, option)
		}
	}
	return out
}

func intersect(base, other []interface{}) []interface{} {
	keep := make(map[string]struct{}, len(other))
	for _, v := range other {
		keep[common.Key(v)] = struct{}{}
	}
	out := base[:0:0]
	for _, v := range base {
		if _, ok := keep[common.Key(v)]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Propagate refreshes the children of the changed inputs in update order
// and returns every dirty input id, changed roots first. Each input is
// visited at most once, however many dirty parents it has.
func (g *Graph) Propagate(state inputs.State, changed ...string) []string {
	dirty := make(map[string]bool)
	var out []string
	for _, id := range changed {
		if !dirty[id] {
			dirty[id] = true
			out = append(out, id)
		}
	}

	for _, id := range g.order {
		edges := g.parents[id]
		if len(edges) == 0 {
			continue
		}
		parentDirty := false
		for _, edge := range edges {
			if dirty[edge.Parent] {
				parentDirty = true
				break
			}
		}
		if !parentDirty {
			continue
		}

		options, _ := g.Options(id, state)
		spec, _ := g.registry.Lookup(id)
		state[id] = Revalidate(spec.Kind.MultiValued(), state[id], options)
		if !dirty[id] {
			dirty[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Revalidate returns value if it is still a member of options. Otherwise a
// single value resets to the first option, and a multi value keeps its
// valid subset or resets to the first option. An empty option set clears
// the value.
func Revalidate(multi bool, value interface{}, options []interface{}) interface{} {
	if len(options) == 0 {
		return nil
	}
	if !multi {
		if value != nil && contains(options, value) {
			return value
		}
		return options[0]
	}

	items, ok := common.ToSlice(value)
	if !ok && value != nil {
		items = []interface{}{value}
	}
	kept := make([]interface{}, 0, len(items))
	for _, item := range items {
		if contains(options, item) {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		return []interface{}{options[0]}
	}
	return kept
}

func contains(values []interface{}, v interface{}) bool {
	for _, candidate := range values {
		if common.Equal(candidate, v) {
			return true
		}
	}
	return false
}

func sortedKeys(values map[string]struct{}) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
