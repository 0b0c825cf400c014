package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
)

// MissingColumnError reports a binding that names a column the dataset
// does not have.
type MissingColumnError struct {
	ChartID string
	Role    string
	Column  string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("chart %s: %s column %q not in dataset", e.ChartID, e.Role, e.Column)
}

// BindingError reports an inconsistent chart binding.
type BindingError struct {
	ChartID string
	Reason  string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("chart %s: %s", e.ChartID, e.Reason)
}

// Pipeline turns filter state and a dataset into series data for one chart.
type Pipeline struct {
	binding  Binding
	kind     chartKind
	mode     AggregationMode
	category *dimension
	series   *dimension
	y        int
	weight   int
	filters  []liveFilter
	toggles  []Toggle
	inputs   []string

	mu      sync.Mutex
	domains map[string]*domain
}

// Compile validates binding against the dataset schema and the input
// registry. Every problem is reported.
func Compile(b Binding, schema dataset.Schema, registry *inputs.Registry) (*Pipeline, error) {
	kind, ok := chartKinds[b.Type]
	if !ok {
		return nil, &BindingError{ChartID: b.ChartID, Reason: fmt.Sprintf("unknown chart type %q", b.Type)}
	}

	p := &Pipeline{
		binding: b,
		kind:    kind,
		mode:    b.Aggregation,
		y:       -1,
		weight:  -1,
		domains: make(map[string]*domain),
	}
	if p.mode == "" {
		p.mode = Count
	}
	if kind.aggregation != "" {
		p.mode = kind.aggregation
	}

	var errs []error
	fail := func(reason string, args ...interface{}) {
		errs = append(errs, &BindingError{ChartID: b.ChartID, Reason: fmt.Sprintf(reason, args...)})
	}
	column := func(role, name string) (dataset.Column, int, bool) {
		i := schema.Index(name)
		if i < 0 {
			errs = append(errs, &MissingColumnError{ChartID: b.ChartID, Role: role, Column: name})
			return dataset.Column{}, -1, false
		}
		return schema.Columns[i], i, true
	}

	if !p.mode.Valid() {
		fail("unknown aggregation %q", p.mode)
	}
	for _, role := range sortedRoles(b.Roles) {
		if b.Roles[role] != "" && !kind.accepts(role) {
			fail("role %s not supported by %s chart", role, b.Type)
		}
	}
	for _, role := range kind.required {
		if b.Column(role) == "" {
			fail("%s chart requires a %s column", b.Type, role)
		}
	}

	if name := b.Column(kind.category); name != "" {
		if col, i, ok := column(string(kind.category), name); ok {
			if kind.numericX && col.Type != dataset.Number {
				fail("%s column %q must be numeric", kind.category, name)
			}
			p.category = &dimension{name: name, column: i, levels: b.Levels[name]}
		}
	}
	if kind.series != "" {
		if name := b.Column(kind.series); name != "" {
			if _, i, ok := column(string(kind.series), name); ok {
				p.series = &dimension{name: name, column: i, levels: b.Levels[name]}
			}
		}
	}
	for _, role := range []Role{RoleY, RoleWeight} {
		name := b.Column(role)
		if name == "" {
			continue
		}
		col, i, ok := column(string(role), name)
		if !ok {
			continue
		}
		if col.Type != dataset.Number {
			fail("%s column %q must be numeric", role, name)
			continue
		}
		if role == RoleY {
			p.y = i
		} else {
			p.weight = i
		}
	}
	if p.mode.NeedsY() && b.Column(RoleY) == "" {
		fail("%s aggregation requires a y column", p.mode)
	}
	if p.mode == Weighted && b.Column(RoleWeight) == "" {
		fail("weighted aggregation requires a weight column")
	}
	for _, name := range sortedKeys(b.Levels) {
		if schema.Index(name) < 0 {
			errs = append(errs, &MissingColumnError{ChartID: b.ChartID, Role: "levels", Column: name})
		}
	}

	seen := make(map[string]struct{})
	addInput := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			p.inputs = append(p.inputs, id)
		}
	}
	for _, name := range b.CrossTab {
		_, i, ok := column("cross_tab", name)
		if !ok {
			continue
		}
		for _, spec := range registry.ByVariable(name) {
			if spec.Override {
				continue
			}
			p.filters = append(p.filters, liveFilter{input: spec.ID, kind: spec.Kind, column: i})
			addInput(spec.ID)
		}
	}
	for _, t := range b.Toggles {
		spec, ok := registry.Lookup(t.Input)
		if !ok {
			errs = append(errs, registry.Unknown(t.Input))
			continue
		}
		if !spec.Override {
			fail("toggle input %s must be declared with override", t.Input)
			continue
		}
		if t.Name == "" {
			t.Name = spec.Label
		}
		if t.Name == "" {
			t.Name = spec.ID
		}
		p.toggles = append(p.toggles, t)
		addInput(t.Input)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// Binding returns the compiled binding.
func (p *Pipeline) Binding() Binding {
	return p.binding
}

// Mode returns the effective aggregation mode.
func (p *Pipeline) Mode() AggregationMode {
	return p.mode
}

// Inputs returns the ids of the inputs whose changes affect the output.
func (p *Pipeline) Inputs() []string {
	out := make([]string, len(p.inputs))
	copy(out, p.inputs)
	return out
}

func sortedRoles(roles map[Role]string) []Role {
	out := make([]Role, 0, len(roles))
	for role := range roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeys(levels map[string][]interface{}) []string {
	out := make([]string, 0, len(levels))
	for name := range levels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
