package runtime

import (
	"fmt"

	"github.com/crosstab/crosstab-go/analysis"
	"github.com/crosstab/crosstab-go/ast"
	"github.com/crosstab/crosstab-go/condition"
	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/pipeline"
	"github.com/crosstab/crosstab-go/unified"
)

// Program is a bundle hydrated into ready-to-run pipelines, predicates and
// the linked-input graph. It is immutable and may back several machines.
type Program struct {
	bundle   *unified.Bundle
	registry *inputs.Registry
	graph    *analysis.Graph
	store    *dataset.Store
	charts   []*chartProgram
	rules    []*visibilityRule
}

type chartProgram struct {
	id       string
	title    string
	library  string
	pipeline *pipeline.Pipeline
	asset    *dataset.Asset
	inputs   map[string]struct{}
	rule     *visibilityRule
}

// visibilityRule shows or hides one chart or element.
type visibilityRule struct {
	id        string
	variables []string
	predicate condition.Predicate
}

func (r *visibilityRule) reads(dirty map[string]struct{}) bool {
	for _, v := range r.variables {
		if _, ok := dirty[v]; ok {
			return true
		}
	}
	return false
}

// Load hydrates a bundle. Assets are verified against their content hash
// and every pipeline and predicate is recompiled against the bundled
// inputs.
func Load(bundle *unified.Bundle) (*Program, error) {
	if bundle == nil {
		return nil, fmt.Errorf("load: nil bundle")
	}
	if err := unified.CheckFormat(bundle.Format); err != nil {
		return nil, err
	}

	registry, err := inputs.NewRegistry(bundle.Inputs...)
	if err != nil {
		return nil, fmt.Errorf("loading inputs: %w", err)
	}
	graph, err := analysis.BuildGraph(bundle.Graph.Edges, registry)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}

	store := dataset.NewStore()
	for _, asset := range bundle.Assets {
		if err := store.Add(asset); err != nil {
			return nil, fmt.Errorf("loading assets: %w", err)
		}
	}

	prog := &Program{
		bundle:   bundle,
		registry: registry,
		graph:    graph,
		store:    store,
	}

	rules := make(map[string]*visibilityRule, len(bundle.Predicates))
	for _, p := range bundle.Predicates {
		expr, err := ast.Parse(p.Formula)
		if err != nil {
			return nil, fmt.Errorf("predicate %s: %w", p.ID, err)
		}
		predicate, err := condition.Compile(expr, registry)
		if err != nil {
			return nil, fmt.Errorf("predicate %s: %w", p.ID, err)
		}
		rules[p.ID] = &visibilityRule{id: p.ID, variables: ast.Variables(expr), predicate: predicate}
	}
	rule := func(owner, id string) (*visibilityRule, error) {
		if id == "" {
			return nil, nil
		}
		r, ok := rules[id]
		if !ok {
			return nil, fmt.Errorf("%s: unknown predicate %q", owner, id)
		}
		return &visibilityRule{id: owner, variables: r.variables, predicate: r.predicate}, nil
	}

	for _, chart := range bundle.Charts {
		asset, ok := store.Get(chart.Binding.Dataset)
		if !ok {
			return nil, fmt.Errorf("chart %s: unknown asset %q", chart.ID, chart.Binding.Dataset)
		}
		p, err := pipeline.Compile(chart.Binding, asset.Schema, registry)
		if err != nil {
			return nil, fmt.Errorf("compiling chart %s: %w", chart.ID, err)
		}
		r, err := rule(chart.ID, chart.Predicate)
		if err != nil {
			return nil, err
		}

		cp := &chartProgram{
			id:       chart.ID,
			title:    chart.Title,
			library:  chart.Binding.Library,
			pipeline: p,
			asset:    asset,
			inputs:   make(map[string]struct{}),
			rule:     r,
		}
		for _, id := range chart.Inputs {
			cp.inputs[id] = struct{}{}
		}
		for _, id := range p.Inputs() {
			cp.inputs[id] = struct{}{}
		}
		prog.charts = append(prog.charts, cp)
		if r != nil {
			prog.rules = append(prog.rules, r)
		}
	}
	for _, element := range bundle.Elements {
		r, err := rule(element.ID, element.Predicate)
		if err != nil {
			return nil, err
		}
		if r != nil {
			prog.rules = append(prog.rules, r)
		}
	}
	return prog, nil
}

// Bundle returns the bundle the program was loaded from.
func (p *Program) Bundle() *unified.Bundle {
	return p.bundle
}

// Registry returns the bundled inputs.
func (p *Program) Registry() *inputs.Registry {
	return p.registry
}

// ChartIDs lists the charts in declaration order.
func (p *Program) ChartIDs() []string {
	ids := make([]string, len(p.charts))
	for i, c := range p.charts {
		ids[i] = c.id
	}
	return ids
}
