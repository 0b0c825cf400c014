// Package lint reports non-fatal problems in a dashboard declaration:
// conditions that can never hold, inputs nothing reads, cross-tab columns
// no input filters, and placeholders that cannot resolve.
package lint

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/crosstab/crosstab-go/analysis"
	"github.com/crosstab/crosstab-go/ast"
	"github.com/crosstab/crosstab-go/condition"
	"github.com/crosstab/crosstab-go/dashboard"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/templating"
)

const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"

	CodeDeadCondition         = "dead-condition"
	CodeConstantCondition     = "constant-condition"
	CodeUnusedInput           = "unused-input"
	CodeUnfilteredCrossTab    = "unfiltered-cross-tab"
	CodeVirtualCollision      = "virtual-collision"
	CodeUnresolvedPlaceholder = "unresolved-placeholder"
)

// Options configures lint behavior.
type Options struct {
	// MaxCombinations bounds the input states tried per condition.
	MaxCombinations int
	// MaxRangePoints bounds the values tried per numeric range.
	MaxRangePoints int
}

// DefaultOptions returns the default lint options.
func DefaultOptions() Options {
	return Options{MaxCombinations: 4096, MaxRangePoints: 64}
}

// Issue represents a linter finding.
type Issue struct {
	Subject  string
	Pos      lexer.Position
	Severity string
	Code     string
	Message  string
}

func (i Issue) String() string {
	if i.Pos.Line > 0 {
		return fmt.Sprintf("%s: %s:%d:%d: %s [%s]", i.Severity, i.Subject, i.Pos.Line, i.Pos.Column, i.Message, i.Code)
	}
	return fmt.Sprintf("%s: %s: %s [%s]", i.Severity, i.Subject, i.Message, i.Code)
}

// Dashboard runs every check. Conditions that fail to parse or type check
// are skipped; they are compile errors, not lint findings.
func Dashboard(d *dashboard.Dashboard, registry *inputs.Registry) []Issue {
	return DashboardWithOptions(d, registry, DefaultOptions())
}

// DashboardWithOptions runs every check with custom options.
func DashboardWithOptions(d *dashboard.Dashboard, registry *inputs.Registry, options Options) []Issue {
	if d == nil || registry == nil {
		return nil
	}

	issues := make([]Issue, 0)
	used := make(map[string]struct{})
	markUsed := func(id string) {
		if registry.Has(id) {
			used[id] = struct{}{}
		}
	}

	for _, c := range conditions(d) {
		expr, err := ast.Parse(c.formula)
		if err != nil {
			continue
		}
		for _, name := range ast.Variables(expr) {
			markUsed(name)
		}
		if condition.Check(expr, registry) != nil {
			continue
		}
		issues = append(issues, lintCondition(c.subject, expr, registry, options)...)
	}

	for _, link := range d.Links {
		markUsed(link.Parent)
		markUsed(link.Child)
	}

	for _, chart := range d.Charts {
		for _, column := range chart.CrossTab {
			bound := false
			for _, spec := range registry.ByVariable(column) {
				if !spec.Override {
					markUsed(spec.ID)
					bound = true
				}
			}
			if !bound {
				issues = append(issues, Issue{
					Subject:  chart.ID,
					Severity: SeverityWarning,
					Code:     CodeUnfilteredCrossTab,
					Message:  fmt.Sprintf("cross-tab column %q has no input bound to it", column),
				})
			}
		}
		for _, toggle := range chart.Toggles {
			markUsed(toggle.Input)
		}
		issues = append(issues, lintVirtualCollisions(chart, d, registry)...)
	}

	for _, t := range templates(d) {
		for _, name := range templating.Placeholders(t.text) {
			markUsed(name)
		}
		issues = append(issues, lintPlaceholders(t, d, registry)...)
	}

	for _, id := range analysis.BuildCoverage(registry, used).UnusedInputs {
		issues = append(issues, Issue{
			Subject:  id,
			Severity: SeverityWarning,
			Code:     CodeUnusedInput,
			Message:  fmt.Sprintf("input %q is not used by any chart, condition, link or title", id),
		})
	}
	return issues
}

type conditionSource struct {
	subject string
	formula string
}

func conditions(d *dashboard.Dashboard) []conditionSource {
	var out []conditionSource
	for _, chart := range d.Charts {
		if strings.TrimSpace(chart.ShowWhen) != "" {
			out = append(out, conditionSource{subject: chart.ID, formula: chart.ShowWhen})
		}
	}
	for _, element := range d.Elements {
		if strings.TrimSpace(element.ShowWhen) != "" {
			out = append(out, conditionSource{subject: element.ID, formula: element.ShowWhen})
		}
	}
	return out
}

// lintCondition evaluates the condition over every combination of the
// candidate values of its variables. Conditions whose variables have no
// finite candidate set, or too many combinations, are not judged.
func lintCondition(subject string, expr ast.Expr, registry *inputs.Registry, options Options) []Issue {
	program, err := condition.CompileExpr(condition.ExprSource(expr))
	if err != nil {
		return nil
	}

	variables := ast.Variables(expr)
	candidates := make([][]interface{}, len(variables))
	total := 1
	for i, id := range variables {
		spec, _ := registry.Lookup(id)
		values, ok := candidateValues(spec, options.MaxRangePoints)
		if !ok {
			return nil
		}
		candidates[i] = values
		total *= len(values)
		if total > options.MaxCombinations {
			return nil
		}
	}

	matched, tried := 0, 0
	state := make(inputs.State, len(variables))
	var walk func(i int) error
	walk = func(i int) error {
		if i == len(variables) {
			ok, err := condition.RunExpr(program, state)
			if err != nil {
				return err
			}
			tried++
			if ok {
				matched++
			}
			return nil
		}
		for _, v := range candidates[i] {
			state[variables[i]] = v
			if err := walk(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil
	}

	switch matched {
	case 0:
		return []Issue{{
			Subject:  subject,
			Pos:      expr.Position(),
			Severity: SeverityWarning,
			Code:     CodeDeadCondition,
			Message:  fmt.Sprintf("condition %q can never hold, so %s is never shown", expr.String(), subject),
		}}
	case tried:
		return []Issue{{
			Subject:  subject,
			Pos:      expr.Position(),
			Severity: SeverityInfo,
			Code:     CodeConstantCondition,
			Message:  fmt.Sprintf("condition %q always holds", expr.String()),
		}}
	}
	return nil
}

// candidateValues lists the states an input can be in.
func candidateValues(spec inputs.Spec, maxPoints int) ([]interface{}, bool) {
	switch {
	case spec.Kind.MultiValued():
		options := spec.Options()
		out := []interface{}{[]interface{}{}}
		for _, v := range options {
			out = append(out, []interface{}{v})
		}
		if len(options) > 1 {
			out = append(out, append([]interface{}(nil), options...))
		}
		return out, true
	case spec.Kind.Enumerated():
		options := spec.Options()
		return options, len(options) > 0
	case spec.Kind == inputs.Switch:
		return []interface{}{true, false}, true
	case spec.Kind.Numeric():
		return rangePoints(spec.Domain, maxPoints)
	}
	return nil, false
}

func rangePoints(d inputs.Domain, maxPoints int) ([]interface{}, bool) {
	if d.Min == nil || d.Max == nil || *d.Max < *d.Min {
		return nil, false
	}
	lo, hi := *d.Min, *d.Max
	step := d.Step
	if step <= 0 || (hi-lo)/step+1 > float64(maxPoints) {
		step = (hi - lo) / float64(maxPoints-1)
	}
	if step <= 0 {
		return []interface{}{lo}, true
	}
	var out []interface{}
	for i := 0; ; i++ {
		v := lo + float64(i)*step
		if v > hi+step*1e-9 {
			break
		}
		out = append(out, math.Round(v*1e9)/1e9)
	}
	return out, true
}

// lintVirtualCollisions flags virtual inputs named like a column of the
// chart's dataset; readers of the formula cannot tell them apart.
func lintVirtualCollisions(chart dashboard.ChartSpec, d *dashboard.Dashboard, registry *inputs.Registry) []Issue {
	data, ok := d.Data[chart.Dataset]
	if !ok || data == nil {
		return nil
	}
	var issues []Issue
	for _, spec := range registry.Specs() {
		if spec.Virtual && data.Schema.Index(spec.ID) >= 0 {
			issues = append(issues, Issue{
				Subject:  chart.ID,
				Severity: SeverityWarning,
				Code:     CodeVirtualCollision,
				Message:  fmt.Sprintf("virtual input %q has the same name as a column of dataset %q", spec.ID, chart.Dataset),
			})
		}
	}
	return issues
}

type template struct {
	subject string
	text    string
	extra   []string
}

func templates(d *dashboard.Dashboard) []template {
	out := []template{{subject: "title", text: d.Title}}
	for _, chart := range d.Charts {
		out = append(out, template{subject: chart.ID, text: chart.Title})
		if chart.SeriesName != "" {
			extra := []string{"series"}
			for _, column := range []string{chart.Group, chart.Stack} {
				if column != "" {
					extra = append(extra, column)
				}
			}
			out = append(out, template{subject: chart.ID, text: chart.SeriesName, extra: extra})
		}
	}
	for _, element := range d.Elements {
		out = append(out, template{subject: element.ID, text: element.Content})
	}
	return out
}

func lintPlaceholders(t template, d *dashboard.Dashboard, registry *inputs.Registry) []Issue {
	known := make(map[string]struct{}, len(t.extra))
	for _, name := range t.extra {
		known[name] = struct{}{}
	}
	warnings := templating.Check(t.text, func(name string) bool {
		if _, ok := d.TitleMap[name]; ok {
			return true
		}
		if _, ok := known[name]; ok {
			return true
		}
		return registry.Has(name)
	})

	issues := make([]Issue, 0, len(warnings))
	for _, w := range warnings {
		msg := fmt.Sprintf("placeholder {%s} at offset %d does not name an input or title entry", w.Name, w.Offset)
		if suggestions := registry.Suggest(w.Name); len(suggestions) > 0 {
			msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
		}
		issues = append(issues, Issue{
			Subject:  t.subject,
			Severity: SeverityWarning,
			Code:     CodeUnresolvedPlaceholder,
			Message:  msg,
		})
	}
	return issues
}

// Sort orders issues by subject, then code, for stable output.
func Sort(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Subject != issues[j].Subject {
			return issues[i].Subject < issues[j].Subject
		}
		return issues[i].Code < issues[j].Code
	})
}
