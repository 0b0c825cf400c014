// Package compiler turns a dashboard declaration into a bundle. Every
// problem in the declaration is collected; no bundle is produced while any
// remain.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/crosstab/crosstab-go/analysis"
	"github.com/crosstab/crosstab-go/ast"
	"github.com/crosstab/crosstab-go/condition"
	"github.com/crosstab/crosstab-go/dashboard"
	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/internal/logging"
	"github.com/crosstab/crosstab-go/lint"
	"github.com/crosstab/crosstab-go/pipeline"
	"github.com/crosstab/crosstab-go/templating"
	"github.com/crosstab/crosstab-go/unified"
)

// Errors is every problem found in one compilation.
type Errors []error

func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "no errors"
	case 1:
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(e))
	for _, err := range e {
		b.WriteString("\n\t")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e Errors) Unwrap() []error {
	return e
}

// add appends err, splitting joined errors into their parts.
func (e *Errors) add(err error) {
	if err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			e.add(inner)
		}
		return
	}
	*e = append(*e, err)
}

// DuplicateIDError reports a chart or element id used twice. Charts and
// elements share one namespace because both own a visibility predicate.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate chart or element id %q", e.ID)
}

// UnknownDatasetError reports a chart bound to a dataset nobody declared.
type UnknownDatasetError struct {
	ChartID string
	Dataset string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("chart %s: unknown dataset %q", e.ChartID, e.Dataset)
}

// ConditionError wraps a show_when problem with the owner it belongs to.
type ConditionError struct {
	Owner string
	Err   error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("%s show_when: %v", e.Owner, e.Err)
}

func (e *ConditionError) Unwrap() error {
	return e.Err
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the log entry compile progress is written to.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Compiler) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRevision stamps bundles with a fixed source revision.
func WithRevision(revision string) Option {
	return func(c *Compiler) {
		c.revision = revision
	}
}

// WithRevisionFrom stamps bundles with the git revision of the repository
// containing dir, if any.
func WithRevisionFrom(dir string) Option {
	return func(c *Compiler) {
		c.revisionDir = dir
	}
}

// WithLintOptions overrides the lint limits.
func WithLintOptions(options lint.Options) Option {
	return func(c *Compiler) {
		c.lint = options
	}
}

// Compiler compiles dashboard declarations.
type Compiler struct {
	log         *logrus.Entry
	revision    string
	revisionDir string
	lint        lint.Options
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		log:  logging.Discard(),
		lint: lint.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileFile loads a declaration file with its datasets and compiles it.
// Without an explicit revision, the bundle is stamped with the git revision
// of the file's directory.
func (c *Compiler) CompileFile(ctx context.Context, path string) (*unified.Bundle, error) {
	d, err := dashboard.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if c.revision == "" && c.revisionDir == "" {
		clone := *c
		clone.revisionDir = filepath.Dir(path)
		return clone.Compile(d)
	}
	return c.Compile(d)
}

// Compile validates d and emits a bundle. The returned error, if any, is
// an Errors holding every problem found.
func (c *Compiler) Compile(d *dashboard.Dashboard) (*unified.Bundle, error) {
	if d == nil {
		return nil, Errors{errors.New("nil dashboard")}
	}

	var errs Errors
	registry, err := inputs.NewRegistry(d.Inputs...)
	if err != nil {
		errs.add(err)
		registry = partialRegistry(d.Inputs)
	}

	errs.add(checkIDs(d))

	graph, err := analysis.BuildGraph(edges(d.Links), registry)
	errs.add(err)

	revision, err := c.resolveRevision()
	errs.add(err)

	bb := unified.NewBundleBuilder(d.Title).
		WithRevision(revision).
		WithInputs(registry.Specs()).
		WithTitleMap(d.TitleMap)
	if graph != nil {
		bb.WithGraph(graph.Descriptor())
	}

	store := dataset.NewStore()
	for _, spec := range d.Charts {
		chart, chartErr := c.compileChart(spec, d, registry, store)
		errs.add(chartErr)
		var predicate unified.Predicate
		var predicateErr error
		if spec.ShowWhen != "" {
			predicate, predicateErr = compilePredicate(spec.ID, spec.ShowWhen, registry)
			errs.add(predicateErr)
		}
		if chartErr != nil || predicateErr != nil {
			continue
		}
		if predicate.ID != "" {
			bb.AddPredicate(predicate)
			chart.Predicate = predicate.ID
		}
		bb.AddChart(chart)
	}

	for _, spec := range d.Elements {
		element := unified.Element{ID: spec.ID, Kind: spec.Kind, Content: spec.Content}
		if spec.ShowWhen != "" {
			predicate, err := compilePredicate(spec.ID, spec.ShowWhen, registry)
			if err != nil {
				errs.add(err)
				continue
			}
			bb.AddPredicate(predicate)
			element.Predicate = predicate.ID
		}
		bb.AddElement(element)
	}

	if len(errs) > 0 {
		c.log.WithField("errors", len(errs)).Warn("compilation failed")
		return nil, errs
	}

	issues := lint.DashboardWithOptions(d, registry, c.lint)
	lint.Sort(issues)
	for _, issue := range issues {
		c.log.WithFields(logrus.Fields{
			"subject": issue.Subject,
			"code":    issue.Code,
		}).Warn(issue.Message)
		bb.AddDiagnostics(unified.Diagnostic{
			Severity: issue.Severity,
			Code:     issue.Code,
			Subject:  issue.Subject,
			Message:  issue.Message,
		})
	}

	refs := store.Refs()
	for _, asset := range store.Assets() {
		c.log.WithFields(logrus.Fields{
			"asset": asset.ID,
			"rows":  len(asset.Rows),
			"refs":  refs[asset.ID],
		}).Debug("interned dataset")
	}

	bundle := bb.WithAssets(store.Assets()).Build()
	c.log.WithFields(logrus.Fields{
		"bundle":      bundle.ID,
		"charts":      len(bundle.Charts),
		"assets":      len(bundle.Assets),
		"diagnostics": len(bundle.Diagnostics),
	}).Info("compiled dashboard")
	return bundle, nil
}

func (c *Compiler) resolveRevision() (string, error) {
	if c.revision != "" || c.revisionDir == "" {
		return c.revision, nil
	}
	revision, err := unified.Revision(c.revisionDir)
	if err != nil {
		return "", fmt.Errorf("reading git revision: %w", err)
	}
	return revision, nil
}

// compileChart applies the static filter, interns the result and compiles
// the pipeline against the interned schema. When the static filter fails,
// the binding is still checked against the declared schema.
func (c *Compiler) compileChart(spec dashboard.ChartSpec, d *dashboard.Dashboard, registry *inputs.Registry, store *dataset.Store) (unified.Chart, error) {
	data, ok := d.Data[spec.Dataset]
	if !ok || data == nil {
		return unified.Chart{}, &UnknownDatasetError{ChartID: spec.ID, Dataset: spec.Dataset}
	}

	columns := make([]string, 0, len(spec.Where))
	for column := range spec.Where {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	var whereErrs []error
	for _, column := range columns {
		if data.Schema.Index(column) < 0 {
			whereErrs = append(whereErrs, &pipeline.MissingColumnError{ChartID: spec.ID, Role: "where", Column: column})
			continue
		}
		filtered, err := data.Where(column, spec.Where[column]...)
		if err != nil {
			whereErrs = append(whereErrs, fmt.Errorf("chart %s: %w", spec.ID, err))
			continue
		}
		data = filtered
	}
	if len(whereErrs) > 0 {
		if _, err := pipeline.Compile(spec.Binding(""), data.Schema, registry); err != nil {
			whereErrs = append(whereErrs, err)
		}
		return unified.Chart{}, errors.Join(whereErrs...)
	}

	assetID, err := store.Intern(data)
	if err != nil {
		return unified.Chart{}, fmt.Errorf("chart %s: %w", spec.ID, err)
	}
	asset, _ := store.Get(assetID)

	p, err := pipeline.Compile(spec.Binding(assetID), asset.Schema, registry)
	if err != nil {
		return unified.Chart{}, err
	}

	c.log.WithFields(logrus.Fields{
		"chart": spec.ID,
		"asset": assetID,
		"mode":  p.Mode(),
	}).Debug("compiled chart")

	return unified.Chart{
		ID:      spec.ID,
		Title:   spec.Title,
		Binding: p.Binding(),
		Inputs:  chartInputs(p.Inputs(), spec.Title, d.TitleMap, registry),
	}, nil
}

// chartInputs adds the inputs a chart title reads to the pipeline inputs.
// A title map entry shadows an input of the same name.
func chartInputs(pipelineInputs []string, title string, titleMap map[string]string, registry *inputs.Registry) []string {
	out := append([]string(nil), pipelineInputs...)
	seen := make(map[string]struct{}, len(out))
	for _, id := range out {
		seen[id] = struct{}{}
	}
	for _, name := range templating.Placeholders(title) {
		if _, shadowed := titleMap[name]; shadowed || !registry.Has(name) {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func compilePredicate(owner, formula string, registry *inputs.Registry) (unified.Predicate, error) {
	expr, err := ast.Parse(formula)
	if err != nil {
		return unified.Predicate{}, &ConditionError{Owner: owner, Err: err}
	}
	if err := condition.Check(expr, registry); err != nil {
		var errs Errors
		errs.add(err)
		for i, inner := range errs {
			errs[i] = &ConditionError{Owner: owner, Err: inner}
		}
		return unified.Predicate{}, errs
	}
	return unified.Predicate{
		ID:        owner,
		Formula:   strings.TrimSpace(formula),
		Variables: ast.Variables(expr),
		Expr:      condition.ExprSource(expr),
	}, nil
}

func checkIDs(d *dashboard.Dashboard) error {
	var errs []error
	seen := make(map[string]struct{}, len(d.Charts)+len(d.Elements))
	check := func(id string) {
		if id == "" {
			errs = append(errs, errors.New("chart or element without id"))
			return
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, &DuplicateIDError{ID: id})
			return
		}
		seen[id] = struct{}{}
	}
	for _, chart := range d.Charts {
		check(chart.ID)
	}
	for _, element := range d.Elements {
		check(element.ID)
	}
	return errors.Join(errs...)
}

func edges(links []dashboard.Link) []analysis.Edge {
	out := make([]analysis.Edge, 0, len(links))
	for _, link := range links {
		options := make(map[interface{}][]interface{}, len(link.Options))
		for value, allowed := range link.Options {
			options[value] = allowed
		}
		out = append(out, analysis.NewEdge(link.Parent, link.Child, options))
	}
	return out
}

// partialRegistry keeps the specs that validate on their own so later
// checks can still run after registry errors.
func partialRegistry(specs []inputs.Spec) *inputs.Registry {
	var kept []inputs.Spec
	for _, spec := range specs {
		if _, err := inputs.NewRegistry(append(kept, spec)...); err == nil {
			kept = append(kept, spec)
		}
	}
	registry, _ := inputs.NewRegistry(kept...)
	return registry
}
