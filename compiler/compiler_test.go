package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstab/crosstab-go/analysis"
	"github.com/crosstab/crosstab-go/ast"
	"github.com/crosstab/crosstab-go/condition"
	"github.com/crosstab/crosstab-go/dashboard"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/internal/testutils"
	"github.com/crosstab/crosstab-go/lint"
	"github.com/crosstab/crosstab-go/pipeline"
)

func TestCompileRegionYear(t *testing.T) {
	bundle, err := New(WithRevision("abc123")).Compile(testutils.RegionYear())
	require.NoError(t, err)

	assert.Equal(t, "abc123", bundle.Revision)
	assert.Equal(t, "Sales {year}", bundle.Title)
	assert.Empty(t, bundle.Diagnostics)

	require.Len(t, bundle.Charts, 2)
	require.Len(t, bundle.Assets, 1, "both charts read the same rows")
	assetID := bundle.Assets[0].ID
	assert.Equal(t, []string{assetID}, bundle.AssetIDs)
	assert.Equal(t, assetID, bundle.Charts[0].Binding.Dataset)
	assert.Equal(t, assetID, bundle.Charts[1].Binding.Dataset)

	assert.Equal(t, []string{"year", "city"}, bundle.Charts[0].Inputs)
	assert.Empty(t, bundle.Charts[0].Predicate)
	assert.Equal(t, "by_gender", bundle.Charts[1].Predicate)

	p, ok := bundle.Predicate("note")
	require.True(t, ok)
	assert.Equal(t, "~ year == 2021", p.Formula)
	assert.Equal(t, []string{"year"}, p.Variables)
	program, err := condition.CompileExpr(p.Expr)
	require.NoError(t, err)
	shown, err := condition.RunExpr(program, inputs.State{"year": 2021.0})
	require.NoError(t, err)
	assert.True(t, shown)

	assert.Equal(t, []string{"year", "detail", "country", "city"}, bundle.Graph.Order)
	require.Len(t, bundle.Graph.Edges, 1)
	assert.Equal(t, "country", bundle.Graph.Edges[0].Parent)
}

func TestCompileCollectsEveryError(t *testing.T) {
	d := testutils.RegionYearBuilder().
		Input(
			inputs.Spec{ID: "a", Kind: inputs.SelectSingle, Virtual: true, Domain: inputs.Values("x")},
			inputs.Spec{ID: "b", Kind: inputs.SelectSingle, Virtual: true, Domain: inputs.Values("x")},
		).
		Link("a", "b", map[string][]interface{}{"x": {"x"}}).
		Link("b", "a", map[string][]interface{}{"x": {"x"}}).
		Chart(dashboard.ChartSpec{ID: "broken_formula", Type: pipeline.Bar, Dataset: "sales", X: "region", ShowWhen: "~ year =="}).
		Chart(dashboard.ChartSpec{ID: "typo", Type: pipeline.Bar, Dataset: "sales", X: "region", ShowWhen: "~ yeer == 2020"}).
		Chart(dashboard.ChartSpec{ID: "bad_column", Type: pipeline.Bar, Dataset: "sales", X: "regoin"}).
		Chart(dashboard.ChartSpec{ID: "nowhere", Type: pipeline.Bar, Dataset: "missing", X: "region"}).
		Element(dashboard.Element{ID: "by_region", Kind: "text"}).
		Build()

	bundle, err := New().Compile(d)
	require.Error(t, err)
	assert.Nil(t, bundle)

	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.GreaterOrEqual(t, len(errs), 6)

	var parseErr *ast.ParseError
	assert.True(t, errors.As(err, &parseErr))

	var unknown *condition.UnknownVariableError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "yeer", unknown.Name)
	assert.Contains(t, unknown.Suggestions, "year")

	var cycle *analysis.CyclicDependencyError
	assert.True(t, errors.As(err, &cycle))

	var missing *pipeline.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "regoin", missing.Column)

	var dup *DuplicateIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "by_region", dup.ID)

	var noData *UnknownDatasetError
	require.True(t, errors.As(err, &noData))
	assert.Equal(t, "missing", noData.Dataset)

	var cond *ConditionError
	require.True(t, errors.As(err, &cond))
	assert.Contains(t, []string{"broken_formula", "typo"}, cond.Owner)
}

func TestCompileReportsEveryProblemOfOneChart(t *testing.T) {
	d := testutils.RegionYearBuilder().
		Chart(dashboard.ChartSpec{
			ID:       "bad",
			Type:     pipeline.Bar,
			Dataset:  "sales",
			X:        "regoin",
			ShowWhen: "~ yeer == 2020",
		}).
		Chart(dashboard.ChartSpec{
			ID:      "filtered",
			Type:    pipeline.Bar,
			Dataset: "sales",
			X:       "gendre",
			Where:   map[string][]interface{}{"country": {"FR"}, "city": {"Paris"}},
		}).
		Build()

	_, err := New().Compile(d)
	require.Error(t, err)

	var errs Errors
	require.True(t, errors.As(err, &errs))

	var unknown *condition.UnknownVariableError
	require.True(t, errors.As(err, &unknown), "show_when is checked despite the bad column")
	assert.Equal(t, "yeer", unknown.Name)

	var columns []string
	for _, e := range errs {
		var missing *pipeline.MissingColumnError
		if errors.As(e, &missing) {
			columns = append(columns, missing.ChartID+"."+missing.Role+"."+missing.Column)
		}
	}
	assert.ElementsMatch(t, []string{
		"bad.x.regoin",
		"filtered.where.city",
		"filtered.where.country",
		"filtered.x.gendre",
	}, columns)
}

func TestCompileContinuesPastInvalidInputs(t *testing.T) {
	d := testutils.RegionYearBuilder().
		Input(inputs.Spec{ID: "bad", Kind: inputs.Slider, Variable: "year", Virtual: true}).
		Chart(dashboard.ChartSpec{ID: "bad_column", Type: pipeline.Bar, Dataset: "sales", X: "regoin"}).
		Build()

	_, err := New().Compile(d)
	require.Error(t, err)

	var missing *pipeline.MissingColumnError
	assert.True(t, errors.As(err, &missing), "charts are still checked")
	assert.Contains(t, err.Error(), "bad")
}

func TestStaticFiltersAreInterned(t *testing.T) {
	where := map[string][]interface{}{"region": {"A"}}
	d := testutils.RegionYearBuilder().
		Chart(dashboard.ChartSpec{ID: "a1", Type: pipeline.Bar, Dataset: "sales", X: "gender", CrossTab: []string{"year"}, Where: where}).
		Chart(dashboard.ChartSpec{ID: "a2", Type: pipeline.Pie, Dataset: "sales", X: "gender", CrossTab: []string{"year"}, Where: where}).
		Build()

	bundle, err := New().Compile(d)
	require.NoError(t, err)
	require.Len(t, bundle.Assets, 2)

	var a1, a2 string
	for _, chart := range bundle.Charts {
		switch chart.ID {
		case "a1":
			a1 = chart.Binding.Dataset
		case "a2":
			a2 = chart.Binding.Dataset
		}
	}
	assert.Equal(t, a1, a2)
	asset, ok := bundle.Asset(a1)
	require.True(t, ok)
	assert.Len(t, asset.Rows, 2)
}

func TestStaticFilterOnMissingColumn(t *testing.T) {
	d := testutils.RegionYearBuilder().
		Chart(dashboard.ChartSpec{ID: "w", Type: pipeline.Bar, Dataset: "sales", X: "gender", Where: map[string][]interface{}{"country": {"FR"}}}).
		Build()

	_, err := New().Compile(d)
	var missing *pipeline.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "where", missing.Role)
}

func TestLintFindingsBecomeDiagnostics(t *testing.T) {
	d := testutils.RegionYearBuilder().
		Input(inputs.Spec{ID: "spare", Kind: inputs.Switch, Virtual: true}).
		Build()

	bundle, err := New().Compile(d)
	require.NoError(t, err)
	require.Len(t, bundle.Diagnostics, 1)
	assert.Equal(t, lint.CodeUnusedInput, bundle.Diagnostics[0].Code)
	assert.Equal(t, "spare", bundle.Diagnostics[0].Subject)
}

func TestErrorsFormatting(t *testing.T) {
	assert.Equal(t, "one", Errors{errors.New("one")}.Error())
	msg := Errors{errors.New("one"), errors.New("two")}.Error()
	assert.Contains(t, msg, "2 errors")
	assert.Contains(t, msg, "two")

	var errs Errors
	errs.add(errors.Join(errors.New("a"), errors.Join(errors.New("b"), errors.New("c"))))
	errs.add(nil)
	assert.Len(t, errs, 3)
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte("region,year\nA,2020\nA,2021\nB,2020\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard.yaml"), []byte(`
title: Sales
inputs:
  - id: year
    kind: select_single
    variable: year
    domain:
      values: [2020, 2021]
    default: 2020
datasets:
  sales:
    path: sales.csv
charts:
  - id: by_region
    type: bar
    dataset: sales
    x: region
    cross_tab: [year]
`), 0o644))

	bundle, err := New().CompileFile(context.Background(), filepath.Join(dir, "dashboard.yaml"))
	require.NoError(t, err)
	assert.Empty(t, bundle.Revision, "not a git repository")
	require.Len(t, bundle.Charts, 1)
	require.Len(t, bundle.Assets, 1)
	assert.Len(t, bundle.Assets[0].Rows, 3)
}
