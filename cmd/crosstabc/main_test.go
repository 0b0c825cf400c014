package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstab/crosstab-go/pipeline"
	"github.com/crosstab/crosstab-go/unified"
)

const declaration = `
title: Sales {year}
inputs:
  - id: year
    kind: select_single
    variable: year
    domain:
      values: [2020, 2021]
    default: 2020
  - id: detail
    kind: switch
    virtual: true
datasets:
  sales:
    path: sales.csv
charts:
  - id: by_region
    title: Regions
    type: bar
    dataset: sales
    x: region
    cross_tab: [year]
  - id: by_gender
    type: pie
    dataset: sales
    x: gender
    cross_tab: [year]
    show_when: "~ detail"
`

func writeDashboard(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte("region,year,gender\nA,2020,F\nA,2021,M\nB,2020,F\n"), 0o644))
	path := filepath.Join(dir, "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCompileWritesSite(t *testing.T) {
	path := writeDashboard(t, declaration)
	out := filepath.Join(t.TempDir(), "site")

	_, _, err := run(t, "compile", path, "--out", out, "--revision", "v1")
	require.NoError(t, err)

	bundle, err := unified.LoadSite(out)
	require.NoError(t, err)
	assert.Equal(t, "v1", bundle.Revision)
	assert.Len(t, bundle.Charts, 2)
	assert.Len(t, bundle.Assets, 1)
}

func TestCompileWritesSingleFile(t *testing.T) {
	path := writeDashboard(t, declaration)
	out := filepath.Join(t.TempDir(), "bundle.json")

	_, _, err := run(t, "compile", path, "-o", out)
	require.NoError(t, err)

	bundle, err := unified.LoadBundle(out)
	require.NoError(t, err)
	assert.Len(t, bundle.Assets, 1)
}

func TestCheckReportsErrors(t *testing.T) {
	path := writeDashboard(t, strings.Replace(declaration, "~ detail", "~ detial", 1))

	stdout, _, err := run(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, stdout, `unknown variable "detial"`)
	assert.Contains(t, stdout, "did you mean detail?")
	assert.Regexp(t, regexp.QuoteMeta(path)+`:1:\d+: error`, stdout)
}

func TestCheckJSONAndFailOnWarn(t *testing.T) {
	path := writeDashboard(t, strings.Replace(declaration, `    show_when: "~ detail"`, "", 1))

	stdout, _, err := run(t, "check", path, "--format", "json", "--fail-on-warn")
	require.Error(t, err, "detail is unused")

	var reports []report
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "unused-input", reports[0].Code)
	assert.Equal(t, "detail", reports[0].Subject)

	_, _, err = run(t, "check", path)
	assert.NoError(t, err)
}

func TestPreview(t *testing.T) {
	path := writeDashboard(t, declaration)

	stdout, _, err := run(t, "preview", path, "--set", "year=2021", "--set", "detail=true", "--format", "json")
	require.NoError(t, err)

	var charts []pipeline.SeriesData
	require.NoError(t, json.Unmarshal([]byte(stdout), &charts))
	require.Len(t, charts, 2)
	assert.Equal(t, "by_region", charts[0].ChartID)
	assert.Equal(t, "Regions", charts[0].Title)
	values := map[string]float64{}
	for _, p := range charts[0].Series[0].Points {
		values[p.Label] = p.Value
	}
	assert.Equal(t, map[string]float64{"A": 1, "B": 0}, values)
	assert.Equal(t, "by_gender", charts[1].ChartID)

	stdout, _, err = run(t, "preview", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Sales 2020")
	assert.Contains(t, stdout, "by_region: Regions")
	assert.NotContains(t, stdout, "by_gender")
}

func TestPublishToDirectory(t *testing.T) {
	path := writeDashboard(t, declaration)
	site := filepath.Join(t.TempDir(), "public")

	stdout, _, err := run(t, "publish", path, site)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 written, 0 unchanged")

	stdout, _, err = run(t, "publish", path, site)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 written, 1 unchanged")
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		raw   string
		id    string
		value interface{}
		err   bool
	}{
		{"year=2021", "year", 2021.0, false},
		{"region=A", "region", "A", false},
		{`regions=["A","B"]`, "regions", []interface{}{"A", "B"}, false},
		{"detail=true", "detail", true, false},
		{"=1", "", nil, true},
		{"year", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, value, err := parseAssignment(tt.raw)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestExplain(t *testing.T) {
	stdout, _, err := run(t, "explain", `~ year == 2021 & !detail`)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Formula:   year == 2021 & !(detail == true)")
	assert.Contains(t, stdout, "Variables: detail, year")
	assert.Contains(t, stdout, "And (")

	_, _, err = run(t, "explain", "~ year ==")
	assert.Error(t, err)
}
