// Package testutils holds dashboards shared by package tests.
package testutils

import (
	"github.com/crosstab/crosstab-go/dashboard"
	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/pipeline"
)

// Sales returns three rows of region, year and gender.
func Sales() *dataset.Dataset {
	return dataset.New(
		[]string{"region", "year", "gender"},
		[][]interface{}{
			{"A", 2020, "F"},
			{"A", 2021, "M"},
			{"B", 2020, "F"},
		},
	)
}

// RegionYearBuilder declares a dashboard over Sales:
//
//   - by_region counts rows per region filtered by the year input
//   - by_gender counts rows per gender and is shown while detail is on
//   - note is shown while year is 2021
//   - city options follow country through a link
func RegionYearBuilder() dashboard.Builder {
	return dashboard.NewBuilder("Sales {year}").
		Input(
			inputs.Spec{ID: "year", Kind: inputs.SelectSingle, Variable: "year", Domain: inputs.Values(2020, 2021), Default: 2020},
			inputs.Spec{ID: "detail", Kind: inputs.Switch, Virtual: true},
			inputs.Spec{ID: "country", Kind: inputs.SelectSingle, Virtual: true, Domain: inputs.Values("FR", "DE"), Default: "FR"},
			inputs.Spec{ID: "city", Kind: inputs.SelectSingle, Virtual: true, Domain: inputs.Values("Paris", "Lyon", "Berlin"), Default: "Paris"},
		).
		Link("country", "city", map[string][]interface{}{
			"FR": {"Paris", "Lyon"},
			"DE": {"Berlin"},
		}).
		Dataset("sales", Sales()).
		Chart(dashboard.ChartSpec{
			ID:          "by_region",
			Title:       "{city} by region",
			Type:        pipeline.Bar,
			Dataset:     "sales",
			X:           "region",
			CrossTab:    []string{"year"},
			Aggregation: pipeline.Count,
		}).
		Chart(dashboard.ChartSpec{
			ID:          "by_gender",
			Title:       "Gender",
			Type:        pipeline.Pie,
			Dataset:     "sales",
			X:           "gender",
			CrossTab:    []string{"year"},
			Aggregation: pipeline.Count,
			ShowWhen:    "~ detail",
		}).
		Element(dashboard.Element{ID: "note", Kind: "text", Content: "2021 is partial", ShowWhen: "~ year == 2021"})
}

// RegionYear builds RegionYearBuilder.
func RegionYear() *dashboard.Dashboard {
	return RegionYearBuilder().Build()
}
