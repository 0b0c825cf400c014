// Package dashboard holds the author-facing declaration of a dashboard:
// inputs, linked inputs, datasets, charts and page elements.
package dashboard

import (
	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/pipeline"
	"github.com/crosstab/crosstab-go/source"
)

// Dashboard is a complete declaration ready for compilation.
type Dashboard struct {
	// Title may reference inputs and title map entries as {name}.
	Title string `json:"title" yaml:"title"`

	Inputs []inputs.Spec `json:"inputs" yaml:"inputs"`
	Links  []Link        `json:"links,omitempty" yaml:"links,omitempty"`

	// Sources describe datasets to load; Data holds datasets supplied
	// directly. A name present in both resolves to Data.
	Sources map[string]source.Spec      `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	Data    map[string]*dataset.Dataset `json:"-" yaml:"-"`

	Defaults ChartDefaults     `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Charts   []ChartSpec       `json:"charts" yaml:"charts"`
	Elements []Element         `json:"elements,omitempty" yaml:"elements,omitempty"`
	TitleMap map[string]string `json:"title_map,omitempty" yaml:"title_map,omitempty"`
}

// Link restricts the options of Child by the value of Parent. Options maps
// a parent value to the child options it allows.
type Link struct {
	Parent  string                   `json:"parent" yaml:"parent"`
	Child   string                   `json:"child" yaml:"child"`
	Options map[string][]interface{} `json:"options" yaml:"options"`
}

// ChartSpec declares one chart.
type ChartSpec struct {
	ID      string             `json:"id" yaml:"id"`
	Title   string             `json:"title,omitempty" yaml:"title,omitempty"`
	Type    pipeline.ChartType `json:"type" yaml:"type"`
	Library string             `json:"library,omitempty" yaml:"library,omitempty"`
	Dataset string             `json:"dataset" yaml:"dataset"`

	X      string `json:"x,omitempty" yaml:"x,omitempty"`
	Y      string `json:"y,omitempty" yaml:"y,omitempty"`
	Stack  string `json:"stack,omitempty" yaml:"stack,omitempty"`
	Group  string `json:"group,omitempty" yaml:"group,omitempty"`
	Time   string `json:"time,omitempty" yaml:"time,omitempty"`
	Weight string `json:"weight,omitempty" yaml:"weight,omitempty"`

	// CrossTab lists the columns live inputs filter on.
	CrossTab    []string                 `json:"cross_tab,omitempty" yaml:"cross_tab,omitempty"`
	Aggregation pipeline.AggregationMode `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`

	// CompleteGroups fills missing category/series combinations with
	// zeros. Defaults to true.
	CompleteGroups *bool                    `json:"complete_groups,omitempty" yaml:"complete_groups,omitempty"`
	Levels         map[string][]interface{} `json:"levels,omitempty" yaml:"levels,omitempty"`
	Toggles        []pipeline.Toggle        `json:"toggles,omitempty" yaml:"toggles,omitempty"`
	SeriesLabels   map[string]string        `json:"series_labels,omitempty" yaml:"series_labels,omitempty"`
	SeriesName     string                   `json:"series_name,omitempty" yaml:"series_name,omitempty"`
	Bins           int                      `json:"bins,omitempty" yaml:"bins,omitempty"`

	// Where is a static filter applied at compile time: column to
	// accepted values.
	Where map[string][]interface{} `json:"where,omitempty" yaml:"where,omitempty"`

	// ShowWhen is a visibility formula such as "~ region == 'A'".
	ShowWhen string `json:"show_when,omitempty" yaml:"show_when,omitempty"`
}

// Roles maps the declared role columns to pipeline roles.
func (c ChartSpec) Roles() map[pipeline.Role]string {
	roles := make(map[pipeline.Role]string)
	for role, column := range map[pipeline.Role]string{
		pipeline.RoleX:      c.X,
		pipeline.RoleY:      c.Y,
		pipeline.RoleStack:  c.Stack,
		pipeline.RoleGroup:  c.Group,
		pipeline.RoleTime:   c.Time,
		pipeline.RoleWeight: c.Weight,
	} {
		if column != "" {
			roles[role] = column
		}
	}
	return roles
}

// Binding converts the declaration into a pipeline binding over dataset.
func (c ChartSpec) Binding(dataset string) pipeline.Binding {
	return pipeline.Binding{
		ChartID:        c.ID,
		Type:           c.Type,
		Library:        c.Library,
		Dataset:        dataset,
		Roles:          c.Roles(),
		CrossTab:       append([]string(nil), c.CrossTab...),
		Aggregation:    c.Aggregation,
		CompleteGroups: c.CompleteGroups,
		Levels:         c.Levels,
		Toggles:        append([]pipeline.Toggle(nil), c.Toggles...),
		SeriesLabels:   c.SeriesLabels,
		SeriesName:     c.SeriesName,
		Bins:           c.Bins,
	}
}

// Element is a non-chart page element, such as a heading or a text block,
// that can be shown conditionally.
type Element struct {
	ID       string `json:"id" yaml:"id"`
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Content  string `json:"content,omitempty" yaml:"content,omitempty"`
	ShowWhen string `json:"show_when,omitempty" yaml:"show_when,omitempty"`
}
