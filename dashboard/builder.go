package dashboard

import (
	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/pipeline"
)

// ChartDefaults are settings applied to every chart that leaves them
// unset. The With methods return modified copies.
type ChartDefaults struct {
	Library        string                   `json:"library,omitempty" yaml:"library,omitempty"`
	Aggregation    pipeline.AggregationMode `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	CrossTab       []string                 `json:"cross_tab,omitempty" yaml:"cross_tab,omitempty"`
	CompleteGroups *bool                    `json:"complete_groups,omitempty" yaml:"complete_groups,omitempty"`
	Levels         map[string][]interface{} `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// WithLibrary sets the default charting library.
func (d ChartDefaults) WithLibrary(library string) ChartDefaults {
	d.Library = library
	return d
}

// WithAggregation sets the default aggregation mode.
func (d ChartDefaults) WithAggregation(mode pipeline.AggregationMode) ChartDefaults {
	d.Aggregation = mode
	return d
}

// WithCrossTab sets the default cross-tab columns.
func (d ChartDefaults) WithCrossTab(columns ...string) ChartDefaults {
	d.CrossTab = append([]string(nil), columns...)
	return d
}

// WithCompleteGroups sets the default zero-filling behaviour.
func (d ChartDefaults) WithCompleteGroups(complete bool) ChartDefaults {
	d.CompleteGroups = &complete
	return d
}

// WithLevels sets the default level order of column.
func (d ChartDefaults) WithLevels(column string, levels ...interface{}) ChartDefaults {
	merged := make(map[string][]interface{}, len(d.Levels)+1)
	for k, v := range d.Levels {
		merged[k] = v
	}
	merged[column] = append([]interface{}(nil), levels...)
	d.Levels = merged
	return d
}

// Apply fills the unset fields of chart. Chart levels win per column.
func (d ChartDefaults) Apply(chart ChartSpec) ChartSpec {
	if chart.Library == "" {
		chart.Library = d.Library
	}
	if chart.Aggregation == "" {
		chart.Aggregation = d.Aggregation
	}
	if chart.CrossTab == nil && d.CrossTab != nil {
		chart.CrossTab = append([]string(nil), d.CrossTab...)
	}
	if chart.CompleteGroups == nil && d.CompleteGroups != nil {
		complete := *d.CompleteGroups
		chart.CompleteGroups = &complete
	}
	if len(d.Levels) > 0 {
		levels := make(map[string][]interface{}, len(d.Levels)+len(chart.Levels))
		for k, v := range d.Levels {
			levels[k] = v
		}
		for k, v := range chart.Levels {
			levels[k] = v
		}
		chart.Levels = levels
	}
	return chart
}

// Builder assembles a Dashboard. Every method returns a new Builder, so a
// partially built dashboard can be shared and extended independently.
type Builder struct {
	title    string
	inputs   []inputs.Spec
	links    []Link
	data     map[string]*dataset.Dataset
	defaults ChartDefaults
	charts   []ChartSpec
	elements []Element
	titleMap map[string]string
}

// NewBuilder starts a dashboard with title.
func NewBuilder(title string) Builder {
	return Builder{title: title}
}

func appendCopy[T any](s []T, v ...T) []T {
	out := make([]T, 0, len(s)+len(v))
	out = append(out, s...)
	return append(out, v...)
}

// Input declares input controls.
func (b Builder) Input(specs ...inputs.Spec) Builder {
	b.inputs = appendCopy(b.inputs, specs...)
	return b
}

// Link restricts child options by the parent value.
func (b Builder) Link(parent, child string, options map[string][]interface{}) Builder {
	b.links = appendCopy(b.links, Link{Parent: parent, Child: child, Options: options})
	return b
}

// Dataset registers a dataset under name.
func (b Builder) Dataset(name string, d *dataset.Dataset) Builder {
	data := make(map[string]*dataset.Dataset, len(b.data)+1)
	for k, v := range b.data {
		data[k] = v
	}
	data[name] = d
	b.data = data
	return b
}

// Defaults sets the defaults applied to charts added afterwards.
func (b Builder) Defaults(d ChartDefaults) Builder {
	b.defaults = d
	return b
}

// Chart adds a chart with the current defaults applied.
func (b Builder) Chart(chart ChartSpec) Builder {
	b.charts = appendCopy(b.charts, b.defaults.Apply(chart))
	return b
}

// Element adds a non-chart page element.
func (b Builder) Element(e Element) Builder {
	b.elements = appendCopy(b.elements, e)
	return b
}

// Title maps a placeholder name to display text.
func (b Builder) Title(name, text string) Builder {
	titleMap := make(map[string]string, len(b.titleMap)+1)
	for k, v := range b.titleMap {
		titleMap[k] = v
	}
	titleMap[name] = text
	b.titleMap = titleMap
	return b
}

// Build returns the declaration. Later builder calls do not affect it.
func (b Builder) Build() *Dashboard {
	d := &Dashboard{
		Title:    b.title,
		Inputs:   appendCopy(b.inputs),
		Links:    appendCopy(b.links),
		Data:     make(map[string]*dataset.Dataset, len(b.data)),
		Defaults: b.defaults,
		Charts:   appendCopy(b.charts),
		Elements: appendCopy(b.elements),
		TitleMap: make(map[string]string, len(b.titleMap)),
	}
	for k, v := range b.data {
		d.Data[k] = v
	}
	for k, v := range b.titleMap {
		d.TitleMap[k] = v
	}
	return d
}
