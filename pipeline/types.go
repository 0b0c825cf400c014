// Package pipeline compiles chart bindings into filter, group, aggregate
// and shape functions over interned datasets.
package pipeline

// Role names what a dataset column does in a chart.
type Role string

const (
	RoleX      Role = "x"
	RoleY      Role = "y"
	RoleStack  Role = "stack"
	RoleGroup  Role = "group"
	RoleTime   Role = "time"
	RoleWeight Role = "weight"
)

// AggregationMode selects how grouped rows become values.
type AggregationMode string

const (
	Count    AggregationMode = "count"
	Percent  AggregationMode = "percent"
	Mean     AggregationMode = "mean"
	Sum      AggregationMode = "sum"
	Weighted AggregationMode = "weighted"
	None     AggregationMode = "none"
)

// Valid reports whether m is a known mode.
func (m AggregationMode) Valid() bool {
	switch m {
	case Count, Percent, Mean, Sum, Weighted, None:
		return true
	}
	return false
}

// NeedsY reports whether the mode aggregates the y column.
func (m AggregationMode) NeedsY() bool {
	return m == Mean || m == Sum || m == Weighted
}

// Toggle adds a named series computed from rows that ignore live filters.
// The series is shown while Input is on.
type Toggle struct {
	Input string `json:"input" yaml:"input"`
	Name  string `json:"name" yaml:"name"`
}

// Binding declares how one chart draws from a dataset.
type Binding struct {
	ChartID        string                   `json:"chart_id"`
	Type           ChartType                `json:"type"`
	Library        string                   `json:"library,omitempty"`
	Dataset        string                   `json:"dataset"`
	Roles          map[Role]string          `json:"roles"`
	CrossTab       []string                 `json:"cross_tab,omitempty"`
	Aggregation    AggregationMode          `json:"aggregation,omitempty"`
	CompleteGroups *bool                    `json:"complete_groups,omitempty"`
	Levels         map[string][]interface{} `json:"levels,omitempty"`
	Toggles        []Toggle                 `json:"toggles,omitempty"`
	SeriesLabels   map[string]string        `json:"series_labels,omitempty"`
	SeriesName     string                   `json:"series_name,omitempty"`
	Bins           int                      `json:"bins,omitempty"`
}

// Complete reports whether missing key combinations are filled with zeros.
func (b Binding) Complete() bool {
	return b.CompleteGroups == nil || *b.CompleteGroups
}

// Column returns the column bound to role.
func (b Binding) Column(role Role) string {
	return b.Roles[role]
}

// Point is one category value of a series.
type Point struct {
	Label string  `json:"label"`
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Series is one named line, bar group or slice set.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// SeriesData is what a chart renderer receives.
type SeriesData struct {
	ChartID string   `json:"chart_id"`
	Title   string   `json:"title,omitempty"`
	Series  []Series `json:"series"`
}

// Empty reports whether there is nothing to draw.
func (d SeriesData) Empty() bool {
	return len(d.Series) == 0
}
