package pipeline

import (
	"sort"
)

// ChartType is a supported chart kind.
type ChartType string

const (
	Bar        ChartType = "bar"
	StackedBar ChartType = "stacked_bar"
	Pie        ChartType = "pie"
	Timeline   ChartType = "timeline"
	Heatmap    ChartType = "heatmap"
	Scatter    ChartType = "scatter"
	Histogram  ChartType = "histogram"
)

// chartKind describes the roles a chart type accepts and how they shape
// the output: category becomes points, series splits series.
type chartKind struct {
	required    []Role
	optional    []Role
	category    Role
	series      Role
	aggregation AggregationMode
	numericX    bool
}

var chartKinds = map[ChartType]chartKind{
	Bar: {
		required: []Role{RoleX},
		optional: []Role{RoleGroup, RoleY, RoleWeight},
		category: RoleX,
		series:   RoleGroup,
	},
	StackedBar: {
		required: []Role{RoleX, RoleStack},
		optional: []Role{RoleY, RoleWeight},
		category: RoleX,
		series:   RoleStack,
	},
	Pie: {
		required: []Role{RoleX},
		optional: []Role{RoleY, RoleWeight},
		category: RoleX,
	},
	Timeline: {
		required: []Role{RoleTime},
		optional: []Role{RoleGroup, RoleY, RoleWeight},
		category: RoleTime,
		series:   RoleGroup,
	},
	Heatmap: {
		required: []Role{RoleX, RoleGroup, RoleY},
		optional: []Role{RoleWeight},
		category: RoleX,
		series:   RoleGroup,
	},
	Scatter: {
		required:    []Role{RoleX, RoleY},
		optional:    []Role{RoleGroup},
		category:    RoleX,
		series:      RoleGroup,
		aggregation: None,
	},
	Histogram: {
		required: []Role{RoleX},
		optional: []Role{RoleGroup, RoleY, RoleWeight},
		category: RoleX,
		series:   RoleGroup,
		numericX: true,
	},
}

// ChartTypes lists the supported chart types in name order.
func ChartTypes() []ChartType {
	out := make([]ChartType, 0, len(chartKinds))
	for t := range chartKinds {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (k chartKind) accepts(role Role) bool {
	for _, r := range k.required {
		if r == role {
			return true
		}
	}
	for _, r := range k.optional {
		if r == role {
			return true
		}
	}
	return false
}
