package analysis

import (
	"sort"

	"github.com/crosstab/crosstab-go/inputs"
)

// CoverageReport summarizes which declared inputs the dashboard uses.
type CoverageReport struct {
	UsedInputs    []string `json:"used_inputs"`
	UnknownInputs []string `json:"unknown_inputs"`
	UnusedInputs  []string `json:"unused_inputs"`
}

// BuildCoverage compares the inputs referenced by formulas, templates,
// links and filters against the registry.
func BuildCoverage(registry *inputs.Registry, used map[string]struct{}) CoverageReport {
	report := CoverageReport{}
	known := make(map[string]struct{}, registry.Len())
	for _, id := range registry.IDs() {
		known[id] = struct{}{}
	}

	for id := range used {
		report.UsedInputs = append(report.UsedInputs, id)
		if _, ok := known[id]; !ok {
			report.UnknownInputs = append(report.UnknownInputs, id)
		}
	}
	for id := range known {
		if _, ok := used[id]; !ok {
			report.UnusedInputs = append(report.UnusedInputs, id)
		}
	}

	sort.Strings(report.UsedInputs)
	sort.Strings(report.UnknownInputs)
	sort.Strings(report.UnusedInputs)
	return report
}

// Used collects ids into a set.
func Used(ids ...[]string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, group := range ids {
		for _, id := range group {
			out[id] = struct{}{}
		}
	}
	return out
}

// UsedSorted returns the ids of a used set in order.
func UsedSorted(used map[string]struct{}) []string {
	return sortedKeys(used)
}
