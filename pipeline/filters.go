package pipeline

import (
	"strings"

	"github.com/crosstab/crosstab-go/common"
	"github.com/crosstab/crosstab-go/inputs"
)

// liveFilter applies one input to one column on every recompute.
type liveFilter struct {
	input  string
	kind   inputs.Kind
	column int
}

// matcher returns the row test for the current state, or nil when the
// input imposes no restriction.
func (f liveFilter) matcher(state inputs.State) func(row []interface{}) bool {
	value := state[f.input]
	c := f.column

	switch {
	case f.kind.MultiValued():
		selected := state.Values(f.input)
		keys := make(map[string]struct{}, len(selected))
		for _, v := range selected {
			keys[common.Key(v)] = struct{}{}
		}
		return func(row []interface{}) bool {
			if row[c] == nil {
				return false
			}
			_, ok := keys[common.Key(row[c])]
			return ok
		}

	case f.kind.Numeric():
		if value == nil {
			return nil
		}
		if items, ok := common.ToSlice(value); ok {
			if len(items) != 2 {
				return nil
			}
			lo, okLo := common.ToFloat(items[0])
			hi, okHi := common.ToFloat(items[1])
			if !okLo || !okHi {
				return nil
			}
			return func(row []interface{}) bool {
				v, ok := common.ToFloat(row[c])
				return ok && v >= lo && v <= hi
			}
		}
		want, ok := common.ToFloat(value)
		if !ok {
			return nil
		}
		return func(row []interface{}) bool {
			v, ok := common.ToFloat(row[c])
			return ok && v == want
		}

	case f.kind == inputs.Text:
		needle := strings.ToLower(strings.TrimSpace(common.Label(value)))
		if needle == "" {
			return nil
		}
		return func(row []interface{}) bool {
			return row[c] != nil && strings.Contains(strings.ToLower(common.Label(row[c])), needle)
		}

	case f.kind == inputs.Switch:
		if !common.ToBool(value) {
			return nil
		}
		return func(row []interface{}) bool {
			return common.ToBool(row[c])
		}
	}

	if value == nil || value == "" {
		return nil
	}
	key := common.Key(value)
	return func(row []interface{}) bool {
		return row[c] != nil && common.Key(row[c]) == key
	}
}

// applyFilters keeps rows passing every active filter. Filters combine
// with AND; an inactive filter passes everything.
func applyFilters(rows [][]interface{}, filters []liveFilter, state inputs.State) [][]interface{} {
	var active []func([]interface{}) bool
	for _, f := range filters {
		if m := f.matcher(state); m != nil {
			active = append(active, m)
		}
	}
	if len(active) == 0 {
		return rows
	}

	out := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, m := range active {
			if !m(row) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}
