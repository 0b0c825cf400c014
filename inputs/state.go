package inputs

import "github.com/crosstab/crosstab-go/common"

// State maps input ids to their current values. It is the only mutable
// object of a running dashboard.
type State map[string]interface{}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		if items, ok := common.ToSlice(v); ok {
			copied := make([]interface{}, len(items))
			copy(copied, items)
			out[k] = copied
			continue
		}
		out[k] = v
	}
	return out
}

// Values returns the value of id as a slice: multi-valued values as-is,
// scalars wrapped, nil as an empty slice.
func (s State) Values(id string) []interface{} {
	v, ok := s[id]
	if !ok || v == nil {
		return nil
	}
	if items, ok := common.ToSlice(v); ok {
		return items
	}
	return []interface{}{v}
}
