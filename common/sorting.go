package common

import (
	"sort"
	"strings"
)

// Less orders values naturally: numbers before text, numbers ascending,
// text by case-insensitive comparison with the raw text as tie breaker.
func Less(a, b interface{}) bool {
	fa, aNum := ToFloat(a)
	fb, bNum := ToFloat(b)
	switch {
	case aNum && bNum:
		return fa < fb
	case aNum != bNum:
		return aNum
	}
	la, lb := strings.ToLower(Label(a)), strings.ToLower(Label(b))
	if la != lb {
		return la < lb
	}
	return Label(a) < Label(b)
}

// SortValues sorts values in natural order, stable for equal keys.
func SortValues(values []interface{}) {
	sort.SliceStable(values, func(i, j int) bool {
		return Less(values[i], values[j])
	})
}

// OrderByLevels orders values by an explicit level list first, then
// the remaining values in natural order. Duplicate keys are dropped.
func OrderByLevels(values []interface{}, levels []interface{}) []interface{} {
	present := make(map[string]interface{}, len(values))
	for _, v := range values {
		key := Key(v)
		if _, ok := present[key]; !ok {
			present[key] = v
		}
	}

	out := make([]interface{}, 0, len(present))
	used := make(map[string]struct{}, len(present))
	for _, level := range levels {
		key := Key(level)
		v, ok := present[key]
		if !ok {
			continue
		}
		if _, dup := used[key]; dup {
			continue
		}
		used[key] = struct{}{}
		out = append(out, v)
	}

	rest := make([]interface{}, 0, len(present)-len(out))
	for _, v := range values {
		key := Key(v)
		if _, ok := used[key]; ok {
			continue
		}
		used[key] = struct{}{}
		rest = append(rest, v)
	}
	SortValues(rest)
	return append(out, rest...)
}
