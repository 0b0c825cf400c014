package inputs

import (
	"errors"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/crosstab/crosstab-go/common"
)

const maxSuggestions = 3

// Registry holds the validated input declarations of a dashboard in
// declaration order. It is immutable once built.
type Registry struct {
	specs []Spec
	index map[string]int
}

// NewRegistry validates specs and builds a registry. Every problem is
// reported; the returned error joins them.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{
		specs: make([]Spec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	var errs []error
	for _, spec := range specs {
		spec = normalizeSpec(spec)
		if _, exists := r.index[spec.ID]; exists && spec.ID != "" {
			errs = append(errs, &DuplicateInputError{ID: spec.ID})
			continue
		}
		if specErrs := validateSpec(spec); len(specErrs) > 0 {
			errs = append(errs, specErrs...)
			continue
		}
		r.index[spec.ID] = len(r.specs)
		r.specs = append(r.specs, spec)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

func normalizeSpec(spec Spec) Spec {
	spec.ID = strings.TrimSpace(spec.ID)
	spec.Variable = strings.TrimSpace(spec.Variable)
	if len(spec.Domain.Values) > 0 {
		values := make([]interface{}, len(spec.Domain.Values))
		for i, v := range spec.Domain.Values {
			values[i] = common.Normalize(v)
		}
		spec.Domain.Values = values
	}
	spec.Default = common.Normalize(spec.Default)
	return spec
}

func validateSpec(spec Spec) []error {
	var errs []error
	invalid := func(reason string) {
		errs = append(errs, &InvalidSpecError{ID: spec.ID, Reason: reason})
	}

	if spec.ID == "" {
		invalid("missing id")
		return errs
	}
	if !spec.Kind.Valid() {
		invalid("unknown kind " + string(spec.Kind))
		return errs
	}
	if spec.Virtual && spec.Variable != "" {
		invalid("virtual input must not bind variable " + spec.Variable)
	}
	if spec.Kind.Enumerated() && len(spec.Domain.Values) == 0 {
		invalid("kind " + string(spec.Kind) + " requires domain values")
	}
	if spec.Kind == Slider && (spec.Domain.Min == nil || spec.Domain.Max == nil) {
		invalid("slider requires min and max")
	}
	if spec.Domain.Min != nil && spec.Domain.Max != nil && *spec.Domain.Min > *spec.Domain.Max {
		invalid("domain min is greater than max")
	}
	if len(errs) > 0 {
		return errs
	}
	if err := validateDefault(spec); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func validateDefault(spec Spec) error {
	def := spec.Default
	if def == nil {
		return nil
	}
	fail := func(reason string) error {
		return &InvalidDefaultError{ID: spec.ID, Value: def, Reason: reason}
	}

	switch {
	case spec.Kind.MultiValued():
		items, ok := common.ToSlice(def)
		if !ok {
			items = []interface{}{def}
		}
		for _, item := range items {
			if !spec.Domain.Contains(item) {
				return fail("value " + common.Label(item) + " is not in the domain")
			}
		}
	case spec.Kind.Enumerated():
		if _, ok := common.ToSlice(def); ok {
			return fail("single-valued input cannot default to a list")
		}
		if !spec.Domain.Contains(def) {
			return fail("not in the domain")
		}
	case spec.Kind.Numeric():
		values, ok := numericValues(def)
		if !ok {
			return fail("not numeric")
		}
		for _, v := range values {
			if !spec.Domain.Contains(v) {
				return fail("outside the range")
			}
		}
	case spec.Kind == Switch:
		if _, ok := def.(bool); !ok {
			return fail("switch default must be true or false")
		}
	case spec.Kind == Text:
		if _, ok := def.(string); !ok {
			return fail("text default must be a string")
		}
	}
	return nil
}

// numericValues accepts a number or a two-element range.
func numericValues(v interface{}) ([]float64, bool) {
	if items, ok := common.ToSlice(v); ok {
		if len(items) != 2 {
			return nil, false
		}
		lo, okLo := common.ToFloat(items[0])
		hi, okHi := common.ToFloat(items[1])
		if !okLo || !okHi {
			return nil, false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return []float64{lo, hi}, true
	}
	f, ok := common.ToFloat(v)
	if !ok {
		return nil, false
	}
	return []float64{f}, true
}

// Lookup returns the spec of id.
func (r *Registry) Lookup(id string) (Spec, bool) {
	i, ok := r.index[id]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// Has reports whether id is declared.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Index returns the declaration position of id, or -1.
func (r *Registry) Index(id string) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of inputs.
func (r *Registry) Len() int {
	return len(r.specs)
}

// IDs returns the input ids in declaration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.specs))
	for i, spec := range r.specs {
		ids[i] = spec.ID
	}
	return ids
}

// Specs returns a copy of the declarations in order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// ByVariable returns the non-virtual inputs bound to column.
func (r *Registry) ByVariable(column string) []Spec {
	var out []Spec
	for _, spec := range r.specs {
		if spec.Filters(column) {
			out = append(out, spec)
		}
	}
	return out
}

// Suggest ranks declared ids by edit distance to name. Candidates within
// three edits or half the name length qualify, closest first.
func (r *Registry) Suggest(name string) []string {
	type candidate struct {
		id       string
		distance int
		order    int
	}
	limit := len(name) / 2
	if limit < 3 {
		limit = 3
	}

	var candidates []candidate
	for i, spec := range r.specs {
		d := levenshtein.ComputeDistance(name, spec.ID)
		if d == 0 || d > limit {
			continue
		}
		candidates = append(candidates, candidate{id: spec.ID, distance: d, order: i})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].order < candidates[j].order
	})

	out := make([]string, 0, maxSuggestions)
	for _, c := range candidates {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.id)
	}
	return out
}

// Unknown builds an UnknownInputError with suggestions for id.
func (r *Registry) Unknown(id string) *UnknownInputError {
	return &UnknownInputError{ID: id, Suggestions: r.Suggest(id)}
}

// DefaultState returns the initial filter state.
func (r *Registry) DefaultState() State {
	state := make(State, len(r.specs))
	for _, spec := range r.specs {
		value, err := normalizeValue(spec, spec.Default)
		if err != nil {
			value = nil
		}
		state[spec.ID] = value
	}
	return state
}

// Normalize coerces value to the representation the input kind holds:
// multi-valued inputs hold slices, numeric inputs float64, switches bools.
func (r *Registry) Normalize(id string, value interface{}) (interface{}, error) {
	spec, ok := r.Lookup(id)
	if !ok {
		return nil, r.Unknown(id)
	}
	return normalizeValue(spec, value)
}

func normalizeValue(spec Spec, value interface{}) (interface{}, error) {
	value = common.Normalize(value)

	switch {
	case spec.Kind.MultiValued():
		if value == nil {
			return []interface{}{}, nil
		}
		items, ok := common.ToSlice(value)
		if !ok {
			items = []interface{}{value}
		}
		out := make([]interface{}, 0, len(items))
		for _, item := range items {
			if !spec.Domain.Contains(item) {
				return nil, &InvalidValueError{ID: spec.ID, Value: item, Reason: "not in the domain"}
			}
			out = append(out, canonical(spec, item))
		}
		return out, nil
	case spec.Kind.Enumerated():
		if _, ok := common.ToSlice(value); ok {
			return nil, &InvalidValueError{ID: spec.ID, Value: value, Reason: "single-valued input"}
		}
		if value == nil || value == "" {
			return value, nil
		}
		if !spec.Domain.Contains(value) {
			return nil, &InvalidValueError{ID: spec.ID, Value: value, Reason: "not in the domain"}
		}
		return canonical(spec, value), nil
	case spec.Kind.Numeric():
		if value == nil || value == "" {
			return nil, nil
		}
		values, ok := numericValues(value)
		if !ok {
			return nil, &InvalidValueError{ID: spec.ID, Value: value, Reason: "not numeric"}
		}
		if len(values) == 2 {
			return []interface{}{values[0], values[1]}, nil
		}
		return values[0], nil
	case spec.Kind == Switch:
		return common.ToBool(value), nil
	case spec.Kind == Text:
		if value == nil {
			return "", nil
		}
		return common.Label(value), nil
	}
	return value, nil
}

// canonical maps v to the domain's own representation of the same key.
func canonical(spec Spec, v interface{}) interface{} {
	for _, candidate := range spec.Domain.Values {
		if common.Equal(candidate, v) {
			return candidate
		}
	}
	return v
}
