// Package inputs declares dashboard input controls and the filter state
// they write to.
package inputs

import "github.com/crosstab/crosstab-go/common"

// Kind is the kind of input control.
type Kind string

const (
	SelectSingle   Kind = "select_single"
	SelectMultiple Kind = "select_multiple"
	Checkbox       Kind = "checkbox"
	Radio          Kind = "radio"
	ButtonGroup    Kind = "button_group"
	Slider         Kind = "slider"
	Text           Kind = "text"
	Number         Kind = "number"
	Switch         Kind = "switch"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{SelectSingle, SelectMultiple, Checkbox, Radio, ButtonGroup, Slider, Text, Number, Switch}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// MultiValued reports whether the input holds a set of values.
func (k Kind) MultiValued() bool {
	return k == SelectMultiple || k == Checkbox
}

// Numeric reports whether the input produces numbers.
func (k Kind) Numeric() bool {
	return k == Slider || k == Number
}

// Enumerated reports whether the input chooses from a list of values.
func (k Kind) Enumerated() bool {
	switch k {
	case SelectSingle, SelectMultiple, Checkbox, Radio, ButtonGroup:
		return true
	}
	return false
}

// Domain is the set of values an input can take: either enumerated
// values or a numeric range.
type Domain struct {
	Values []interface{} `json:"values,omitempty" yaml:"values,omitempty"`
	Min    *float64      `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64      `json:"max,omitempty" yaml:"max,omitempty"`
	Step   float64       `json:"step,omitempty" yaml:"step,omitempty"`
}

// Contains reports whether v is an enumerated value or lies in the range.
// An empty domain contains everything.
func (d Domain) Contains(v interface{}) bool {
	if len(d.Values) > 0 {
		for _, candidate := range d.Values {
			if common.Equal(candidate, v) {
				return true
			}
		}
		return false
	}
	if d.Min == nil && d.Max == nil {
		return true
	}
	f, ok := common.ToFloat(v)
	if !ok {
		return false
	}
	if d.Min != nil && f < *d.Min {
		return false
	}
	if d.Max != nil && f > *d.Max {
		return false
	}
	return true
}

// AllNumeric reports whether every enumerated value coerces to a number.
func (d Domain) AllNumeric() bool {
	if len(d.Values) == 0 {
		return d.Min != nil || d.Max != nil
	}
	for _, v := range d.Values {
		if _, ok := common.ToFloat(v); !ok {
			return false
		}
	}
	return true
}

// Range builds a numeric range domain.
func Range(min, max, step float64) Domain {
	return Domain{Min: &min, Max: &max, Step: step}
}

// Values builds an enumerated domain.
func Values(values ...interface{}) Domain {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = common.Normalize(v)
	}
	return Domain{Values: out}
}

// Spec declares one input control.
type Spec struct {
	// ID is the unique input identifier used in formulas and templates.
	ID string `json:"id" yaml:"id"`

	// Kind selects the control and its value semantics.
	Kind Kind `json:"kind" yaml:"kind"`

	// Variable is the dataset column the input filters, if any.
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty"`

	// Domain lists the values the control offers.
	Domain Domain `json:"domain" yaml:"domain"`

	// Default is the initial value.
	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`

	// Virtual inputs drive visibility and templates only and never filter data.
	Virtual bool `json:"virtual,omitempty" yaml:"virtual,omitempty"`

	// Label is shown next to the control.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Override marks a toggle whose series ignores live filters.
	Override bool `json:"override,omitempty" yaml:"override,omitempty"`
}

// Filters reports whether the input filters the given column.
func (s Spec) Filters(column string) bool {
	return !s.Virtual && s.Variable != "" && s.Variable == column
}

// Options returns the enumerated values of the input.
func (s Spec) Options() []interface{} {
	out := make([]interface{}, len(s.Domain.Values))
	copy(out, s.Domain.Values)
	return out
}
