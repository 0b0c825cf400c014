package common

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToFloat coerces a value to float64. Strings are parsed after trimming.
// NaN and infinities are rejected so that keys stay comparable.
func ToFloat(value interface{}) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToBool reports the truthiness of a value: booleans as-is, non-zero
// numbers, and the strings "true", "yes", "1".
func ToBool(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1", "t", "y":
			return true
		}
		return false
	}
	if f, ok := ToFloat(value); ok {
		return f != 0
	}
	return false
}

// Key returns the canonical comparison key of a scalar value.
// Numeric-coercible values share a key with their numeric form, so 2020,
// 2020.0 and "2020" compare equal.
func Key(value interface{}) string {
	if value == nil {
		return ""
	}
	if b, ok := value.(bool); ok {
		return strconv.FormatBool(b)
	}
	if f, ok := ToFloat(value); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprint(value)
}

// Equal compares two scalar values by canonical key.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Key(a) == Key(b)
}

// Label renders a value for display. Whole numbers drop their fraction.
func Label(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	if f, ok := ToFloat(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}

// ToSlice returns the elements of a multi-valued value, or nil and false
// when the value is scalar.
func ToSlice(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case []interface{}:
		return v, true
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []bool:
		out := make([]interface{}, len(v))
		for i, b := range v {
			out[i] = b
		}
		return out, true
	}
	return nil, false
}

// Normalize converts numeric values to float64 and typed slices to
// []interface{} so that values survive a JSON round trip unchanged.
func Normalize(value interface{}) interface{} {
	if items, ok := ToSlice(value); ok {
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = Normalize(item)
		}
		return out
	}
	switch v := value.(type) {
	case nil, string, bool, float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	}
	if f, ok := ToFloat(value); ok {
		return f
	}
	return value
}

// Join renders a possibly multi-valued value as a comma separated label.
func Join(value interface{}) string {
	items, ok := ToSlice(value)
	if !ok {
		return Label(value)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, Label(item))
	}
	return strings.Join(parts, ", ")
}
