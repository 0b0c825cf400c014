package templating

import (
	"testing"

	"github.com/crosstab/crosstab-go/inputs"
	"github.com/stretchr/testify/assert"
)

func TestRenderResolutionOrder(t *testing.T) {
	ctx := Context{
		TitleMap:  map[string]string{"question": "How satisfied are you?"},
		GroupKeys: map[string]interface{}{"gender": "F", "question": "ignored"},
		State:     inputs.State{"gender": "M", "years": []interface{}{2020.0, 2021.0}, "wave": 2.0},
	}

	tests := []struct {
		name     string
		template string
		want     string
		warnings []Warning
	}{
		{"title map first", "{question}", "How satisfied are you?", nil},
		{"group key before state", "Gender {gender}", "Gender F", nil},
		{"multi-valued state joins", "Years: {years}", "Years: 2020, 2021", nil},
		{"numbers drop fraction", "Wave {wave}", "Wave 2", nil},
		{"unresolved left verbatim", "{missing} and {wave}", "{missing} and 2", []Warning{{Name: "missing", Offset: 0}}},
		{"escaped braces", "{{wave}} = {wave}", "{wave} = 2", nil},
		{"not a placeholder", "{ wave } {1x}", "{ wave } {1x}", nil},
		{"unterminated", "total {wave", "total {wave", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := Render(tt.template, ctx)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.warnings, warnings)
		})
	}
}

func TestPlaceholdersAndCheck(t *testing.T) {
	template := "{a} {b.c} {a} {{d}} {e}"
	assert.Equal(t, []string{"a", "b.c", "e"}, Placeholders(template))

	known := map[string]bool{"a": true, "b.c": true}
	warnings := Check(template, func(name string) bool { return known[name] })
	assert.Equal(t, []Warning{{Name: "e", Offset: 20}}, warnings)
	assert.Equal(t, "unresolved placeholder {e} at offset 20", warnings[0].String())
}
