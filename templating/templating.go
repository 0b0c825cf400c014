// Package templating substitutes {name} placeholders in titles and labels.
package templating

import (
	"fmt"
	"strings"

	"github.com/crosstab/crosstab-go/common"
	"github.com/crosstab/crosstab-go/inputs"
)

// Context supplies placeholder values. Lookup order is TitleMap, then
// GroupKeys, then State.
type Context struct {
	TitleMap  map[string]string
	GroupKeys map[string]interface{}
	State     inputs.State
}

// Warning reports a placeholder that could not be resolved. It is left in
// the output verbatim.
type Warning struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
}

func (w Warning) String() string {
	return fmt.Sprintf("unresolved placeholder {%s} at offset %d", w.Name, w.Offset)
}

// Lookup resolves one name against the context.
func (c Context) Lookup(name string) (string, bool) {
	if v, ok := c.TitleMap[name]; ok {
		return v, true
	}
	if v, ok := c.GroupKeys[name]; ok {
		return common.Join(v), true
	}
	if v, ok := c.State[name]; ok {
		return common.Join(v), true
	}
	return "", false
}

// Render substitutes every placeholder in template. "{{" and "}}" produce
// literal braces.
func Render(template string, ctx Context) (string, []Warning) {
	var b strings.Builder
	var warnings []Warning
	scan(template, func(text string) {
		b.WriteString(text)
	}, func(name string, offset int) {
		if v, ok := ctx.Lookup(name); ok {
			b.WriteString(v)
			return
		}
		warnings = append(warnings, Warning{Name: name, Offset: offset})
		b.WriteString("{" + name + "}")
	})
	return b.String(), warnings
}

// Placeholders returns the placeholder names of template in order of
// first appearance.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]struct{})
	scan(template, func(string) {}, func(name string, _ int) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	})
	return names
}

// Check reports the placeholders of template that resolve reports as
// unknown.
func Check(template string, resolve func(name string) bool) []Warning {
	var warnings []Warning
	scan(template, func(string) {}, func(name string, offset int) {
		if !resolve(name) {
			warnings = append(warnings, Warning{Name: name, Offset: offset})
		}
	})
	return warnings
}

// scan splits template into literal text and placeholder names. Braces
// that do not enclose a valid name are literal text.
func scan(template string, text func(string), placeholder func(name string, offset int)) {
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			text(literal.String())
			literal.Reset()
		}
	}

	for i := 0; i < len(template); i++ {
		ch := template[i]
		switch {
		case ch == '{' && i+1 < len(template) && template[i+1] == '{':
			literal.WriteByte('{')
			i++
		case ch == '}' && i+1 < len(template) && template[i+1] == '}':
			literal.WriteByte('}')
			i++
		case ch == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 || !validName(template[i+1:i+1+end]) {
				literal.WriteByte(ch)
				continue
			}
			flush()
			placeholder(template[i+1:i+1+end], i)
			i += end + 1
		default:
			literal.WriteByte(ch)
		}
	}
	flush()
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
