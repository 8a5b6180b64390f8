package render

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{key}} tokens with values from vars.
// Unknown tokens are left untouched so a half-filled template
// is still visible as such to the operator.
func Render(tmpl string, vars map[string]string) string {
	if tmpl == "" || !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return tokenRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := tokenRe.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		if v, ok := vars[sub[1]]; ok {
			return v
		}
		return m
	})
}
