package bot

import (
	"strings"
)

// placeholders is the closed set of names the message templates may
// interpolate. Anything else in a template is left verbatim; templates are
// plain text, never evaluated.
var placeholders = []string{
	"nome",
	"tipo",
	"mes",
	"dia",
	"convidados",
	"unidade",
	"resposta",
}

// Render substitutes {name} placeholders from vars. Unknown placeholders
// and missing vars pass through untouched.
func Render(text string, vars map[string]string) string {
	for _, key := range placeholders {
		if value, ok := vars[key]; ok {
			text = strings.ReplaceAll(text, "{"+key+"}", value)
		}
	}
	return text
}
