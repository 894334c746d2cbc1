package schema

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/xtremefabrix/formrelay/model"
)

var strict = bluemonday.StrictPolicy()

// Normalize returns the values a submission of s actually carries: one entry
// per schema field, a blank field that declares a default set to it, and
// markup stripped from fields marked for sanitizing. Validate checks these
// values, and they are what gets delivered, so a payload always satisfies the
// constraints it was validated against. values is not modified.
func Normalize(s model.FormSchema, values model.Values) model.Values {
	out := make(model.Values, len(s.Fields))
	for _, f := range s.Fields {
		v := values[f.Name]
		if f.Default != "" && strings.TrimSpace(v) == "" {
			v = f.Default
		}
		if f.Sanitize && v != "" {
			v = html.UnescapeString(strict.Sanitize(v))
		}
		out[f.Name] = v
	}
	return out
}
