package vars

import (
	"strings"
)

// Substitute expands every ${NAME} placeholder in template against the
// resolved environment. An unknown name fails before any partial result
// is returned. The expansion is single-pass: substituted values are
// never re-expanded, and a value that itself carries placeholder syntax
// fails rather than leaking a marker into the output.
func Substitute(template string, env *Environment) (string, error) {
	return expandPlaceholders(template, env.Lookup)
}

func expandPlaceholders(template string, lookup func(string) (string, bool)) (string, error) {
	if !strings.Contains(template, "${") {
		return template, nil
	}
	var out strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:start])
		rest = rest[start+2:]
		end := strings.Index(rest, "}")
		if end < 0 {
			return "", &ResolutionError{Key: template, Reason: "unterminated placeholder"}
		}
		name := rest[:end]
		if name == "" {
			return "", &ResolutionError{Key: template, Reason: "empty placeholder"}
		}
		value, ok := lookup(name)
		if !ok {
			return "", &ResolutionError{Key: name, Reason: "unknown variable referenced by " + template}
		}
		// Expansion is single-pass, so an inserted value carrying
		// placeholder syntax would survive into the output verbatim.
		// Refuse it instead.
		if strings.Contains(value, "${") {
			return "", &ResolutionError{Key: name, Reason: "value contains an unresolved placeholder: " + value}
		}
		out.WriteString(value)
		rest = rest[end+1:]
	}
}
