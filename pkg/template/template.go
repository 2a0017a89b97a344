// Package template substitutes named {placeholder} values into nested
// parameter structures, dropping any branch that cannot be fully resolved.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z0-9_]+\}`)

// Render substitutes placeholders of the form {name} throughout a nested
// structure of strings, maps and slices. A string bound to a nil value, or
// left with any unresolved placeholder, is dropped entirely: map keys with
// dropped values are omitted and slices are compacted. Non-string scalars
// pass through unchanged. Render is pure and idempotent; a dropped branch is
// reported as a nil result.
func Render(value any, vars map[string]any) any {
	switch v := value.(type) {
	case string:
		return renderString(v, vars)
	case map[string]any:
		rendered := make(map[string]any, len(v))
		for key, item := range v {
			if rv := Render(item, vars); rv != nil {
				rendered[key] = rv
			}
		}
		return rendered
	case []any:
		rendered := make([]any, 0, len(v))
		for _, item := range v {
			if rv := Render(item, vars); rv != nil {
				rendered = append(rendered, rv)
			}
		}
		return rendered
	default:
		return value
	}
}

// RenderVariables renders an endpoint's variables template into a concrete
// variables map. A nil or fully-dropped template yields an empty map.
func RenderVariables(template map[string]any, vars map[string]any) map[string]any {
	rendered, ok := Render(template, vars).(map[string]any)
	if !ok || rendered == nil {
		return map[string]any{}
	}
	return rendered
}

func renderString(s string, vars map[string]any) any {
	for name, bound := range vars {
		placeholder := "{" + name + "}"
		if !strings.Contains(s, placeholder) {
			continue
		}
		if bound == nil {
			return nil
		}
		s = strings.ReplaceAll(s, placeholder, stringify(bound))
	}
	if placeholderPattern.MatchString(s) {
		// unresolved placeholder remains
		return nil
	}
	return s
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
