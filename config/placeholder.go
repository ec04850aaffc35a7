package config

import (
	"fmt"
	"strings"
)

// UnknownPlaceholderError reports a `{name}` token with no entry in
// the placeholder table.
type UnknownPlaceholderError struct {
	Key string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("The placeholder `%s` is unknown.", e.Key)
}

// Interpolate walks a settings tree of maps, slices and strings and
// substitutes `{name}` tokens from the table. Non-string leaves pass
// through untouched. A string consisting of exactly one placeholder
// takes the table value itself, so numeric and boolean substitutions
// keep their type; placeholders embedded in longer strings are
// formatted in. Doubled braces escape literals: `{{` renders `{`.
func Interpolate(obj any, table map[string]any) (any, error) {
	switch v := obj.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			sub, err := Interpolate(elem, table)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			sub, err := Interpolate(elem, table)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	case string:
		return interpolateString(v, table)
	default:
		return obj, nil
	}
}

// InterpolateString substitutes `{name}` tokens in a single string.
func InterpolateString(s string, table map[string]any) (string, error) {
	out, err := interpolateString(s, table)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", out), nil
}

func interpolateString(s string, table map[string]any) (any, error) {
	// Fast path: a string that is one bare placeholder keeps the
	// table value's type.
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && !strings.HasPrefix(s, "{{") {
		inner := s[1 : len(s)-1]
		if isPlaceholderName(inner) {
			val, ok := table[inner]
			if !ok {
				return nil, &UnknownPlaceholderError{Key: inner}
			}
			return val, nil
		}
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		switch s[i] {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				i = len(s)
				continue
			}
			name := s[i+1 : i+end]
			if !isPlaceholderName(name) {
				b.WriteString(s[i : i+end+1])
				i += end + 1
				continue
			}
			val, ok := table[name]
			if !ok {
				return nil, &UnknownPlaceholderError{Key: name}
			}
			fmt.Fprintf(&b, "%v", val)
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			b.WriteByte('}')
			i++
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), nil
}

func isPlaceholderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return false
	}
	return true
}
