package domain

import "strings"

// DecodeSubject normalizes the upstream "materias" field, which
// arrives as a string, a list of strings, a single object carrying
// "description" or "code", or a list of such objects, into one
// canonical comma-joined string. The variant never survives past this
// call.
func DecodeSubject(raw interface{}) string {
	values := subjectValues(raw)
	if len(values) == 0 {
		return "N/A"
	}
	return strings.Join(values, ", ")
}

func subjectValues(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return []string{s}
	case []interface{}:
		var out []string
		for _, item := range v {
			out = append(out, subjectValues(item)...)
		}
		return out
	case map[string]interface{}:
		if s, ok := stringField(v, "description"); ok {
			return []string{s}
		}
		if s, ok := stringField(v, "code"); ok {
			return []string{s}
		}
		return nil
	default:
		return nil
	}
}

func stringField(m map[string]interface{}, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}
