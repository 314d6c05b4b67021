package domain

import (
	"encoding/json"
	"fmt"
)

// jsonString renders a Go string as a JSON string literal.
func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// jsonValue renders v as JSON, recursing into maps so their keys are
// sorted at every level rather than just the top one.
func jsonValue(v any) string {
	switch t := v.(type) {
	case map[string]any:
		return CanonicalJSON(t)
	case []any:
		items := make([]string, len(t))
		for i, e := range t {
			items[i] = jsonValue(e)
		}
		return "[" + join(items, ",") + "]"
	case nil:
		return "null"
	case string:
		return jsonString(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return jsonString(fmt.Sprintf("%v", t))
		}
		return string(b)
	}
}

func join(items []string, sep string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += sep
		}
		out += it
	}
	return out
}
