package serviceclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one resource document as returned by a resource service. Shapes
// differ per service, so fields are read through the typed helpers.
type Record map[string]any

func (r Record) ID() string {
	if id := r.String("id"); id != "" {
		return id
	}
	return r.String("_id")
}

// String renders the field as text. Numbers and booleans are formatted, nested
// values yield "".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int, int64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// Float reads a numeric field, accepting numeric strings. Anything else is 0.
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Is reports whether the field equals any of values, ignoring case and spacing.
func (r Record) Is(key string, values ...string) bool {
	got := strings.TrimSpace(r.String(key))
	for _, v := range values {
		if strings.EqualFold(got, v) {
			return true
		}
	}
	return false
}
