package aggregate

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/crm/internal/serviceclient"
)

// FieldMatch keeps records where any of fields contains q, ignoring case.
// Missing fields never match; non-string values are compared by their text form.
func FieldMatch(fields []string, q string) Predicate {
	needle := strings.ToLower(strings.TrimSpace(q))
	return func(r serviceclient.Record) bool {
		if needle == "" {
			return false
		}
		for _, f := range fields {
			raw, ok := r[f]
			if !ok || raw == nil {
				continue
			}
			var text string
			switch v := raw.(type) {
			case string:
				text = v
			case map[string]any, []any:
				continue
			default:
				text = fmt.Sprint(v)
			}
			if strings.Contains(strings.ToLower(text), needle) {
				return true
			}
		}
		return false
	}
}
