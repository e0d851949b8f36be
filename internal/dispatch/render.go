package dispatch

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"github.com/smallbiznis/crm/pkg/money"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(
	template.New("notifications").
		Funcs(template.FuncMap{
			"money": formatMoney,
			"qty":   func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
		}).
		ParseFS(templateFS, "templates/*.html"),
)

// formatMoney prints ledger amounts and plain float figures (payroll) alike.
func formatMoney(v any) string {
	switch x := v.(type) {
	case money.Amount:
		return x.String()
	case float64:
		return fmt.Sprintf("%.2f", x)
	default:
		return fmt.Sprint(v)
	}
}

func render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name+".html", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return body.String(), nil
}
