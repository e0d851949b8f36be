// Package pdf renders invoices and payment receipts with maroto.
package pdf

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/crm/pkg/money"
	"go.uber.org/fx"
)

var Module = fx.Module("pdf",
	fx.Provide(func() Provider { return New() }),
)

// Provider turns a prepared document into PDF bytes.
type Provider interface {
	Invoice(doc InvoiceDocument) ([]byte, error)
	Receipt(doc ReceiptDocument) ([]byte, error)
}

type Line struct {
	Description string
	Quantity    float64
	UnitPrice   money.Amount
	Amount      money.Amount
}

type InvoiceDocument struct {
	Issuer        string
	Number        string
	Status        string
	IssueDate     string
	DueDate       string
	CustomerName  string
	CustomerEmail string
	Lines         []Line
	Total         money.Amount
	Collected     money.Amount
	Notes         string
}

type ReceiptDocument struct {
	Issuer        string
	ReceiptNumber string
	InvoiceNumber string
	CustomerName  string
	Method        string
	Reference     string
	DatePaid      string
	Amount        money.Amount
	InvoiceTotal  money.Amount
	Collected     money.Amount
}

type marotoProvider struct{}

func New() Provider {
	return &marotoProvider{}
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func (p *marotoProvider) Invoice(doc InvoiceDocument) ([]byte, error) {
	m := newDocument()

	m.AddRow(14,
		text.NewCol(8, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold}),
		text.NewCol(4, doc.Status, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right, Top: 4}),
	)
	m.AddRow(22,
		col.New(6).Add(
			text.New("Invoice number: "+doc.Number),
			text.New("Date of issue: "+doc.IssueDate, props.Text{Top: 5}),
			text.New("Date due: "+orDash(doc.DueDate), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(doc.CustomerName, props.Text{Top: 5}),
			text.New(doc.CustomerEmail, props.Text{Top: 10}),
		),
	)
	if doc.Issuer != "" {
		m.AddRow(8, text.NewCol(12, doc.Issuer, props.Text{Size: 9, Style: fontstyle.Italic}))
	}

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))
	for _, item := range doc.Lines {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, quantity(item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount.String(), props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(2, line.NewCol(12))

	due := doc.Total - doc.Collected
	if due < 0 {
		due = 0
	}
	totals(m, "Total", doc.Total.String(), false)
	totals(m, "Collected", doc.Collected.String(), false)
	totals(m, "Amount due", due.String(), true)

	if strings.TrimSpace(doc.Notes) != "" {
		m.AddRow(16, text.NewCol(12, doc.Notes, props.Text{Size: 9, Top: 6}))
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", doc.Number, err)
	}
	return out.GetBytes(), nil
}

func (p *marotoProvider) Receipt(doc ReceiptDocument) ([]byte, error) {
	m := newDocument()

	m.AddRow(14, text.NewCol(12, "Receipt", props.Text{Size: 20, Style: fontstyle.Bold}))
	m.AddRow(26,
		col.New(6).Add(
			text.New("Receipt number: "+doc.ReceiptNumber),
			text.New("Invoice number: "+doc.InvoiceNumber, props.Text{Top: 5}),
			text.New("Date paid: "+doc.DatePaid, props.Text{Top: 10}),
			text.New("Method: "+doc.Method, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Received from", props.Text{Style: fontstyle.Bold}),
			text.New(doc.CustomerName, props.Text{Top: 5}),
			text.New(orDash(doc.Reference), props.Text{Top: 10}),
		),
	)
	if doc.Issuer != "" {
		m.AddRow(8, text.NewCol(12, doc.Issuer, props.Text{Size: 9, Style: fontstyle.Italic}))
	}
	m.AddRow(14, text.NewCol(12, doc.Amount.String()+" paid on "+doc.DatePaid, props.Text{
		Size:  14,
		Style: fontstyle.Bold,
		Top:   4,
	}))
	m.AddRow(2, line.NewCol(12))

	remaining := doc.InvoiceTotal - doc.Collected
	if remaining < 0 {
		remaining = 0
	}
	totals(m, "Invoice total", doc.InvoiceTotal.String(), false)
	totals(m, "Collected to date", doc.Collected.String(), false)
	totals(m, "Remaining", remaining.String(), true)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", doc.ReceiptNumber, err)
	}
	return out.GetBytes(), nil
}

func totals(m core.Maroto, label, value string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(8,
		col.New(7),
		text.NewCol(3, label, props.Text{Size: 9, Style: style}),
		text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}

func quantity(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
