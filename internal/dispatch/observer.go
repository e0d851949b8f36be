package dispatch

import (
	"fmt"
	"strings"
	"time"

	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	payrolldomain "github.com/smallbiznis/crm/internal/payroll/domain"
	taskdomain "github.com/smallbiznis/crm/internal/task/domain"
	ticketdomain "github.com/smallbiznis/crm/internal/ticket/domain"
	"github.com/smallbiznis/crm/pkg/money"
	"go.uber.org/zap"
)

// Observer turns entity transitions into events. Each rule looks only at the
// before and after images it is given and returns nil when nothing is due.
type Observer struct {
	adminEmail string
	log        *zap.Logger
}

func NewObserver(adminEmail string, log *zap.Logger) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{
		adminEmail: strings.TrimSpace(adminEmail),
		log:        log.Named("dispatch.observer"),
	}
}

func (o *Observer) Task(before, after *taskdomain.Task) *Event {
	if before == nil || after == nil {
		return nil
	}
	statusChanged := before.Status != after.Status
	assigneeChanged := before.AssigneeID != after.AssigneeID
	if !statusChanged && !assigneeChanged {
		return nil
	}
	if strings.TrimSpace(after.AssigneeID) == "" {
		return nil
	}

	data := struct {
		Title   string
		From    taskdomain.Status
		To      taskdomain.Status
		DueDate string
	}{Title: after.Title, From: before.Status, To: after.Status, DueDate: formatDate(after.DueDate)}

	return o.build(KindTaskUpdated, "task_updated", data, Event{
		ContactID: after.AssigneeID,
		Subject:   fmt.Sprintf("Task updated: %s (%s → %s)", after.Title, before.Status, after.Status),
	})
}

// Ticket fires once, when the ticket enters Resolved. The guest email wins
// over the linked contact.
func (o *Observer) Ticket(before, after *ticketdomain.Ticket) *Event {
	if before == nil || after == nil {
		return nil
	}
	if before.Status == ticketdomain.StatusResolved || after.Status != ticketdomain.StatusResolved {
		return nil
	}

	ev := Event{Subject: fmt.Sprintf("Your ticket has been resolved: %s", after.Subject)}
	switch {
	case strings.TrimSpace(after.GuestEmail) != "":
		ev.To = strings.TrimSpace(after.GuestEmail)
	case strings.TrimSpace(after.ContactID) != "":
		ev.ContactID = strings.TrimSpace(after.ContactID)
	default:
		o.log.Info("resolved ticket has no recipient", zap.String("ticket_id", after.ID.String()))
		return nil
	}

	data := struct {
		Name    string
		Subject string
	}{Name: after.GuestName, Subject: after.Subject}
	return o.build(KindTicketResolved, "ticket_resolved", data, ev)
}

func (o *Observer) InvoiceCreated(inv *invoicedomain.Invoice) *Event {
	if inv == nil || strings.TrimSpace(inv.CustomerEmail) == "" {
		return nil
	}
	return o.build(KindInvoiceCreated, "invoice", invoiceData("A new invoice has been issued to you.", inv), Event{
		To:      strings.TrimSpace(inv.CustomerEmail),
		Subject: fmt.Sprintf("New invoice %s", inv.Number),
	})
}

// InvoicePaid fires when the status moves into Paid from anything else.
func (o *Observer) InvoicePaid(before invoicedomain.Status, after *invoicedomain.Invoice) *Event {
	if after == nil || before == invoicedomain.StatusPaid || after.Status != invoicedomain.StatusPaid {
		return nil
	}
	if o.adminEmail == "" {
		o.log.Info("invoice paid but no admin address configured", zap.String("invoice_id", after.ID.String()))
		return nil
	}
	return o.build(KindInvoicePaid, "invoice", invoiceData("An invoice has been paid in full.", after), Event{
		To:      o.adminEmail,
		Subject: fmt.Sprintf("Invoice %s paid", after.Number),
	})
}

func (o *Observer) PayrollGenerated(p *payrolldomain.Payroll) *Event {
	if p == nil {
		return nil
	}
	ev := Event{Subject: fmt.Sprintf("Payslip for %s", p.Month)}
	switch {
	case strings.TrimSpace(p.EmployeeEmail) != "":
		ev.To = strings.TrimSpace(p.EmployeeEmail)
	case strings.TrimSpace(p.EmployeeID) != "":
		ev.ContactID = strings.TrimSpace(p.EmployeeID)
	default:
		return nil
	}

	data := struct {
		Name        string
		Month       string
		BaseSalary  float64
		WorkingDays int
		PresentDays float64
		PerDayRate  float64
		Deductions  float64
		NetSalary   float64
	}{
		Name:        p.EmployeeName,
		Month:       p.Month,
		BaseSalary:  p.BaseSalary,
		WorkingDays: p.WorkingDays,
		PresentDays: p.PresentDays,
		PerDayRate:  p.PerDayRate,
		Deductions:  p.Deductions,
		NetSalary:   p.NetSalary,
	}
	return o.build(KindPayrollGenerated, "payroll_generated", data, ev)
}

func (o *Observer) build(kind Kind, tmpl string, data any, ev Event) *Event {
	body, err := render(tmpl, data)
	if err != nil {
		o.log.Error("failed to render notification", zap.String("event_kind", string(kind)), zap.Error(err))
		return nil
	}
	ev.Kind = kind
	ev.BodyHTML = body
	return &ev
}

type invoiceView struct {
	Intro        string
	Number       string
	CustomerName string
	DueDate      string
	Items        []invoicedomain.LineItem
	Total        money.Amount
}

func invoiceData(intro string, inv *invoicedomain.Invoice) invoiceView {
	return invoiceView{
		Intro:        intro,
		Number:       inv.Number,
		CustomerName: inv.CustomerName,
		DueDate:      formatDate(inv.DueDate),
		Items:        inv.Items,
		Total:        inv.TotalAmount,
	}
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2 Jan 2006")
}
