package dispatch

import (
	"testing"

	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	payrolldomain "github.com/smallbiznis/crm/internal/payroll/domain"
	taskdomain "github.com/smallbiznis/crm/internal/task/domain"
	ticketdomain "github.com/smallbiznis/crm/internal/ticket/domain"
	"github.com/smallbiznis/crm/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTaskRule(t *testing.T) {
	obs := NewObserver("", zap.NewNop())
	before := &taskdomain.Task{Title: "Call back", Status: taskdomain.StatusPending, AssigneeID: "c-1"}

	same := *before
	assert.Nil(t, obs.Task(before, &same))

	moved := *before
	moved.Status = taskdomain.StatusInProgress
	ev := obs.Task(before, &moved)
	require.NotNil(t, ev)
	assert.Equal(t, KindTaskUpdated, ev.Kind)
	assert.Equal(t, "c-1", ev.ContactID)
	assert.Contains(t, ev.Subject, "Pending → In Progress")
	assert.Contains(t, ev.BodyHTML, "Call back")

	reassigned := *before
	reassigned.AssigneeID = "c-2"
	ev = obs.Task(before, &reassigned)
	require.NotNil(t, ev)
	assert.Equal(t, "c-2", ev.ContactID)

	unassigned := moved
	unassigned.AssigneeID = ""
	assert.Nil(t, obs.Task(before, &unassigned))
}

func TestTicketRuleFallsBackToContact(t *testing.T) {
	obs := NewObserver("", zap.NewNop())
	before := &ticketdomain.Ticket{Subject: "VPN", Status: ticketdomain.StatusInProgress, ContactID: "c-9"}
	after := *before
	after.Status = ticketdomain.StatusResolved

	ev := obs.Ticket(before, &after)
	require.NotNil(t, ev)
	assert.Empty(t, ev.To)
	assert.Equal(t, "c-9", ev.ContactID)

	after.ContactID = ""
	assert.Nil(t, obs.Ticket(before, &after))
}

func TestInvoiceRules(t *testing.T) {
	obs := NewObserver("admin@example.com", zap.NewNop())
	inv := &invoicedomain.Invoice{
		Number:        "INV-20240501-000001",
		CustomerName:  "Acme",
		CustomerEmail: "billing@acme.io",
		Items: []invoicedomain.LineItem{
			{Description: "Consulting <b>", Quantity: 2, UnitPrice: money.FromMajor(1500), Amount: money.FromMajor(3000)},
			{Description: "Support", Quantity: 1, UnitPrice: money.FromMajor(1000), Amount: money.FromMajor(1000)},
		},
		TotalAmount: money.FromMajor(4000),
		Status:      invoicedomain.StatusSent,
	}

	created := obs.InvoiceCreated(inv)
	require.NotNil(t, created)
	assert.Equal(t, "billing@acme.io", created.To)
	assert.Contains(t, created.BodyHTML, "4000.00")
	assert.Contains(t, created.BodyHTML, "Consulting &lt;b&gt;")

	noEmail := *inv
	noEmail.CustomerEmail = ""
	assert.Nil(t, obs.InvoiceCreated(&noEmail))

	paid := *inv
	paid.Status = invoicedomain.StatusPaid
	ev := obs.InvoicePaid(invoicedomain.StatusPartial, &paid)
	require.NotNil(t, ev)
	assert.Equal(t, "admin@example.com", ev.To)
	assert.Equal(t, KindInvoicePaid, ev.Kind)

	assert.Nil(t, obs.InvoicePaid(invoicedomain.StatusPaid, &paid))
	assert.Nil(t, obs.InvoicePaid(invoicedomain.StatusSent, inv))
}

func TestPayrollRule(t *testing.T) {
	obs := NewObserver("", zap.NewNop())
	p := &payrolldomain.Payroll{
		EmployeeID:  "emp-1",
		Month:       "2024-05",
		BaseSalary:  3000,
		WorkingDays: 20,
		PresentDays: 18,
		PerDayRate:  150,
		Deductions:  100,
		NetSalary:   2600,
	}

	ev := obs.PayrollGenerated(p)
	require.NotNil(t, ev)
	assert.Equal(t, "emp-1", ev.ContactID)
	assert.Contains(t, ev.BodyHTML, "2600.00")
	assert.Contains(t, ev.BodyHTML, "150.00")

	p.EmployeeEmail = "emp@example.com"
	ev = obs.PayrollGenerated(p)
	require.NotNil(t, ev)
	assert.Equal(t, "emp@example.com", ev.To)
}
