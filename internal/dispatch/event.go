// Package dispatch delivers best-effort notifications for state transitions
// on task, ticket, invoice and payroll writes.
package dispatch

import (
	"context"
)

type Kind string

const (
	KindTaskUpdated      Kind = "task_updated"
	KindTicketResolved   Kind = "ticket_resolved"
	KindInvoiceCreated   Kind = "invoice_created"
	KindInvoicePaid      Kind = "invoice_paid"
	KindPayrollGenerated Kind = "payroll_generated"
)

// Event is one notification. When To is empty the recipient is looked up
// from ContactID at delivery time, off the write path.
type Event struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	To        string `json:"to,omitempty"`
	ContactID string `json:"contactId,omitempty"`
	Subject   string `json:"subject"`
	BodyHTML  string `json:"bodyHtml"`
	RequestID string `json:"requestId,omitempty"`
}

// Notifier accepts events for delivery. It never reports failure: the write
// that produced the event has already committed.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
