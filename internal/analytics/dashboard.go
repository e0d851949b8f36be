package analytics

import (
	"math"
	"strings"

	"github.com/smallbiznis/crm/internal/aggregate"
	"github.com/smallbiznis/crm/internal/serviceclient"
	"github.com/smallbiznis/crm/pkg/money"
)

const (
	SourceContacts      = "contacts"
	SourceOpportunities = "opportunities"
	SourceInvoices      = "invoices"
	SourceTickets       = "tickets"
	SourceTasks         = "tasks"
	SourceProducts      = "products"
)

type Dashboard struct {
	Overview    Overview    `json:"overview"`
	ActionItems ActionItems `json:"actionItems"`
	Breakdown   Breakdown   `json:"breakdown"`
}

type Overview struct {
	TotalRevenuePotential money.Amount `json:"totalRevenuePotential"`
	WinRate               float64      `json:"winRate"`
	TotalInvoiced         money.Amount `json:"totalInvoiced"`
	TotalCollected        money.Amount `json:"totalCollected"`
	TotalContacts         int          `json:"totalContacts"`
	TotalOpportunities    int          `json:"totalOpportunities"`
	TotalProducts         int          `json:"totalProducts"`
}

type ActionItems struct {
	OpenTickets     int `json:"openTickets"`
	CriticalTickets int `json:"criticalTickets"`
	PendingTasks    int `json:"pendingTasks"`
	NewContacts     int `json:"newContacts"`
}

type Breakdown struct {
	OpportunitiesByStage map[string]int  `json:"opportunitiesByStage"`
	TicketsByStatus      map[string]int  `json:"ticketsByStatus"`
	InvoicesByStatus     map[string]int  `json:"invoicesByStatus"`
	Sources              map[string]bool `json:"sources"`
}

// Reduce computes the dashboard from whatever sections settled. Failed
// sections contribute zero to every count and sum.
func Reduce(result aggregate.Result) Dashboard {
	contacts := result.Items(SourceContacts)
	opportunities := result.Items(SourceOpportunities)
	invoices := result.Items(SourceInvoices)
	tickets := result.Items(SourceTickets)
	tasks := result.Items(SourceTasks)
	products := result.Items(SourceProducts)

	d := Dashboard{
		Breakdown: Breakdown{
			OpportunitiesByStage: map[string]int{},
			TicketsByStatus:      map[string]int{},
			InvoicesByStatus:     map[string]int{},
			Sources:              map[string]bool{},
		},
	}
	for _, s := range result.Sections {
		d.Breakdown.Sources[s.Name] = s.Succeeded
	}

	var won, lost int
	for _, o := range opportunities {
		d.Overview.TotalRevenuePotential += amountOf(o)
		stage := strings.TrimSpace(o.String("stage"))
		if stage != "" {
			d.Breakdown.OpportunitiesByStage[stage]++
		}
		switch {
		case o.Is("stage", "won", "closed won"):
			won++
		case o.Is("stage", "lost", "closed lost"):
			lost++
		}
	}
	d.Overview.WinRate = winRate(won, lost)

	for _, inv := range invoices {
		total := money.FromMajor(inv.Float("totalAmount"))
		d.Overview.TotalInvoiced += total
		if inv.Is("status", "Paid") {
			d.Overview.TotalCollected += total
		}
		if status := strings.TrimSpace(inv.String("status")); status != "" {
			d.Breakdown.InvoicesByStatus[status]++
		}
	}

	for _, t := range tickets {
		closed := t.Is("status", "Closed", "Resolved")
		if !closed {
			d.ActionItems.OpenTickets++
			if t.Is("priority", "Critical") {
				d.ActionItems.CriticalTickets++
			}
		}
		if status := strings.TrimSpace(t.String("status")); status != "" {
			d.Breakdown.TicketsByStatus[status]++
		}
	}

	for _, task := range tasks {
		if task.Is("status", "Pending", "In Progress") {
			d.ActionItems.PendingTasks++
		}
	}

	for _, c := range contacts {
		if c.Is("status", "New") {
			d.ActionItems.NewContacts++
		}
	}

	d.Overview.TotalContacts = len(contacts)
	d.Overview.TotalOpportunities = len(opportunities)
	d.Overview.TotalProducts = len(products)
	return d
}

// amountOf reads the deal size, which older opportunity records store as "value".
func amountOf(o serviceclient.Record) money.Amount {
	if _, ok := o["amount"]; ok {
		return money.FromMajor(o.Float("amount"))
	}
	return money.FromMajor(o.Float("value"))
}

func winRate(won, lost int) float64 {
	if won+lost == 0 {
		return 0
	}
	rate := float64(won) / float64(won+lost) * 100
	return math.Round(rate*10) / 10
}
