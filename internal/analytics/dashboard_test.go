package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/crm/internal/aggregate"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/serviceclient"
	"github.com/smallbiznis/crm/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serve(t *testing.T, data any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func newDashboardService(t *testing.T, urls map[string]string) *Service {
	t.Helper()
	endpoints := make([]config.ServiceEndpoint, 0, len(urls))
	routes := make([]config.Route, 0, len(urls))
	for name, url := range urls {
		endpoints = append(endpoints, config.ServiceEndpoint{Name: name, BaseURL: url})
		routes = append(routes, config.Route{Prefix: "/api/" + name, Service: name})
	}
	table := config.NewRouteTable(config.NewServiceTable(endpoints...), routes)
	client := serviceclient.NewWithHTTPClient(table, 500*time.Millisecond, &http.Client{}, zap.NewNop())
	agg := aggregate.NewAggregator(client, time.Second, zap.NewNop(), nil)
	return newService(agg, zap.NewNop())
}

func TestDashboardReducesAllSources(t *testing.T) {
	svc := newDashboardService(t, map[string]string{
		SourceContacts: serve(t, []map[string]any{
			{"name": "A", "status": "New"},
			{"name": "B", "status": "Customer"},
		}),
		SourceOpportunities: serve(t, []map[string]any{
			{"title": "x", "amount": 1000, "stage": "Won"},
			{"title": "y", "amount": "500", "stage": "Lost"},
			{"title": "z", "amount": 250, "stage": "closed won"},
			{"title": "w", "value": 100, "stage": "Proposal"},
		}),
		SourceInvoices: serve(t, []map[string]any{
			{"totalAmount": 4000, "status": "Paid"},
			{"totalAmount": 1000, "status": "Partial"},
		}),
		SourceTickets: serve(t, []map[string]any{
			{"status": "Open", "priority": "Critical"},
			{"status": "Resolved", "priority": "Critical"},
			{"status": "In Progress", "priority": "Low"},
			{"status": "Closed", "priority": "High"},
		}),
		SourceTasks: serve(t, []map[string]any{
			{"status": "Pending"},
			{"status": "In Progress"},
			{"status": "Completed"},
		}),
		SourceProducts: serve(t, []map[string]any{{"name": "p"}}),
	})

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, money.FromMajor(1850), d.Overview.TotalRevenuePotential)
	assert.Equal(t, 66.7, d.Overview.WinRate)
	assert.Equal(t, money.FromMajor(5000), d.Overview.TotalInvoiced)
	assert.Equal(t, money.FromMajor(4000), d.Overview.TotalCollected)
	assert.Equal(t, 2, d.Overview.TotalContacts)
	assert.Equal(t, 1, d.Overview.TotalProducts)

	assert.Equal(t, 2, d.ActionItems.OpenTickets)
	assert.Equal(t, 1, d.ActionItems.CriticalTickets)
	assert.Equal(t, 2, d.ActionItems.PendingTasks)
	assert.Equal(t, 1, d.ActionItems.NewContacts)

	assert.Equal(t, 1, d.Breakdown.InvoicesByStatus["Paid"])
	for _, ok := range d.Breakdown.Sources {
		assert.True(t, ok)
	}
}

func TestDashboardSurvivesUpstreamOutage(t *testing.T) {
	svc := newDashboardService(t, map[string]string{
		SourceContacts:      serve(t, []map[string]any{{"status": "New"}}),
		SourceOpportunities: deadURL(t),
		SourceInvoices:      deadURL(t),
		SourceTickets:       deadURL(t),
		SourceTasks:         serve(t, []map[string]any{{"status": "Pending"}}),
		SourceProducts:      deadURL(t),
	})

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Zero(t, d.Overview.TotalRevenuePotential)
	assert.Zero(t, d.Overview.WinRate)
	assert.Zero(t, d.Overview.TotalInvoiced)
	assert.Zero(t, d.ActionItems.OpenTickets)
	assert.Equal(t, 1, d.ActionItems.PendingTasks)
	assert.Equal(t, 1, d.ActionItems.NewContacts)

	assert.False(t, d.Breakdown.Sources[SourceInvoices])
	assert.True(t, d.Breakdown.Sources[SourceContacts])
	assert.NotNil(t, d.Breakdown.OpportunitiesByStage)
}

func TestDashboardEveryUpstreamDown(t *testing.T) {
	urls := map[string]string{}
	for _, name := range []string{SourceContacts, SourceOpportunities, SourceInvoices, SourceTickets, SourceTasks, SourceProducts} {
		urls[name] = deadURL(t)
	}
	svc := newDashboardService(t, urls)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Dashboard{
		Breakdown: Breakdown{
			OpportunitiesByStage: map[string]int{},
			TicketsByStatus:      map[string]int{},
			InvoicesByStatus:     map[string]int{},
			Sources: map[string]bool{
				SourceContacts: false, SourceOpportunities: false, SourceInvoices: false,
				SourceTickets: false, SourceTasks: false, SourceProducts: false,
			},
		},
	}, d)
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0.0, winRate(0, 0))
	assert.Equal(t, 100.0, winRate(3, 0))
	assert.Equal(t, 33.3, winRate(1, 2))
}
