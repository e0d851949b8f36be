package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouteTable() RouteTable {
	services := NewServiceTable(
		ServiceEndpoint{Name: ServiceTasks, BaseURL: "http://tasks:5004/"},
		ServiceEndpoint{Name: ServiceInvoices, BaseURL: "http://invoices:5009"},
		ServiceEndpoint{Name: ServiceContacts, BaseURL: "http://contacts:5002"},
	)
	return NewRouteTable(services, []Route{
		{Prefix: "/api", Service: ServiceContacts},
		{Prefix: "/api/tasks", Service: ServiceTasks},
		{Prefix: "/api/invoices", Service: ServiceInvoices},
		{Prefix: "/api/payments/", Service: ServiceInvoices},
	})
}

func TestRouteTableResolveLongestPrefix(t *testing.T) {
	table := testRouteTable()

	route, ep, ok := table.Resolve("/api/tasks/42")
	require.True(t, ok)
	assert.Equal(t, "/api/tasks", route.Prefix)
	assert.Equal(t, "http://tasks:5004", ep.BaseURL)

	route, ep, ok = table.Resolve("/api/payments")
	require.True(t, ok)
	assert.Equal(t, "/api/payments", route.Prefix)
	assert.Equal(t, ServiceInvoices, ep.Name)

	// falls back to the shorter prefix rather than matching mid-segment
	route, _, ok = table.Resolve("/api/tasksx")
	require.True(t, ok)
	assert.Equal(t, "/api", route.Prefix)
}

func TestRouteTableResolveUnmatched(t *testing.T) {
	table := testRouteTable()
	_, _, ok := table.Resolve("/health")
	assert.False(t, ok)
}

func TestRouteTableUnknownServiceIsUnmatched(t *testing.T) {
	table := NewRouteTable(NewServiceTable(), []Route{{Prefix: "/api/x", Service: "ghost"}})
	_, _, ok := table.Resolve("/api/x")
	assert.False(t, ok)
}

func TestDefaultRoutesResolveToDefaultServices(t *testing.T) {
	t.Setenv("INVOICE_SERVICE_URL", "http://invoice.internal:9000/")
	services := LoadServices()
	table := NewRouteTable(services, DefaultRoutes())

	_, ep, ok := table.Resolve("/api/payments/7")
	require.True(t, ok)
	assert.Equal(t, "http://invoice.internal:9000", ep.BaseURL)

	_, ep, ok = table.Resolve("/api/payroll/generate")
	require.True(t, ok)
	assert.Equal(t, ServiceHR, ep.Name)
	assert.Equal(t, "5012", ep.Port())
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())

	cfg.Services = NewServiceTable(ServiceEndpoint{Name: ServiceTasks, BaseURL: "not a url"})
	cfg.Routes = NewRouteTable(cfg.Services, []Route{{Prefix: "/api/tasks", Service: ServiceTasks}, {Prefix: "/api/x", Service: "ghost"}})
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid base url")
	assert.Contains(t, err.Error(), "unknown service")
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "1500")
	assert.Equal(t, int64(1500), Load().UpstreamTimeout.Milliseconds())

	t.Setenv("UPSTREAM_TIMEOUT", "2s")
	assert.Equal(t, int64(2000), Load().UpstreamTimeout.Milliseconds())

	t.Setenv("UPSTREAM_TIMEOUT", "garbage")
	assert.Equal(t, int64(5000), Load().UpstreamTimeout.Milliseconds())
}

func TestNormalizeSearchConfig(t *testing.T) {
	holder, err := NewStaticSearchConfig(SearchConfig{Targets: []SearchTarget{
		{Name: "Tickets", Fields: []string{" subject ", ""}},
	}})
	require.NoError(t, err)

	cfg := holder.Get()
	require.Len(t, cfg.Targets, 4)
	assert.Equal(t, SearchTargetContacts, cfg.Targets[0].Name)
	assert.Equal(t, SearchTargetTickets, cfg.Targets[2].Name)
	assert.Equal(t, []string{"subject"}, cfg.Targets[2].Fields)
	assert.Equal(t, "/api/tickets", cfg.Targets[2].Path())

	_, err = NewStaticSearchConfig(SearchConfig{Targets: []SearchTarget{{Name: "invoices", Fields: []string{"number"}}}})
	assert.Error(t, err)

	_, err = NewStaticSearchConfig(SearchConfig{Targets: []SearchTarget{{Name: "products"}}})
	assert.Error(t, err)
}
