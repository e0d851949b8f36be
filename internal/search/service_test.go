package search

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// seeded serves every searchable collection from one fake upstream.
func seeded(t *testing.T, collections map[string][]map[string]any) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := collections[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}))
	t.Cleanup(srv.Close)

	var endpoints []config.ServiceEndpoint
	var routes []config.Route
	for _, name := range config.SearchTargetOrder {
		endpoints = append(endpoints, config.ServiceEndpoint{Name: name, BaseURL: srv.URL})
		routes = append(routes, config.Route{Prefix: "/api/" + name, Service: name})
	}
	table := config.NewRouteTable(config.NewServiceTable(endpoints...), routes)
	client := serviceclient.NewWithHTTPClient(table, time.Second, srv.Client(), zap.NewNop())
	agg := aggregate.NewAggregator(client, time.Second, zap.NewNop(), nil)

	targets, err := config.NewStaticSearchConfig(config.DefaultSearchConfig())
	require.NoError(t, err)
	return newService(agg, targets, zap.NewNop())
}

func TestSearchMatchesDesignatedFieldsOnly(t *testing.T) {
	svc := seeded(t, map[string][]map[string]any{
		"/api/contacts": {
			{"name": "Test User", "email": "user@example.com"},
			{"name": "Someone Else", "email": "else@example.com", "notes": "test"},
		},
		"/api/opportunities": {
			{"title": "Big deal", "stage": "TESTING"},
		},
		"/api/tickets": {
			{"subject": "Printer", "description": "no ink", "guestName": "Tess Tester"},
		},
		"/api/products": {
			{"name": "Widget", "sku": "W-1"},
		},
	})

	resp, err := svc.Search(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, "test", resp.Query)
	assert.Equal(t, 1, resp.Results.Contacts.Count)
	assert.Equal(t, "Test User", resp.Results.Contacts.Data[0].String("name"))
	assert.Equal(t, 1, resp.Results.Opportunities.Count)
	assert.Equal(t, 1, resp.Results.Tickets.Count)
	assert.Equal(t, 0, resp.Results.Products.Count)
	assert.NotNil(t, resp.Results.Products.Data)
}

func TestSearchFailedTargetIsEmpty(t *testing.T) {
	svc := seeded(t, map[string][]map[string]any{
		"/api/contacts": {{"name": "Test User"}},
	})

	resp, err := svc.Search(context.Background(), "TEST")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Results.Contacts.Count)
	assert.Equal(t, 0, resp.Results.Tickets.Count)
	assert.Empty(t, resp.Results.Tickets.Data)
}

func TestSearchRequiresQuery(t *testing.T) {
	svc := seeded(t, nil)

	_, err := svc.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
