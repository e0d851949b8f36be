package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/observability/logger"
	"github.com/smallbiznis/crm/internal/observability/metrics"
	"github.com/smallbiznis/crm/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func newEngine(t *testing.T, services map[string]string, threshold int64, m *metrics.Orchestration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var endpoints []config.ServiceEndpoint
	for name, url := range services {
		endpoints = append(endpoints, config.ServiceEndpoint{Name: name, BaseURL: url})
	}
	table := config.NewRouteTable(config.NewServiceTable(endpoints...), config.DefaultRoutes())
	gw := NewGateway(table, time.Second, threshold, zap.NewNop(), m)

	r := gin.New()
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{}))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.NoRoute(gw.Handler())
	return r
}

// serve puts the handler behind a real listener. The reverse proxy needs a
// ResponseWriter that supports CloseNotify, which the recorder lacks.
func serve(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func send(t *testing.T, base, method, path string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, base+path, body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func decode(t *testing.T, body io.Reader) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func TestProxyForwardsToOwningService(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payments/42", r.URL.Path)
		assert.Equal(t, "invoiceId=7", r.URL.RawQuery)
		assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
		assert.NotEmpty(t, r.Header.Get(logger.RequestIDHeader))
		w.Header().Set("X-Upstream", "invoices")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"42"}}`))
	}))
	defer upstream.Close()

	base := serve(t, newEngine(t, map[string]string{config.ServiceInvoices: upstream.URL}, 1024, nil))

	resp := send(t, base, http.MethodGet, "/api/payments/42?invoiceId=7", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "invoices", resp.Header.Get("X-Upstream"))
	assert.JSONEq(t, `{"success":true,"data":{"id":"42"}}`, readBody(t, resp))
}

func TestProxyRelaysDownstreamErrorsVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"Contact not found"}`))
	}))
	defer upstream.Close()

	base := serve(t, newEngine(t, map[string]string{config.ServiceContacts: upstream.URL}, 1024, nil))

	resp := send(t, base, http.MethodGet, "/api/contacts/nope", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Contact not found", decode(t, resp.Body).Message)
}

func TestProxyUnreachableUpstreamReturns502(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewOrchestration(registry, metrics.Config{ServiceName: "test"})
	base := serve(t, newEngine(t, map[string]string{config.ServiceTickets: deadURL}, 1024, m))

	resp := send(t, base, http.MethodGet, "/api/tickets", nil)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	env := decode(t, resp.Body)
	assert.False(t, env.Success)
	assert.Equal(t, "Service Temporarily Unavailable", env.Message)

	series, err := testutil.GatherAndCount(registry, "crm_gateway_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestProxyUnmatchedRoute(t *testing.T) {
	base := serve(t, newEngine(t, map[string]string{config.ServiceTasks: "http://127.0.0.1:1"}, 1024, nil))

	for _, path := range []string{"/api/unknown", "/api/tasksx", "/"} {
		resp := send(t, base, http.MethodGet, path, nil)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		env := decode(t, resp.Body)
		assert.False(t, env.Success)
		assert.Equal(t, "Route not found", env.Message)
	}
}

func TestProxyLocalRoutesWin(t *testing.T) {
	base := serve(t, newEngine(t, nil, 1024, nil))

	resp := send(t, base, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProxyBodies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	defer upstream.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewOrchestration(registry, metrics.Config{ServiceName: "test"})
	base := serve(t, newEngine(t, map[string]string{config.ServiceDocuments: upstream.URL}, 16, m))

	small := `{"name":"a"}`
	resp := send(t, base, http.MethodPost, "/api/documents", strings.NewReader(small))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, small, readBody(t, resp))

	large := strings.Repeat("x", 4096)
	resp = send(t, base, http.MethodPost, "/api/documents/upload", strings.NewReader(large))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, large, readBody(t, resp))

	series, err := testutil.GatherAndCount(registry, "crm_gateway_request_bodies_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

type fixedLimiter struct {
	res ratelimit.Result
	err error
}

func (f fixedLimiter) Enabled() bool { return true }

func (f fixedLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	return f.res, f.err
}

func TestRateLimitedClientGets429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	table := config.NewRouteTable(config.NewServiceTable(config.ServiceEndpoint{Name: config.ServiceContacts, BaseURL: upstream.URL}), config.DefaultRoutes())

	cases := []struct {
		name    string
		limiter fixedLimiter
		status  int
	}{
		{"denied", fixedLimiter{res: ratelimit.Result{RetryAfter: 1500 * time.Millisecond}}, http.StatusTooManyRequests},
		{"allowed", fixedLimiter{res: ratelimit.Result{Allowed: true}}, http.StatusOK},
		{"limiter down fails open", fixedLimiter{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := NewGateway(table, time.Second, 1<<20, zap.NewNop(), nil).WithLimiter(tc.limiter)
			r := gin.New()
			r.NoRoute(gw.Handler())

			resp := send(t, serve(t, r), http.MethodGet, "/api/contacts", nil)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.status == http.StatusTooManyRequests {
				assert.Equal(t, "2", resp.Header.Get("Retry-After"))
				assert.Equal(t, msgTooManyRequests, decode(t, resp.Body).Message)
			}
		})
	}
}
