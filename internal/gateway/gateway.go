// Package gateway is the edge reverse proxy. It resolves the public path to
// the owning resource service and forwards the request unchanged.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/observability/logger"
	"github.com/smallbiznis/crm/internal/observability/metrics"
	"github.com/smallbiznis/crm/internal/observability/tracing"
	"github.com/smallbiznis/crm/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(New),
)

const (
	msgRouteNotFound   = "Route not found"
	msgUnavailable     = "Service Temporarily Unavailable"
	msgTooManyRequests = "Too many requests"
)

type Gateway struct {
	routes    config.RouteTable
	threshold int64
	proxy     *httputil.ReverseProxy
	log       *zap.Logger
	metrics   *metrics.Orchestration
	limiter   Limiter
}

// Limiter decides whether a client may send another request.
type Limiter interface {
	Enabled() bool
	Allow(ctx context.Context, clientIP string) (ratelimit.Result, error)
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *metrics.Orchestration `optional:"true"`
	Limiter *ratelimit.EdgeLimiter `optional:"true"`
}

func New(p Params) *Gateway {
	g := NewGateway(p.Cfg.Routes, p.Cfg.UpstreamTimeout, p.Cfg.ProxyBufferThresholdBytes, p.Log, p.Metrics)
	if p.Limiter.Enabled() {
		g.limiter = p.Limiter
	}
	return g
}

// WithLimiter installs a per-client limiter in front of the proxy.
func (g *Gateway) WithLimiter(l Limiter) *Gateway {
	g.limiter = l
	return g
}

func NewGateway(routes config.RouteTable, timeout time.Duration, threshold int64, log *zap.Logger, m *metrics.Orchestration) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		routes:    routes,
		threshold: threshold,
		log:       log.Named("gateway"),
		metrics:   m,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = timeout

	g.proxy = &httputil.ReverseProxy{
		Rewrite:       g.rewrite,
		Transport:     tracing.WrapHTTPClient(&http.Client{Transport: transport}).Transport,
		FlushInterval: -1,
		ErrorHandler:  g.handleError,
		ErrorLog:      zap.NewStdLog(g.log),
	}
	return g
}

type targetKey struct{}

// proxyState travels with the outbound request so the error handler can
// tell the handler how the request ended.
type proxyState struct {
	target   *url.URL
	upstream string
	failed   error
}

// Handler proxies every request that no local route claimed. The resolved
// upstream is left on the gin context for the request log and trace span.
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.admit(c) {
			return
		}
		if upstream := g.serve(c.Writer, c.Request); upstream != "" {
			c.Set("upstream", upstream)
		}
		// bodiless upstream responses (204, 304) still need their status sent
		c.Writer.WriteHeaderNow()
	}
}

// admit applies the edge limiter. A limiter backend failure lets the request
// through; the gateway must keep routing when Redis is down.
func (g *Gateway) admit(c *gin.Context) bool {
	if g.limiter == nil {
		return true
	}
	res, err := g.limiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("edge rate limit check failed", zap.Error(err))
		return true
	}
	if res.Allowed {
		return true
	}
	if res.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
	}
	g.metrics.ObserveProxy("", metrics.ProxyOutcomeRateLimited, 0)
	writeEnvelope(c.Writer, http.StatusTooManyRequests, msgTooManyRequests)
	c.Abort()
	return false
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) string {
	start := time.Now()
	route, endpoint, ok := g.routes.Resolve(r.URL.Path)
	if !ok {
		g.metrics.ObserveProxy("", metrics.ProxyOutcomeUnmatched, 0)
		writeEnvelope(w, http.StatusNotFound, msgRouteNotFound)
		return ""
	}

	target, err := url.Parse(endpoint.BaseURL)
	if err != nil {
		g.log.Error("invalid upstream url", zap.String("upstream", endpoint.Name), zap.Error(err))
		writeEnvelope(w, http.StatusBadGateway, msgUnavailable)
		return endpoint.Name
	}

	if err := g.prepareBody(r); err != nil {
		logger.FromContext(r.Context()).Warn("failed to read request body", zap.Error(err))
		writeEnvelope(w, http.StatusBadRequest, "Invalid request body")
		return endpoint.Name
	}

	state := &proxyState{target: target, upstream: endpoint.Name}
	ctx := context.WithValue(r.Context(), targetKey{}, state)

	g.proxy.ServeHTTP(w, r.WithContext(ctx))

	outcome := metrics.ProxyOutcomeForwarded
	if state.failed != nil {
		outcome = metrics.ProxyOutcomeUpstreamError
	}
	g.metrics.ObserveProxy(endpoint.Name, outcome, time.Since(start))
	logger.FromContext(r.Context()).Debug("proxied",
		zap.String("route", route.Prefix),
		zap.String("upstream", endpoint.Name),
		zap.String("outcome", outcome),
	)
	return endpoint.Name
}

// prepareBody buffers small bodies of known length so the transport can
// replay them. Larger or chunked bodies are streamed as-is.
func (g *Gateway) prepareBody(r *http.Request) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	if r.ContentLength < 0 || r.ContentLength > g.threshold {
		g.metrics.IncProxyBody(metrics.ProxyModeStreamed)
		return nil
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, r.ContentLength))
	_ = r.Body.Close()
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(payload))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	r.ContentLength = int64(len(payload))
	g.metrics.IncProxyBody(metrics.ProxyModeBuffered)
	return nil
}

func (g *Gateway) rewrite(pr *httputil.ProxyRequest) {
	state, _ := pr.In.Context().Value(targetKey{}).(*proxyState)
	if state == nil {
		return
	}
	pr.SetURL(state.target)
	pr.SetXForwarded()
}

func (g *Gateway) handleError(w http.ResponseWriter, r *http.Request, err error) {
	state, _ := r.Context().Value(targetKey{}).(*proxyState)
	upstream := ""
	if state != nil {
		state.failed = err
		upstream = state.upstream
	}

	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// client went away; nobody is reading the response
		return
	}

	logger.FromContext(r.Context()).Warn("upstream unavailable",
		zap.String("upstream", upstream),
		zap.String("reason", metrics.ClassifyUpstreamError(err)),
		zap.Error(err),
	)
	writeEnvelope(w, http.StatusBadGateway, msgUnavailable)
}

func writeEnvelope(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(gin.H{"success": false, "message": message})
}
