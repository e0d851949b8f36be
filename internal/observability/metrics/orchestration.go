package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ProxyOutcomeForwarded     = "forwarded"
	ProxyOutcomeUnmatched     = "unmatched"
	ProxyOutcomeUpstreamError = "upstream_error"
	ProxyOutcomeRateLimited   = "rate_limited"

	ProxyModeBuffered = "buffered"
	ProxyModeStreamed = "streamed"
)

const (
	FanOutResultOK       = "ok"
	FanOutResultDegraded = "degraded"

	DispatchResultQueued  = "queued"
	DispatchResultDropped = "dropped"
	DispatchResultSent    = "sent"
	DispatchResultFailed  = "failed"

	ReconcileResultUpdated   = "updated"
	ReconcileResultUnchanged = "unchanged"
	ReconcileResultFailed    = "failed"
)

const (
	ErrorReasonTimeout    = "timeout"
	ErrorReasonConnection = "connection"
	ErrorReasonCanceled   = "canceled"
	ErrorReasonUnknown    = "unknown"
)

// Orchestration captures gateway, aggregator, dispatcher and reconcile health.
type Orchestration struct {
	proxyRequests   *prometheus.CounterVec
	proxyDuration   *prometheus.HistogramVec
	proxyBodies     *prometheus.CounterVec
	fanOutCalls     *prometheus.CounterVec
	fanOutDuration  *prometheus.HistogramVec
	dispatchEvents  *prometheus.CounterVec
	dispatchQueue   prometheus.Gauge
	reconcileRuns   *prometheus.CounterVec
	reconcileLock   prometheus.Histogram
	invoiceStatuses *prometheus.CounterVec
}

var (
	orchestrationOnce    sync.Once
	orchestrationMetrics *Orchestration
)

// OrchestrationWithConfig returns the process-wide collectors registered on the default registry.
func OrchestrationWithConfig(cfg Config) *Orchestration {
	orchestrationOnce.Do(func() {
		orchestrationMetrics = NewOrchestration(prometheus.DefaultRegisterer, cfg)
	})
	return orchestrationMetrics
}

// NewOrchestration registers a fresh set of collectors. Tests pass their own registry.
func NewOrchestration(registerer prometheus.Registerer, cfg Config) *Orchestration {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "crm"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &Orchestration{
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crm_gateway_requests_total",
			Help:        "Gateway requests by upstream service and outcome.",
			ConstLabels: constLabels,
		}, []string{"upstream", "outcome"}),
		proxyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "crm_gateway_upstream_duration_seconds",
			Help:        "Time spent waiting on the upstream service.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"upstream"}),
		proxyBodies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crm_gateway_request_bodies_total",
			Help:        "Forwarded request bodies by buffering mode.",
			ConstLabels: constLabels,
		}, []string{"mode"}),
		fanOutCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crm_fanout_calls_total",
			Help:        "Aggregator sub-requests by upstream and result.",
			ConstLabels: constLabels,
		}, []string{"upstream", "result"}),
		fanOutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "crm_fanout_duration_seconds",
			Help:        "Wall time of a complete fan-out.",
			Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"operation"}),
		dispatchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crm_dispatch_events_total",
			Help:        "Side-effect events by kind and result.",
			ConstLabels: constLabels,
		}, []string{"kind", "result"}),
		dispatchQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "crm_dispatch_queue_depth",
			Help:        "Events waiting for a dispatcher worker.",
			ConstLabels: constLabels,
		}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crm_reconcile_runs_total",
			Help:        "Invoice reconciliations by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		reconcileLock: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "crm_reconcile_lock_wait_seconds",
			Help:        "Time waiting for the per-invoice reconcile lock.",
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			ConstLabels: constLabels,
		}),
		invoiceStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "crm_invoice_status_transitions_total",
			Help:        "Invoice status transitions applied by reconciliation.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
	}

	registerer.MustRegister(
		m.proxyRequests,
		m.proxyDuration,
		m.proxyBodies,
		m.fanOutCalls,
		m.fanOutDuration,
		m.dispatchEvents,
		m.dispatchQueue,
		m.reconcileRuns,
		m.reconcileLock,
		m.invoiceStatuses,
	)
	return m
}

func (m *Orchestration) ObserveProxy(upstream, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	upstream = normalizeLabel(upstream)
	m.proxyRequests.WithLabelValues(upstream, outcome).Inc()
	if outcome != ProxyOutcomeUnmatched && outcome != ProxyOutcomeRateLimited {
		m.proxyDuration.WithLabelValues(upstream).Observe(elapsed.Seconds())
	}
}

func (m *Orchestration) IncProxyBody(mode string) {
	if m == nil {
		return
	}
	m.proxyBodies.WithLabelValues(mode).Inc()
}

func (m *Orchestration) IncFanOutCall(upstream, result string) {
	if m == nil {
		return
	}
	m.fanOutCalls.WithLabelValues(normalizeLabel(upstream), result).Inc()
}

func (m *Orchestration) ObserveFanOut(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fanOutDuration.WithLabelValues(normalizeLabel(operation)).Observe(elapsed.Seconds())
}

func (m *Orchestration) IncDispatch(kind, result string) {
	if m == nil {
		return
	}
	m.dispatchEvents.WithLabelValues(normalizeLabel(kind), result).Inc()
}

func (m *Orchestration) SetDispatchQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.dispatchQueue.Set(float64(depth))
}

func (m *Orchestration) IncReconcile(result string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
}

func (m *Orchestration) ObserveReconcileLockWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconcileLock.Observe(elapsed.Seconds())
}

func (m *Orchestration) IncInvoiceTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.invoiceStatuses.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ClassifyUpstreamError maps transport errors to a low-cardinality reason.
func ClassifyUpstreamError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorReasonCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorReasonTimeout
		}
		return ErrorReasonConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorReasonConnection
	}
	return ErrorReasonUnknown
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
