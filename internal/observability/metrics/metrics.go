package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes domain-level instruments exported over OTLP.
type Metrics struct {
	ledgerEntries      metric.Int64Counter
	invoiceTransitions metric.Int64Counter
	notifications      metric.Int64Counter
	fanOutCalls        metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "crm"
	}
	meter := provider.Meter(name)

	ledgerEntries, err := meter.Int64Counter("crm_payment_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	invoiceTransitions, err := meter.Int64Counter("crm_invoice_status_transitions_total")
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("crm_notifications_total")
	if err != nil {
		return nil, err
	}
	fanOutCalls, err := meter.Int64Counter("crm_fanout_calls_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerEntries:      ledgerEntries,
		invoiceTransitions: invoiceTransitions,
		notifications:      notifications,
		fanOutCalls:        fanOutCalls,
	}, nil
}

// RecordLedgerEntry counts payment ledger writes and deletes.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, operation, method string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("method", strings.TrimSpace(method)),
	)
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvoiceTransition counts status changes applied by reconciliation.
func (m *Metrics) RecordInvoiceTransition(ctx context.Context, from, to string) {
	if m == nil || from == to {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from", strings.TrimSpace(from)),
		attribute.String("to", strings.TrimSpace(to)),
	)
	m.invoiceTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotification counts side-effect deliveries by kind and result.
func (m *Metrics) RecordNotification(ctx context.Context, kind, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_kind", strings.TrimSpace(kind)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFanOutCall counts aggregator sub-requests by upstream and outcome.
func (m *Metrics) RecordFanOutCall(ctx context.Context, upstream, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("upstream", strings.TrimSpace(upstream)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.fanOutCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"upstream":    {},
	"status_code": {},
	"operation":   {},
	"method":      {},
	"from":        {},
	"to":          {},
	"event_kind":  {},
	"result":      {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
