// Package observe holds chatlog's OpenTelemetry metric instruments and the
// Prometheus bridge used by `chatlog serve`.
//
// Tests should build instruments with [NewMetrics] over their own
// [metric.MeterProvider] rather than the global one.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/MikeSquared-Agency/chatlog/internal/logparse"
)

const meterName = "github.com/MikeSquared-Agency/chatlog"

// Metrics holds the instruments recorded per parse run and per HTTP request.
type Metrics struct {
	// Reports counts parse runs. Attribute: status=ok|error.
	Reports metric.Int64Counter

	// Exchanges counts parsed exchanges. Attributes: module, correct.
	Exchanges metric.Int64Counter

	// ParseDuration tracks how long one run of the pipeline takes.
	ParseDuration metric.Float64Histogram

	// HTTPRequestDuration tracks API latency. Attributes: method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

var durationBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Reports, err = m.Int64Counter("chatlog.reports",
		metric.WithDescription("Parse runs by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Exchanges, err = m.Int64Counter("chatlog.exchanges",
		metric.WithDescription("Exchanges parsed by response module and correctness."),
	); err != nil {
		return nil, err
	}
	if met.ParseDuration, err = m.Float64Histogram("chatlog.parse.duration",
		metric.WithDescription("Latency of one parse run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("chatlog.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordReport records the outcome of one parse run. r is nil on failure.
func (m *Metrics) RecordReport(ctx context.Context, r *logparse.Report, cfg logparse.Config, took time.Duration) {
	status := "ok"
	if r == nil {
		status = "error"
	}
	m.Reports.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.ParseDuration.Record(ctx, took.Seconds())
	if r == nil {
		return
	}
	for _, ul := range r.Users {
		for _, ex := range ul.Exchanges {
			m.Exchanges.Add(ctx, 1, metric.WithAttributes(
				attribute.String("module", cfg.ResponseModule(ex.Modules)),
				attribute.Bool("correct", ex.Correct),
			))
		}
	}
}

// InitProvider registers a global MeterProvider backed by the Prometheus
// exporter, so instruments show up on the default registry's /metrics.
// The returned function flushes and shuts the provider down.
func InitProvider(ctx context.Context, serviceVersion string) (func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName("chatlog"),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	exp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
