package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Observability bundles the OpenTelemetry meter and tracer used by the
// orchestrator and the worker.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	analysisCount  otelmetric.Int64Counter
	analysisTiming otelmetric.Float64Histogram
}

// New wires a Prometheus-backed meter provider and an in-process tracer
// provider and installs both globally.
func New(serviceName string) *Observability {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	o := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		o.instrument(metricnoop.NewMeterProvider().Meter(serviceName))
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	o.meterProvider = provider
	o.instrument(provider.Meter(serviceName))
	return o
}

// NewNoop returns an Observability that records nothing and registers
// nothing globally.
func NewNoop() *Observability {
	o := &Observability{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
	o.instrument(metricnoop.NewMeterProvider().Meter("noop"))
	return o
}

func (o *Observability) instrument(meter otelmetric.Meter) {
	o.analysisCount, _ = meter.Int64Counter(
		"analyses.processed",
		otelmetric.WithDescription("Number of deal analyses processed"),
	)
	o.analysisTiming, _ = meter.Float64Histogram(
		"analyses.duration",
		otelmetric.WithDescription("Deal analysis duration"),
		otelmetric.WithUnit("ms"),
	)
}

// StartSpan starts a child span of whatever span ctx carries.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordAnalysis(ctx context.Context, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.analysisCount != nil {
		o.analysisCount.Add(ctx, 1, attrs)
	}
	if o.analysisTiming != nil {
		o.analysisTiming.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
