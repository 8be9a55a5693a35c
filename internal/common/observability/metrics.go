package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"wikimind/internal/common/metrics"
)

// Observability records engine and job timings through an OpenTelemetry meter exported to
// the default Prometheus registry.
type Observability struct {
	meterProvider     *metric.MeterProvider
	meter             otelmetric.Meter
	jobCounter        otelmetric.Int64Counter
	jobDuration       otelmetric.Float64Histogram
	loadDuration      otelmetric.Float64Histogram
	inferenceDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	loadDuration, _ := meter.Float64Histogram(
		"engine.load.duration",
		otelmetric.WithDescription("Inference model construction time"),
		otelmetric.WithUnit("ms"),
	)

	inferenceDuration, _ := meter.Float64Histogram(
		"engine.inference.duration",
		otelmetric.WithDescription("Time spent selecting an answer span"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:     provider,
		meter:             meter,
		jobCounter:        jobCounter,
		jobDuration:       jobDuration,
		loadDuration:      loadDuration,
		inferenceDuration: inferenceDuration,
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// ObserveLoad records one model construction attempt.
func (o *Observability) ObserveLoad(backend string, duration time.Duration, err error) {
	outcome := metrics.Outcome(err)
	metrics.EngineLoads.WithLabelValues(backend, outcome).Inc()
	if o.loadDuration != nil {
		o.loadDuration.Record(context.Background(), float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("outcome", outcome),
		))
	}
}

// ObserveInference records one Infer call.
func (o *Observability) ObserveInference(backend string, duration time.Duration) {
	if o.inferenceDuration != nil {
		o.inferenceDuration.Record(context.Background(), float64(duration.Microseconds())/1000, otelmetric.WithAttributes(
			attribute.String("backend", backend),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
