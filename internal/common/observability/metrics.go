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
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	parseCounter  otelmetric.Int64Counter
	parseDuration otelmetric.Float64Histogram
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

	parseCounter, _ := meter.Int64Counter(
		"foodlog.parses",
		otelmetric.WithDescription("Number of food-log parse requests processed"),
	)

	parseDuration, _ := meter.Float64Histogram(
		"foodlog.parse.duration",
		otelmetric.WithDescription("Food-log parse duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		parseCounter:  parseCounter,
		parseDuration: parseDuration,
	}
}

// RecordParse counts a completed parse with its extraction path.
func (o *Observability) RecordParse(ctx context.Context, path string, status string) {
	if o.parseCounter != nil {
		o.parseCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("path", path),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordParseDuration(ctx context.Context, duration time.Duration, status string) {
	if o.parseDuration != nil {
		o.parseDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
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
