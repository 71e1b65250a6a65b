// Package telemetry wires the OpenTelemetry meter behind a Prometheus pull
// endpoint. Metrics only matter for long batch runs, so everything is
// optional: a nil *Telemetry is safe to record into.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"net/http"
)

// Telemetry holds the fetch-loop instruments.
type Telemetry struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	fetchesTotal    metric.Int64Counter
	bytesDownloaded metric.Int64Counter
	fetchDuration   metric.Float64Histogram
}

// New creates the meter provider with a Prometheus reader and registers the
// instruments plus Go runtime metrics.
func New(serviceName string) (*Telemetry, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         otel.Meter(serviceName),
	}

	if t.fetchesTotal, err = t.meter.Int64Counter(
		"logleaks_fetches_total",
		metric.WithDescription("Work items that reached a terminal outcome"),
	); err != nil {
		return nil, err
	}

	if t.bytesDownloaded, err = t.meter.Int64Counter(
		"logleaks_downloaded_bytes_total",
		metric.WithDescription("Bytes written for successfully fetched artifacts"),
	); err != nil {
		return nil, err
	}

	if t.fetchDuration, err = t.meter.Float64Histogram(
		"logleaks_fetch_duration_seconds",
		metric.WithDescription("Per-item fetch duration including retries"),
	); err != nil {
		return nil, err
	}

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	return t, nil
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch records one terminal item outcome.
func (t *Telemetry) RecordFetch(ctx context.Context, outcome string, bytes int64, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	if t.fetchesTotal != nil {
		t.fetchesTotal.Add(ctx, 1, attrs)
	}

	if bytes > 0 && t.bytesDownloaded != nil {
		t.bytesDownloaded.Add(ctx, bytes)
	}

	if t.fetchDuration != nil {
		t.fetchDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// Shutdown flushes the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}

	return t.meterProvider.Shutdown(ctx)
}
