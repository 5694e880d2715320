// Package telemetry initializes the OpenTelemetry metrics exporter and holds
// the update site's counters.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ScopeName is the instrumentation scope of every instrument in this module.
const ScopeName = "github.com/leMaik/chunky-pr-as-update-site"

// Shutdown flushes and stops the exporter.
type Shutdown func(ctx context.Context) error

// Init configures the global meter provider.
// If endpoint is empty, OTEL is disabled and the no-op provider stays in place.
// Returns a shutdown function that must be called during graceful shutdown.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(ctx context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	metricOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(endpoint),
	}
	if insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(15*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}

// Meter returns the global meter for the given instrumentation scope.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Metrics are the counters recorded while serving builds.
// A nil *Metrics records nothing.
type Metrics struct {
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	fetches       metric.Int64Counter
	fetchFailures metric.Int64Counter
	bytesServed   metric.Int64Counter
}

// NewMetrics creates the counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.cacheHits, err = meter.Int64Counter("chunky.cache.hits",
		metric.WithDescription("Archive cache lookups that found the archive")); err != nil {
		return nil, fmt.Errorf("telemetry: cache hits counter: %w", err)
	}
	if m.cacheMisses, err = meter.Int64Counter("chunky.cache.misses",
		metric.WithDescription("Archive cache lookups that had to go upstream")); err != nil {
		return nil, fmt.Errorf("telemetry: cache misses counter: %w", err)
	}
	if m.fetches, err = meter.Int64Counter("chunky.archive.fetches",
		metric.WithDescription("Archives downloaded from upstream")); err != nil {
		return nil, fmt.Errorf("telemetry: fetches counter: %w", err)
	}
	if m.fetchFailures, err = meter.Int64Counter("chunky.archive.fetch_failures",
		metric.WithDescription("Archive downloads that failed")); err != nil {
		return nil, fmt.Errorf("telemetry: fetch failures counter: %w", err)
	}
	if m.bytesServed, err = meter.Int64Counter("chunky.entry.bytes_served",
		metric.WithDescription("Entry bytes written to clients"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("telemetry: bytes served counter: %w", err)
	}
	return &m, nil
}

func (m *Metrics) CacheHit(ctx context.Context) {
	if m != nil {
		m.cacheHits.Add(ctx, 1)
	}
}

func (m *Metrics) CacheMiss(ctx context.Context) {
	if m != nil {
		m.cacheMisses.Add(ctx, 1)
	}
}

func (m *Metrics) ArchiveFetched(ctx context.Context) {
	if m != nil {
		m.fetches.Add(ctx, 1)
	}
}

func (m *Metrics) FetchFailed(ctx context.Context) {
	if m != nil {
		m.fetchFailures.Add(ctx, 1)
	}
}

func (m *Metrics) BytesServed(ctx context.Context, n int64) {
	if m != nil && n > 0 {
		m.bytesServed.Add(ctx, n)
	}
}
