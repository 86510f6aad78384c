// Package observe provides application-wide observability primitives for
// Voxa: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxa metrics.
const meterName = "github.com/voxahq/voxa"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecognitionDuration tracks wake-to-transcript latency.
	RecognitionDuration metric.Float64Histogram

	// ResolutionDuration tracks catalog-resolution latency.
	ResolutionDuration metric.Float64Histogram

	// DispatchDuration tracks playback-dispatch latency.
	DispatchDuration metric.Float64Histogram

	// --- Counters ---

	// WakeEvents counts wake-word triggers.
	WakeEvents metric.Int64Counter

	// DroppedFrames counts audio frames discarded by the bounded-latency
	// policy. Not an error; a rising rate means the host is overloaded.
	DroppedFrames metric.Int64Counter

	// SpotterShortCircuits counts commands resolved on the keyword fast
	// path, skipping full transcription.
	SpotterShortCircuits metric.Int64Counter

	// Intents counts dispatched intents. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("source", "remote"|"offline")
	Intents metric.Int64Counter

	// PipelineErrors counts per-stage failures. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("kind", ...)
	PipelineErrors metric.Int64Counter

	// CacheWriteFailures counts best-effort offline-cache write-backs that
	// failed. Never surfaced to the caller, so the counter is the only trace.
	CacheWriteFailures metric.Int64Counter

	// BusyWakeDrops counts wake events dropped because a recognition window
	// was already open and the pending slot was occupied.
	BusyWakeDrops metric.Int64Counter

	// --- Gauges ---

	// ActiveRouteDevices tracks the number of devices in the output route.
	ActiveRouteDevices metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognitionDuration, err = m.Float64Histogram("voxa.recognition.duration",
		metric.WithDescription("Latency from wake event to final transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResolutionDuration, err = m.Float64Histogram("voxa.resolution.duration",
		metric.WithDescription("Latency of catalog entity resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("voxa.dispatch.duration",
		metric.WithDescription("Latency of playback dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WakeEvents, err = m.Int64Counter("voxa.wake.events",
		metric.WithDescription("Total wake-word triggers."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("voxa.audio.dropped_frames",
		metric.WithDescription("Audio frames discarded by the bounded-latency policy."),
	); err != nil {
		return nil, err
	}
	if met.SpotterShortCircuits, err = m.Int64Counter("voxa.spotter.short_circuits",
		metric.WithDescription("Commands resolved on the keyword fast path."),
	); err != nil {
		return nil, err
	}
	if met.Intents, err = m.Int64Counter("voxa.intents",
		metric.WithDescription("Dispatched intents by kind and playback source."),
	); err != nil {
		return nil, err
	}
	if met.PipelineErrors, err = m.Int64Counter("voxa.pipeline.errors",
		metric.WithDescription("Pipeline failures by stage and error kind."),
	); err != nil {
		return nil, err
	}
	if met.CacheWriteFailures, err = m.Int64Counter("voxa.cache.write_failures",
		metric.WithDescription("Best-effort offline-cache write-backs that failed."),
	); err != nil {
		return nil, err
	}
	if met.BusyWakeDrops, err = m.Int64Counter("voxa.wake.busy_drops",
		metric.WithDescription("Wake events dropped while a recognition window was open."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveRouteDevices, err = m.Int64UpDownCounter("voxa.route.devices",
		metric.WithDescription("Number of devices in the active output route."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordPipelineError records a per-stage failure with the standard
// attribute set.
func (m *Metrics) RecordPipelineError(ctx context.Context, stage, kind string) {
	m.PipelineErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("kind", kind),
		),
	)
}

// RecordIntent records a dispatched intent with the standard attribute set.
func (m *Metrics) RecordIntent(ctx context.Context, intent, source string) {
	m.Intents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("source", source),
		),
	)
}
