// Package observe provides observability primitives for the CrossAI
// emergency pipeline: OpenTelemetry metrics, tracing, and HTTP middleware
// tying them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported via
// a Prometheus bridge ([InitProvider]) so /metrics stays scrapeable. Tests
// should use [NewMetrics] with their own [metric.MeterProvider] instead of
// [DefaultMetrics] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all CrossAI metrics.
const meterName = "github.com/protect-ng/crossai"

// Metrics holds the metric instruments for the emergency pipeline. The
// underlying OTel types are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks speech-to-text latency.
	TranscriptionDuration metric.Float64Histogram

	// ClassificationDuration tracks model classification latency.
	ClassificationDuration metric.Float64Histogram

	// AuditDuration tracks emergency-record persistence latency.
	AuditDuration metric.Float64Histogram

	// SynthesisDuration tracks spoken-response synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// CycleDuration tracks one full classify→log→speak cycle.
	CycleDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts backend API calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// EmergenciesLogged counts persisted emergencies. Attributes:
	// emergency_type, severity.
	EmergenciesLogged metric.Int64Counter

	// FallbackClassifications counts cycles that fell back to the fixed
	// classification because the model's answer was unparseable.
	FallbackClassifications metric.Int64Counter

	// RecognitionDegraded counts streaming-recognition errors swallowed to
	// keep a session listening.
	RecognitionDegraded metric.Int64Counter

	// ProviderErrors counts backend errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks live emergency sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveStreams tracks open streaming-recognition sessions.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for a pipeline
// whose slowest stage is one model round trip.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("crossai.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassificationDuration, err = m.Float64Histogram("crossai.classify.duration",
		metric.WithDescription("Latency of emergency classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AuditDuration, err = m.Float64Histogram("crossai.audit.duration",
		metric.WithDescription("Latency of emergency-record persistence."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("crossai.tts.duration",
		metric.WithDescription("Latency of spoken-response synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CycleDuration, err = m.Float64Histogram("crossai.cycle.duration",
		metric.WithDescription("End-to-end latency of one classify, log, and speak cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("crossai.provider.requests",
		metric.WithDescription("Total backend API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.EmergenciesLogged, err = m.Int64Counter("crossai.emergencies.logged",
		metric.WithDescription("Total persisted emergencies by type and severity."),
	); err != nil {
		return nil, err
	}
	if met.FallbackClassifications, err = m.Int64Counter("crossai.classify.fallbacks",
		metric.WithDescription("Total classifications served by the fixed fallback."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionDegraded, err = m.Int64Counter("crossai.stt.degraded",
		metric.WithDescription("Total streaming recognition errors swallowed to keep sessions listening."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("crossai.provider.errors",
		metric.WithDescription("Total backend errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("crossai.active_sessions",
		metric.WithDescription("Number of live emergency sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("crossai.active_streams",
		metric.WithDescription("Number of open streaming recognition sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("crossai.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails, which
// the global provider never does.
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

// Attr is a shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest increments the provider request counter with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordEmergencyLogged increments the persisted-emergency counter.
func (m *Metrics) RecordEmergencyLogged(ctx context.Context, emergencyType, severity string) {
	m.EmergenciesLogged.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("emergency_type", emergencyType),
			attribute.String("severity", severity),
		),
	)
}

// RecordFallbackClassification increments the fallback-classification counter.
func (m *Metrics) RecordFallbackClassification(ctx context.Context) {
	m.FallbackClassifications.Add(ctx, 1)
}

// RecordRecognitionDegraded increments the swallowed-recognition-error counter.
func (m *Metrics) RecordRecognitionDegraded(ctx context.Context) {
	m.RecognitionDegraded.Add(ctx, 1)
}
