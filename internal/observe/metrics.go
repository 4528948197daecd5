// Package observe provides observability primitives for notemate:
// OpenTelemetry metrics for the pipeline stages, tracing spans, and a
// trace-aware structured logger.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs an SDK meter provider backed by a Prometheus exporter and,
// optionally, a [StatsReader] that turns the metrics into [Stats]. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all notemate metrics.
const meterName = "github.com/MrWong99/notemate"

// Pipeline stage names used as the "stage" attribute.
const (
	StageRecording     = "recording"
	StageTranscription = "transcription"
	StageSummarization = "summarization"
)

// Instrument names.
const (
	metricStageDuration    = "notemate.stage.duration"
	metricAudioDuration    = "notemate.audio.duration"
	metricStageErrors      = "notemate.stage.errors"
	metricProviderRequests = "notemate.provider.requests"
	metricTokens           = "notemate.llm.tokens"
	metricActiveRecordings = "notemate.active_recordings"
)

// Request status values used as the "status" attribute.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks wall-clock time per pipeline stage. Use with
	// attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// AudioDuration tracks the length of recorded or imported audio.
	AudioDuration metric.Float64Histogram

	// StageErrors counts failed stages. Use with attribute.String("stage", ...).
	StageErrors metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Tokens counts LLM tokens. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("direction", "prompt"|"completion")
	Tokens metric.Int64Counter

	// ActiveRecordings is 1 while the microphone is being captured.
	ActiveRecordings metric.Int64UpDownCounter
}

// stageBuckets defines histogram bucket boundaries (in seconds) for stages
// that run from sub-second up to several minutes.
var stageBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// audioBuckets defines bucket boundaries (in seconds) for meeting lengths.
var audioBuckets = []float64{
	10, 60, 300, 900, 1800, 3600, 7200,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram(metricStageDuration,
		metric.WithDescription("Duration of a pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AudioDuration, err = m.Float64Histogram(metricAudioDuration,
		metric.WithDescription("Length of processed meeting audio."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(audioBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageErrors, err = m.Int64Counter(metricStageErrors,
		metric.WithDescription("Total failed pipeline stages by stage."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter(metricProviderRequests,
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Tokens, err = m.Int64Counter(metricTokens,
		metric.WithDescription("Total LLM tokens by provider and direction."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRecordings, err = m.Int64UpDownCounter(metricActiveRecordings,
		metric.WithDescription("Number of recordings in progress."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// RecordStage records the duration of a finished stage and, when err is
// non-nil, increments the stage error counter.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.StageDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.StageErrors.Add(ctx, 1, attrs)
	}
}

// RecordProviderRequest records a provider request counter increment with the
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

// RecordTokens adds prompt and completion token counts for provider.
// Zero counts are skipped.
func (m *Metrics) RecordTokens(ctx context.Context, provider string, prompt, completion int) {
	if prompt > 0 {
		m.Tokens.Add(ctx, int64(prompt), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("direction", "prompt"),
		))
	}
	if completion > 0 {
		m.Tokens.Add(ctx, int64(completion), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("direction", "completion"),
		))
	}
}

// StatusOf maps err to [StatusOK] or [StatusError].
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
