// Package observe provides the observability primitives for voiceid:
// OpenTelemetry metrics and tracing, a trace-aware slog logger, and HTTP
// middleware for the metrics listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed
// in Prometheus format by the exporter that [InitProvider] installs. Tests
// should build their own [Metrics] with [NewMetrics] and a ManualReader
// rather than use [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voiceid metrics.
const meterName = "github.com/MrWong99/voiceid"

// Outcome values for [Metrics.RecordIdentification].
const (
	OutcomeIdentified = "identified"
	OutcomeUnknown    = "unknown"
	OutcomeRejected   = "rejected"
)

// Status values for [Metrics.RecordEnrollment].
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// Enrollments counts enrolment attempts. Attributes: speaker, status.
	Enrollments metric.Int64Counter

	// Identifications counts identification attempts. Attributes: outcome,
	// speaker (empty unless identified).
	Identifications metric.Int64Counter

	// MatchScore records the best score of every scored identification.
	MatchScore metric.Float64Histogram

	// CaptureErrors counts failed capture tasks. Attribute: code.
	CaptureErrors metric.Int64Counter

	// StorageDuration tracks persistence latency. Attributes: backend, op.
	StorageDuration metric.Float64Histogram

	// EnrolledSpeakers tracks how many speakers have a profile.
	EnrolledSpeakers metric.Int64UpDownCounter

	// HTTPRequestDuration tracks metrics-listener requests. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

var (
	// scoreBuckets split the [0, 1] score range in tenths.
	scoreBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

	// latencyBuckets (seconds) cover local disks up to a slow database.
	latencyBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
)

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Enrollments, err = m.Int64Counter("voiceid.enrollments",
		metric.WithDescription("Voice enrolment attempts by speaker and status."),
	); err != nil {
		return nil, err
	}
	if met.Identifications, err = m.Int64Counter("voiceid.identifications",
		metric.WithDescription("Speaker identification attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.MatchScore, err = m.Float64Histogram("voiceid.match.score",
		metric.WithDescription("Best candidate score per identification."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("voiceid.capture.errors",
		metric.WithDescription("Failed speech capture tasks by error code."),
	); err != nil {
		return nil, err
	}
	if met.StorageDuration, err = m.Float64Histogram("voiceid.storage.duration",
		metric.WithDescription("Latency of profile storage operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnrolledSpeakers, err = m.Int64UpDownCounter("voiceid.enrolled_speakers",
		metric.WithDescription("Number of speakers with an enrolled profile."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voiceid.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// RecordEnrollment counts one enrolment attempt.
func (m *Metrics) RecordEnrollment(ctx context.Context, speaker, status string) {
	m.Enrollments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("speaker", speaker),
		attribute.String("status", status),
	))
}

// RecordIdentification counts one identification attempt. Scores are only
// recorded for attempts that reached scoring, so pass scored=false for
// rejected queries.
func (m *Metrics) RecordIdentification(ctx context.Context, outcome, speaker string, score float64, scored bool) {
	m.Identifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("speaker", speaker),
	))
	if scored {
		m.MatchScore.Record(ctx, score)
	}
}

// RecordCaptureError counts one failed capture task.
func (m *Metrics) RecordCaptureError(ctx context.Context, code string) {
	m.CaptureErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordStorage records the latency of one storage operation.
func (m *Metrics) RecordStorage(ctx context.Context, backend, op string, d time.Duration) {
	m.StorageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("op", op),
	))
}
