// Package observe holds the ambient observability of lingoxa: OpenTelemetry
// instruments for the tutor, speech and HTTP layers, trace-aware logging and
// the HTTP middleware tying both to each request.
//
// [InitProvider] installs the global providers and bridges every instrument
// to Prometheus. Code that is handed no [Metrics] falls back to
// [DefaultMetrics]; tests build their own with [NewMetrics] and an SDK
// ManualReader.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels of generation requests and reports.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics is the set of lingoxa instruments. It is safe for concurrent use.
type Metrics struct {
	// LLMDuration is labelled with the tutor operation (reply, correction,
	// hints, listening_story, report, ...).
	LLMDuration metric.Float64Histogram
	// STTDuration runs from the end of a capture to the final transcript.
	STTDuration metric.Float64Histogram
	// TTSDuration runs from the play request to the last audio chunk.
	TTSDuration metric.Float64Histogram

	// GenerationRequests is labelled with operation and status.
	GenerationRequests metric.Int64Counter
	// Corrections is labelled with kind: style or translation.
	Corrections metric.Int64Counter
	// Reports is labelled with status.
	Reports metric.Int64Counter
	// ProviderErrors counts backend failures seen by the failover group,
	// labelled with provider and kind.
	ProviderErrors metric.Int64Counter

	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration is labelled with method and route pattern.
	HTTPRequestDuration metric.Float64Histogram
}

// generationBuckets fit structured requests, which routinely take seconds.
var generationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}

// speechBuckets fit recognition and synthesis of a single utterance.
var speechBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15}

// instruments creates instruments on one meter and keeps the first error.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) seconds(name, desc string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.errs = append(in.errs, err)
	return h
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return c
}

func (in *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return g
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(scope)}
	m := &Metrics{
		LLMDuration: in.seconds("lingoxa.llm.duration", "Latency of generation requests.", generationBuckets...),
		STTDuration: in.seconds("lingoxa.stt.duration", "Latency of speech recognition.", speechBuckets...),
		TTSDuration: in.seconds("lingoxa.tts.duration", "Latency of speech synthesis.", speechBuckets...),

		GenerationRequests: in.counter("lingoxa.generation.requests", "Generation requests by operation and status."),
		Corrections:        in.counter("lingoxa.corrections", "Corrections attached to learner messages."),
		Reports:            in.counter("lingoxa.reports", "Learning reports by status."),
		ProviderErrors:     in.counter("lingoxa.provider.errors", "Backend failures by provider and kind."),

		ActiveSessions: in.gauge("lingoxa.sessions.active", "Live practice sessions."),

		HTTPRequestDuration: in.seconds("lingoxa.http.request.duration", "HTTP request latency by method and route."),
	}
	if err := errors.Join(in.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics on the global meter
// provider, created on first use. Call it after [InitProvider] so the
// instruments reach the Prometheus bridge.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordGeneration records the latency and outcome of one tutor request.
func (m *Metrics) RecordGeneration(ctx context.Context, operation string, elapsed time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	op := attribute.String("operation", operation)
	m.LLMDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(op))
	m.GenerationRequests.Add(ctx, 1, metric.WithAttributes(op, attribute.String("status", status)))
}

func (m *Metrics) RecordCorrection(ctx context.Context, translation bool) {
	kind := "style"
	if translation {
		kind = "translation"
	}
	m.Corrections.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordReport(ctx context.Context, status string) {
	m.Reports.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}
