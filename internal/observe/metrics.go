// Package observe provides observability for phonoscore: OpenTelemetry
// metrics and tracing, trace-aware logging and the HTTP middleware that ties
// them together.
//
// Instruments are created through the OTel metrics API. [InitProvider]
// bridges them to a Prometheus registry served by [MetricsHandler]. Tests
// build their own [Metrics] with [NewMetrics] and an SDK meter provider
// backed by a manual reader.
package observe

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/phonoscore"

// Metrics holds the instruments recorded by the scoring pipeline.
type Metrics struct {
	// ScoringDuration times the local normalize, align and score path.
	ScoringDuration metric.Float64Histogram

	// RecognizerDuration times speech-to-phoneme calls, failed ones included.
	RecognizerDuration metric.Float64Histogram

	// AnalyzerDuration times external analyzer calls, failed ones included.
	AnalyzerDuration metric.Float64Histogram

	// AccuracyScore is the accuracy of every comparison, by "source".
	AccuracyScore metric.Float64Histogram

	// Comparisons counts comparisons by "source" and "silent".
	Comparisons metric.Int64Counter

	// ProviderRequests counts recognizer and analyzer calls by "provider",
	// "kind" and "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls by "provider" and "kind".
	ProviderErrors metric.Int64Counter

	// AnalyzerFallbacks counts analyses produced locally, by "reason".
	AnalyzerFallbacks metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by "breaker"
	// and "state".
	BreakerTransitions metric.Int64Counter

	// ActiveComparisons is the number of comparisons in flight.
	ActiveComparisons metric.Int64UpDownCounter

	// HTTPRequestDuration times API requests by "method", "path" and
	// "status".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets span local scoring (milliseconds) through slow model calls.
var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}

// accuracyBuckets are the deciles of the 0 to 100 accuracy range.
var accuracyBuckets = []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// instruments accumulates creation errors so NewMetrics can report them all
// at once.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (b *instruments) histogram(name, desc, unit string, bounds []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit(unit)}
	if bounds != nil {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	b.errs = append(b.errs, err)
	return h
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.errs = append(b.errs, err)
	return c
}

// NewMetrics creates every instrument on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &instruments{meter: mp.Meter(meterName)}
	m := &Metrics{
		ScoringDuration:     b.histogram("phonoscore.scoring.duration", "Latency of local phoneme alignment and scoring.", "s", latencyBuckets),
		RecognizerDuration:  b.histogram("phonoscore.recognizer.duration", "Latency of speech-to-phoneme recognition.", "s", latencyBuckets),
		AnalyzerDuration:    b.histogram("phonoscore.analyzer.duration", "Latency of the external pronunciation analyzer.", "s", latencyBuckets),
		AccuracyScore:       b.histogram("phonoscore.accuracy", "Accuracy of scored comparisons.", "%", accuracyBuckets),
		HTTPRequestDuration: b.histogram("phonoscore.http.request.duration", "API request latency by method, route and status.", "s", nil),
		Comparisons:         b.counter("phonoscore.comparisons", "Scored comparisons by source and silence."),
		ProviderRequests:    b.counter("phonoscore.provider.requests", "Provider calls by provider, kind and status."),
		ProviderErrors:      b.counter("phonoscore.provider.errors", "Failed provider calls by provider and kind."),
		AnalyzerFallbacks:   b.counter("phonoscore.analyzer.fallbacks", "Analyses produced locally by reason."),
		BreakerTransitions:  b.counter("phonoscore.breaker.transitions", "Circuit breaker state changes by breaker and state."),
	}
	var err error
	m.ActiveComparisons, err = b.meter.Int64UpDownCounter("phonoscore.active_comparisons",
		metric.WithDescription("Comparisons currently in flight."))
	b.errs = append(b.errs, err)

	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] on the global meter
// provider, created on first use. Call it after [InitProvider] so the
// instruments are bound to the Prometheus bridge.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.GetMeterProvider()); err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordComparison counts one scored comparison and records its accuracy.
func (m *Metrics) RecordComparison(ctx context.Context, source string, silent bool, accuracy float64) {
	m.Comparisons.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("silent", silent),
	))
	m.AccuracyScore.Record(ctx, accuracy, metric.WithAttributes(attribute.String("source", source)))
}

// RecordProviderCall counts one recognizer or analyzer call. A non-nil err
// marks the request as failed and also increments [Metrics.ProviderErrors].
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordAnalyzerFallback counts an analysis produced locally for reason.
func (m *Metrics) RecordAnalyzerFallback(ctx context.Context, reason string) {
	m.AnalyzerFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordBreakerTransition counts breaker entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("state", state),
	))
}
