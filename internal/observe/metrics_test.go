package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics recorded into a manual reader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counter sums the data points of an int64 sum whose attribute key equals
// value. Missing metrics count as zero.
func counter(rm metricdata.ResourceMetrics, name, key, value string) int64 {
	met := findMetric(rm, name)
	if met == nil {
		return 0
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.Emit() == value {
			total += dp.Value
		}
	}
	return total
}

// samples returns the total count of a float64 histogram.
func samples(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("histogram %q not recorded", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("%q is %T, want histogram", name, met.Data)
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n
}

func TestRecorders(t *testing.T) {
	t.Parallel()
	unreachable := errors.New("dial tcp: connection refused")

	tests := []struct {
		name   string
		record func(context.Context, *Metrics)
		metric string
		key    string
		value  string
		want   int64
	}{
		{
			name: "comparisons by source",
			record: func(ctx context.Context, m *Metrics) {
				m.RecordComparison(ctx, "audio", false, 91.7)
				m.RecordComparison(ctx, "text", false, 50)
				m.RecordComparison(ctx, "text", true, 0)
			},
			metric: "phonoscore.comparisons", key: "source", value: "text", want: 2,
		},
		{
			name: "silent comparisons",
			record: func(ctx context.Context, m *Metrics) {
				m.RecordComparison(ctx, "audio", true, 0)
				m.RecordComparison(ctx, "audio", false, 80)
			},
			metric: "phonoscore.comparisons", key: "silent", value: "true", want: 1,
		},
		{
			name: "successful provider calls",
			record: func(ctx context.Context, m *Metrics) {
				m.RecordProviderCall(ctx, "gemini", "llm", nil)
				m.RecordProviderCall(ctx, "gemini", "llm", nil)
				m.RecordProviderCall(ctx, "gemini", "llm", unreachable)
			},
			metric: "phonoscore.provider.requests", key: "status", value: "ok", want: 2,
		},
		{
			name: "failed provider calls counted as requests",
			record: func(ctx context.Context, m *Metrics) {
				m.RecordProviderCall(ctx, "remote", "recognizer", unreachable)
			},
			metric: "phonoscore.provider.requests", key: "status", value: "error", want: 1,
		},
		{
			name: "failed provider calls counted as errors",
			record: func(ctx context.Context, m *Metrics) {
				m.RecordProviderCall(ctx, "remote", "recognizer", unreachable)
				m.RecordProviderCall(ctx, "remote", "recognizer", nil)
			},
			metric: "phonoscore.provider.errors", key: "kind", value: "recognizer", want: 1,
		},
		{
			name: "fallbacks by reason",
			record: func(ctx context.Context, m *Metrics) {
				m.RecordAnalyzerFallback(ctx, "silent")
				m.RecordAnalyzerFallback(ctx, "timeout")
				m.RecordAnalyzerFallback(ctx, "timeout")
			},
			metric: "phonoscore.analyzer.fallbacks", key: "reason", value: "timeout", want: 2,
		},
		{
			name: "breaker transitions",
			record: func(ctx context.Context, m *Metrics) {
				m.RecordBreakerTransition(ctx, "llm/gemini", "open")
				m.RecordBreakerTransition(ctx, "llm/gemini", "half-open")
			},
			metric: "phonoscore.breaker.transitions", key: "state", value: "open", want: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, reader := newTestMetrics(t)
			tc.record(context.Background(), m)

			if got := counter(collect(t, reader), tc.metric, tc.key, tc.value); got != tc.want {
				t.Errorf("%s{%s=%q} = %d, want %d", tc.metric, tc.key, tc.value, got, tc.want)
			}
		})
	}
}

func TestHistograms(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ScoringDuration.Record(ctx, 0.0004)
	m.RecognizerDuration.Record(ctx, 1.2)
	m.RecognizerDuration.Record(ctx, 0.8)
	m.AnalyzerDuration.Record(ctx, 12)
	m.RecordComparison(ctx, "content", false, 100)

	rm := collect(t, reader)
	for name, want := range map[string]uint64{
		"phonoscore.scoring.duration":    1,
		"phonoscore.recognizer.duration": 2,
		"phonoscore.analyzer.duration":   1,
		"phonoscore.accuracy":            1,
	} {
		if got := samples(t, rm, name); got != want {
			t.Errorf("%s samples = %d, want %d", name, got, want)
		}
	}
}

func TestActiveComparisons(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveComparisons.Add(ctx, 1)
	m.ActiveComparisons.Add(ctx, 1)
	m.ActiveComparisons.Add(ctx, -1)

	met := findMetric(collect(t, reader), "phonoscore.active_comparisons")
	if met == nil {
		t.Fatal("active comparisons not recorded")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if sum.IsMonotonic {
		t.Error("active comparisons is monotonic, want up-down")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("in flight = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
