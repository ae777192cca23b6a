package pronounce_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/phonoscore/internal/analyzer"
	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/internal/observe"
	"github.com/MrWong99/phonoscore/internal/pronounce"
	"github.com/MrWong99/phonoscore/pkg/align"
	"github.com/MrWong99/phonoscore/pkg/phoneme"
	llm "github.com/MrWong99/phonoscore/pkg/provider/llm"
	llmmock "github.com/MrWong99/phonoscore/pkg/provider/llm/mock"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
	recmock "github.com/MrWong99/phonoscore/pkg/provider/recognizer/mock"
)

const pushReply = `{
  "native_understandable": true,
  "overall_feedback": "Nearly there.",
  "phoneme_comparison": [
    {"position": 1, "target": "p", "user": "b", "status": "similar", "similarity_score": 75, "feedback": "Add aspiration to the p"},
    {"position": 2, "target": "ʊ", "user": "ʊ", "status": "correct", "similarity_score": 100, "feedback": "Good"}
  ],
  "intelligibility_level": "Near-Native",
  "confidence_level": "High"
}`

func newMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counterTotal sums every data point of the named counter whose attribute
// key equals value.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func newService(t *testing.T, opts ...pronounce.Option) *pronounce.Service {
	t.Helper()
	m, _ := newMetrics(t)
	return pronounce.New(phoneme.Default(), append([]pronounce.Option{pronounce.WithMetrics(m)}, opts...)...)
}

func llmAnalyzer(p *llmmock.Provider, opts ...analyzer.Option) pronounce.Option {
	return pronounce.WithAnalyzer("mock", analyzer.New(p, opts...))
}

func statuses(pairs []align.Pair) []align.Status {
	out := make([]align.Status, len(pairs))
	for i, p := range pairs {
		out[i] = p.Status
	}
	return out
}

func mustCompare(t *testing.T, svc *pronounce.Service, req pronounce.Request) *pronounce.Report {
	t.Helper()
	rep, err := svc.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	return rep
}

func TestScore(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	res := svc.Score("pʊʃ", "b ʊ ʃ")
	if res.Accuracy != 91.7 {
		t.Errorf("Accuracy = %v, want 91.7", res.Accuracy)
	}
	want := []align.Status{align.StatusSimilar, align.StatusCorrect, align.StatusCorrect}
	if got := statuses(res.Pairs); !reflect.DeepEqual(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func TestCompare_WithoutAnalyzer(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	rep := mustCompare(t, svc, pronounce.Request{Text: "push", Target: "ˈpʊʃ", Produced: "bʊʃ"})

	if rep.Accuracy != 91.7 {
		t.Errorf("Accuracy = %v, want 91.7", rep.Accuracy)
	}
	if rep.TargetPhonemes != "p ʊ ʃ" || rep.ProducedPhonemes != "b ʊ ʃ" {
		t.Errorf("phonemes = %q / %q", rep.TargetPhonemes, rep.ProducedPhonemes)
	}
	if math.Abs(rep.ErrorRate-1.0/3) > 1e-9 {
		t.Errorf("ErrorRate = %v, want 1/3", rep.ErrorRate)
	}
	if rep.Analysis == nil || rep.Analysis.Method != analyzer.MethodFallback {
		t.Fatalf("Analysis = %+v, want simple fallback", rep.Analysis)
	}
	if !rep.Analysis.NativeUnderstandable {
		t.Error("NativeUnderstandable = false at 91.7")
	}
	if rep.Analysis.Error != "" {
		t.Errorf("Analysis.Error = %q, want empty when disabled", rep.Analysis.Error)
	}
}

func TestCompare_AnalyzerOverlay(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: pushReply}}
	svc := newService(t, llmAnalyzer(p))

	rep := mustCompare(t, svc, pronounce.Request{Text: "push", Target: "pʊʃ", Produced: "bʊʃ"})

	if rep.Analysis.Method != analyzer.MethodLLM {
		t.Fatalf("Method = %q, want llm", rep.Analysis.Method)
	}
	if rep.Accuracy != 91.7 {
		t.Errorf("Accuracy = %v, analysis must not change the score", rep.Accuracy)
	}
	wantFeedback := []string{"Add aspiration to the p", "Good", ""}
	for i, p := range rep.Pairs {
		if p.Feedback != wantFeedback[i] {
			t.Errorf("pair %d feedback = %q, want %q", i, p.Feedback, wantFeedback[i])
		}
	}

	req := p.Calls()[0].Req
	if !strings.Contains(req.Messages[0].Content, "p ʊ ʃ") {
		t.Errorf("analyzer did not receive normalized target: %s", req.Messages[0].Content)
	}
}

func TestCompare_AnalyzerFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		provider  *llmmock.Provider
		opts      []analyzer.Option
		wantError string
		reason    string
	}{
		{
			name:      "provider error",
			provider:  &llmmock.Provider{CompleteErr: errors.New("503 from upstream")},
			wantError: "analysis unavailable: error",
			reason:    "error",
		},
		{
			name:      "unusable reply",
			provider:  &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "sorry, no"}},
			wantError: "analysis unavailable: unusable",
			reason:    "unusable",
		},
		{
			name: "timeout",
			provider: &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: pushReply},
				Delay:            time.Second,
			},
			opts:      []analyzer.Option{analyzer.WithTimeout(10 * time.Millisecond)},
			wantError: "analysis unavailable: timeout",
			reason:    "timeout",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, reader := newMetrics(t)
			svc := pronounce.New(phoneme.Default(),
				pronounce.WithMetrics(m),
				llmAnalyzer(tc.provider, tc.opts...),
			)
			rep := mustCompare(t, svc, pronounce.Request{Target: "pʊʃ", Produced: "bʊʃ"})

			if rep.Accuracy != 91.7 {
				t.Errorf("Accuracy = %v, want 91.7 regardless of analyzer", rep.Accuracy)
			}
			if rep.Analysis.Method != analyzer.MethodFallback {
				t.Errorf("Method = %q, want fallback", rep.Analysis.Method)
			}
			if rep.Analysis.Error != tc.wantError {
				t.Errorf("Analysis.Error = %q, want %q", rep.Analysis.Error, tc.wantError)
			}
			if got := counterTotal(t, reader, "phonoscore.analyzer.fallbacks", "reason", tc.reason); got != 1 {
				t.Errorf("fallbacks[%s] = %d, want 1", tc.reason, got)
			}
		})
	}
}

func TestCompare_SilenceSkipsAnalyzer(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: pushReply}}
	m, reader := newMetrics(t)
	svc := pronounce.New(phoneme.Default(), pronounce.WithMetrics(m), llmAnalyzer(p))

	rep := mustCompare(t, svc, pronounce.Request{Target: "h ɛ l oʊ", Produced: " ˈ "})

	if len(p.Calls()) != 0 {
		t.Errorf("analyzer called %d times for silence", len(p.Calls()))
	}
	if !rep.Silent() {
		t.Error("Silent() = false")
	}
	if rep.Accuracy != 0 {
		t.Errorf("Accuracy = %v, want 0", rep.Accuracy)
	}
	if rep.Analysis.Method != analyzer.MethodFallbackMute {
		t.Errorf("Method = %q, want %q", rep.Analysis.Method, analyzer.MethodFallbackMute)
	}
	for i, pair := range rep.Pairs {
		if pair.Status != align.StatusMissing || pair.Similarity != 0 || pair.Feedback != "Not pronounced" {
			t.Errorf("pair %d = %+v", i, pair)
		}
	}
	if rep.Statistics.Missing != 4 || rep.Statistics.TotalTarget != 4 {
		t.Errorf("Statistics = %+v", rep.Statistics)
	}
	if got := counterTotal(t, reader, "phonoscore.analyzer.fallbacks", "reason", "silent"); got != 1 {
		t.Errorf("silent fallbacks = %d, want 1", got)
	}
}

func TestCompare_SilenceParity(t *testing.T) {
	t.Parallel()

	req := pronounce.Request{Text: "hello", Target: "həˈloʊ"}
	ok := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: pushReply}}
	failing := &llmmock.Provider{CompleteErr: errors.New("down")}

	reports := []*pronounce.Report{
		mustCompare(t, newService(t), req),
		mustCompare(t, newService(t, llmAnalyzer(ok)), req),
		mustCompare(t, newService(t, llmAnalyzer(failing)), req),
	}
	for i, rep := range reports[1:] {
		if !reflect.DeepEqual(rep.Result, reports[0].Result) {
			t.Errorf("report %d result differs from local-only path:\n got %+v\nwant %+v", i+1, rep.Result, reports[0].Result)
		}
		if !reflect.DeepEqual(rep.Analysis, reports[0].Analysis) {
			t.Errorf("report %d analysis differs for silence", i+1)
		}
	}
}

func TestCompare_RecordsMetrics(t *testing.T) {
	t.Parallel()

	m, reader := newMetrics(t)
	svc := pronounce.New(phoneme.Default(), pronounce.WithMetrics(m))
	mustCompare(t, svc, pronounce.Request{Target: "a", Produced: "a"})
	mustCompare(t, svc, pronounce.Request{Target: "a", Produced: "b"})

	if got := counterTotal(t, reader, "phonoscore.comparisons", "source", "text"); got != 2 {
		t.Errorf("comparisons = %d, want 2", got)
	}
	if got := counterTotal(t, reader, "phonoscore.analyzer.fallbacks", "reason", "disabled"); got != 2 {
		t.Errorf("disabled fallbacks = %d, want 2", got)
	}
}

func TestCompare_TokenLimit(t *testing.T) {
	t.Parallel()

	// Twelve phonemes once the split affricates are rejoined.
	long := strings.Repeat("d ʒ ʌ s t ", 3)
	tests := []struct {
		name     string
		limit    int
		target   string
		produced string
		wantErr  bool
	}{
		{name: "within limit", limit: 12, target: long, produced: long},
		{name: "limit counts rejoined phonemes", limit: 12, target: long, produced: "dʒʌst dʒʌst dʒʌst"},
		{name: "target over limit", limit: 11, target: long, produced: "a", wantErr: true},
		{name: "produced over limit", limit: 11, target: "a", produced: long, wantErr: true},
		{name: "default limit", target: strings.Repeat("a b ", 1001), produced: "a", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, reader := newMetrics(t)
			svc := pronounce.New(phoneme.Default(), pronounce.WithMetrics(m), pronounce.WithMaxTokens(tc.limit))
			rep, err := svc.Compare(context.Background(), pronounce.Request{Target: tc.target, Produced: tc.produced})
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("Compare: %v", err)
				}
				if rep.Accuracy != 100 {
					t.Errorf("Accuracy = %v, want 100", rep.Accuracy)
				}
				return
			}
			if !errors.Is(err, pronounce.ErrTooManyTokens) {
				t.Fatalf("err = %v, want ErrTooManyTokens", err)
			}
			if rep != nil {
				t.Errorf("report = %+v, want nil", rep)
			}
			if got := counterTotal(t, reader, "phonoscore.comparisons", "source", "text"); got != 0 {
				t.Errorf("comparisons = %d, want 0 for rejected input", got)
			}
		})
	}
}

const practiceDoc = `
words:
  - id: 1
    text: ship
    phonemes: ʃɪp
    category: i-ɪ
exams:
  - id: 9
    category: i-ɪ
    sentences:
      - id: 90
        text: Sit.
        phonemes: sɪt
      - id: 91
        text: Seat.
        phonemes: siːt
      - id: 92
        text: Ship.
        phonemes: ʃɪp
`

func practiceStore(t *testing.T) content.Store {
	t.Helper()
	doc, err := content.DecodeDocument(strings.NewReader(practiceDoc))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	s, err := content.NewMemoryStore(doc, phoneme.Default())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	return s
}

var shipRef = content.Ref{Kind: content.KindWord, ID: 1}

func TestAssessContent(t *testing.T) {
	t.Parallel()

	svc := newService(t, pronounce.WithContentStore(practiceStore(t)))
	ctx := context.Background()

	rep, err := svc.AssessContent(ctx, shipRef, "ʃ i p")
	if err != nil {
		t.Fatalf("AssessContent: %v", err)
	}
	if rep.Content == nil || *rep.Content != shipRef {
		t.Errorf("Content = %v, want %v", rep.Content, shipRef)
	}
	if rep.Text != "ship" {
		t.Errorf("Text = %q", rep.Text)
	}
	// ɪ produced as i is a close substitution.
	if rep.Accuracy != 91.7 {
		t.Errorf("Accuracy = %v, want 91.7", rep.Accuracy)
	}

	_, err = svc.AssessContent(ctx, content.Ref{Kind: content.KindWord, ID: 2}, "x")
	if !errors.Is(err, content.ErrNotFound) {
		t.Errorf("missing item err = %v, want ErrNotFound", err)
	}

	_, err = newService(t).AssessContent(ctx, shipRef, "x")
	if !errors.Is(err, pronounce.ErrNoContentStore) {
		t.Errorf("no store err = %v, want ErrNoContentStore", err)
	}
}

func TestAssessAudio(t *testing.T) {
	t.Parallel()

	audio := recognizer.Audio{Data: []byte("RIFF...."), Filename: "a.wav"}
	recErr := errors.New("model crashed")

	tests := []struct {
		name         string
		rec          *recmock.Provider
		audio        recognizer.Audio
		wantErr      error
		wantAccuracy float64
		wantSilent   bool
		wantCalls    int
	}{
		{name: "exact", rec: &recmock.Provider{Phonemes: "ʃɪp"}, audio: audio, wantAccuracy: 100, wantCalls: 1},
		{name: "heard nothing", rec: &recmock.Provider{Phonemes: "  "}, audio: audio, wantSilent: true, wantCalls: 1},
		{name: "empty audio", rec: &recmock.Provider{Phonemes: "ʃɪp"}, wantErr: pronounce.ErrEmptyAudio},
		{name: "recognizer error", rec: &recmock.Provider{Err: recErr}, audio: audio, wantErr: recErr, wantCalls: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := newService(t,
				pronounce.WithContentStore(practiceStore(t)),
				pronounce.WithRecognizer("mock", tc.rec),
			)
			rep, err := svc.AssessAudio(context.Background(), shipRef, tc.audio)
			if got := tc.rec.CallCount(); got != tc.wantCalls {
				t.Errorf("recognizer calls = %d, want %d", got, tc.wantCalls)
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				if tc.wantErr == recErr && !errors.Is(err, pronounce.ErrRecognition) {
					t.Errorf("err = %v, want ErrRecognition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AssessAudio: %v", err)
			}
			if rep.Accuracy != tc.wantAccuracy {
				t.Errorf("Accuracy = %v, want %v", rep.Accuracy, tc.wantAccuracy)
			}
			if rep.Silent() != tc.wantSilent {
				t.Errorf("Silent() = %v, want %v", rep.Silent(), tc.wantSilent)
			}
		})
	}
}

func TestAssessAudio_NoRecognizer(t *testing.T) {
	t.Parallel()

	svc := newService(t, pronounce.WithContentStore(practiceStore(t)))
	_, err := svc.AssessAudio(context.Background(), shipRef, recognizer.Audio{Data: []byte{1}})
	if !errors.Is(err, pronounce.ErrNoRecognizer) {
		t.Errorf("err = %v, want ErrNoRecognizer", err)
	}
}

func TestAssessAudio_NotFoundSkipsRecognizer(t *testing.T) {
	t.Parallel()

	rec := &recmock.Provider{Phonemes: "ʃɪp"}
	svc := newService(t, pronounce.WithContentStore(practiceStore(t)), pronounce.WithRecognizer("mock", rec))
	_, err := svc.AssessAudio(context.Background(), content.Ref{Kind: content.KindSentence, ID: 1}, recognizer.Audio{Data: []byte{1}})
	if !errors.Is(err, content.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if rec.CallCount() != 0 {
		t.Error("recognizer called for unknown content")
	}
}
