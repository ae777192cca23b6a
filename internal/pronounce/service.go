// Package pronounce is the pronunciation comparison pipeline.
//
// A [Service] turns a target phoneme string and a produced phoneme string into
// a [Report]: the local alignment, its accuracy and statistics, the phoneme
// error rate and a narrative analysis. The score is always computed locally
// from the phoneme inventory. The external analyzer only adds commentary and
// is replaced by a deterministic fallback when it is disabled, fails, times
// out or when nothing was produced.
//
// Targets can be given directly ([Service.Compare]) or looked up from a
// [content.Store] ([Service.AssessContent]). Produced phonemes can be given
// directly or recognized from audio ([Service.AssessAudio]). Exams are scored
// sentence by sentence in parallel ([Service.ScoreExam]).
package pronounce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/phonoscore/internal/analyzer"
	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/internal/observe"
	"github.com/MrWong99/phonoscore/pkg/align"
	"github.com/MrWong99/phonoscore/pkg/phoneme"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

const (
	defaultRecognitionTimeout = 30 * time.Second
	defaultExamConcurrency    = 4
	defaultMaxTokens          = 2000
)

// Sentinel errors.
var (
	// ErrEmptyAudio is returned when an audio attempt carries no bytes.
	ErrEmptyAudio = errors.New("pronounce: empty audio")

	// ErrNoRecognizer is returned by [Service.AssessAudio] when no
	// recognizer is configured.
	ErrNoRecognizer = errors.New("pronounce: no recognizer configured")

	// ErrNoContentStore is returned when a content lookup is needed but no
	// store is configured.
	ErrNoContentStore = errors.New("pronounce: no content store configured")

	// ErrRecognition wraps recognizer failures returned by
	// [Service.AssessAudio].
	ErrRecognition = errors.New("pronounce: recognition failed")

	// ErrTooManyTokens is returned when a target or produced sequence has
	// more phonemes than the service aligns.
	ErrTooManyTokens = errors.New("pronounce: too many phonemes")
)

// Source labels where a comparison came from in metrics and reports.
type Source string

const (
	SourceText    Source = "text"
	SourceContent Source = "content"
	SourceAudio   Source = "audio"
	SourceExam    Source = "exam"
)

// Fallback reasons recorded in metrics.
const (
	reasonSilent   = "silent"
	reasonDisabled = "disabled"
	reasonTimeout  = "timeout"
	reasonUnusable = "unusable"
	reasonError    = "error"
)

// Option is a functional option for configuring a [Service].
type Option func(*Service)

// WithContentStore sets the store targets are looked up from.
func WithContentStore(s content.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithAnalyzer enables narrative analysis through a. name labels the
// analyzer in metrics.
func WithAnalyzer(name string, a analyzer.Analyzer) Option {
	return func(svc *Service) {
		svc.analyzer = a
		svc.analyzerName = name
	}
}

// WithRecognizer enables audio assessment through r. name labels the
// recognizer in metrics.
func WithRecognizer(name string, r recognizer.Provider) Option {
	return func(svc *Service) {
		svc.recognizer = r
		svc.recognizerName = name
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// WithRecognitionTimeout bounds a single recognizer call. Default: 30s.
func WithRecognitionTimeout(d time.Duration) Option {
	return func(svc *Service) { svc.recognitionTimeout = d }
}

// WithExamConcurrency caps how many exam sentences are compared at once.
// Default: 4.
func WithExamConcurrency(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.examConcurrency = n
		}
	}
}

// WithMaxTokens caps the phonemes on either side of one comparison; the
// alignment table grows with the product of both lengths. Default: 2000.
func WithMaxTokens(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxTokens = n
		}
	}
}

// Service runs pronunciation comparisons. It is safe for concurrent use.
type Service struct {
	inv *phoneme.Inventory

	store          content.Store
	analyzer       analyzer.Analyzer
	analyzerName   string
	recognizer     recognizer.Provider
	recognizerName string
	metrics        *observe.Metrics

	recognitionTimeout time.Duration
	examConcurrency    int
	maxTokens          int
}

// New returns a [Service] scoring against inv.
func New(inv *phoneme.Inventory, opts ...Option) *Service {
	svc := &Service{
		inv:                inv,
		recognitionTimeout: defaultRecognitionTimeout,
		examConcurrency:    defaultExamConcurrency,
		maxTokens:          defaultMaxTokens,
	}
	for _, o := range opts {
		o(svc)
	}
	if svc.metrics == nil {
		svc.metrics = observe.DefaultMetrics()
	}
	return svc
}

// Inventory returns the phoneme inventory the service scores against.
func (s *Service) Inventory() *phoneme.Inventory { return s.inv }

// Content returns the configured content store, or nil.
func (s *Service) Content() content.Store { return s.store }

// HasAnalyzer reports whether comparisons consult an external analyzer.
func (s *Service) HasAnalyzer() bool { return s.analyzer != nil }

// HasRecognizer reports whether audio attempts can be assessed.
func (s *Service) HasRecognizer() bool { return s.recognizer != nil }

// Request is a comparison of raw phoneme strings.
type Request struct {
	// Text is the written word or sentence. It is only used for analysis.
	Text string `json:"text"`

	// Target and Produced are raw phoneme strings. Stress and length markers
	// are ignored; whitespace between symbols is optional.
	Target   string `json:"target"`
	Produced string `json:"produced"`
}

// Score tokenizes, normalizes, aligns and scores target against produced
// without any external call. Unlike [Service.Compare] it applies no phoneme
// limit.
func (s *Service) Score(target, produced string) align.Result {
	return align.Compare(s.inv, s.inv.Parse(target), s.inv.Parse(produced))
}

// Compare scores req locally and enriches the result with an analysis.
// Analyzer problems are absorbed by the fallback analysis; the only error is
// [ErrTooManyTokens].
func (s *Service) Compare(ctx context.Context, req Request) (*Report, error) {
	return s.compare(ctx, req, SourceText)
}

func (s *Service) compare(ctx context.Context, req Request, src Source) (*Report, error) {
	target := s.inv.Parse(req.Target)
	produced := s.inv.Parse(req.Produced)
	if err := s.checkLength(target, produced); err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "pronounce.compare")
	defer span.End()

	s.metrics.ActiveComparisons.Add(ctx, 1)
	defer s.metrics.ActiveComparisons.Add(ctx, -1)

	start := time.Now()
	res := align.Compare(s.inv, target, produced)
	s.metrics.ScoringDuration.Record(ctx, time.Since(start).Seconds())

	areq := analyzer.Request{Text: req.Text, Target: target, Produced: produced}
	analysis := s.analyze(ctx, areq, res)
	analyzer.Overlay(res.Pairs, analysis)

	s.metrics.RecordComparison(ctx, string(src), areq.Silent(), res.Accuracy)
	span.SetAttributes(observe.ScoreAttributes(string(src), areq.Silent(), res.Accuracy, string(analysis.Method))...)
	observe.Logger(ctx).Debug("comparison scored",
		"source", src,
		"target_len", len(target),
		"produced_len", len(produced),
		"accuracy", res.Accuracy,
		"method", analysis.Method,
	)

	return &Report{
		Text:             req.Text,
		TargetPhonemes:   phoneme.Join(target),
		ProducedPhonemes: phoneme.Join(produced),
		Result:           res,
		ErrorRate:        align.ErrorRate(target, produced),
		Analysis:         analysis,
	}, nil
}

func (s *Service) checkLength(target, produced []string) error {
	if n := max(len(target), len(produced)); n > s.maxTokens {
		return fmt.Errorf("%w: %d target and %d produced, limit %d",
			ErrTooManyTokens, len(target), len(produced), s.maxTokens)
	}
	return nil
}

// analyze runs the configured analyzer or falls back to the local analysis.
// Silent attempts never reach the analyzer.
func (s *Service) analyze(ctx context.Context, req analyzer.Request, res align.Result) *analyzer.Analysis {
	if req.Silent() {
		s.metrics.RecordAnalyzerFallback(ctx, reasonSilent)
		return analyzer.Fallback(req, res, nil)
	}
	if s.analyzer == nil {
		s.metrics.RecordAnalyzerFallback(ctx, reasonDisabled)
		return analyzer.Fallback(req, res, nil)
	}

	start := time.Now()
	a, err := s.analyzer.Analyze(ctx, req)
	s.metrics.AnalyzerDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordProviderCall(ctx, s.analyzerName, "llm", err)
	if err == nil {
		return a
	}

	reason := fallbackReason(err)
	s.metrics.RecordAnalyzerFallback(ctx, reason)
	observe.Logger(ctx).Warn("analyzer unavailable, using local analysis",
		"provider", s.analyzerName,
		"reason", reason,
		"err", err,
	)
	return analyzer.Fallback(req, res, errors.New("analysis unavailable: "+reason))
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, analyzer.ErrUnusableResponse):
		return reasonUnusable
	default:
		return reasonError
	}
}
