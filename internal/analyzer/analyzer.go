// Package analyzer adapts a generative language model into a narrative
// pronunciation analysis.
//
// The [LLM] analyzer sends the target text, the target phonemes and the
// produced phonemes to an [llm.Provider] and parses the structured JSON reply
// into an [Analysis]. The analysis is enrichment only: scores always come from
// the local alignment in package align. When the model is unavailable or its
// reply is unusable, callers substitute [Fallback], which derives a
// deterministic analysis from the local alignment.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	llm "github.com/MrWong99/phonoscore/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 4096
	defaultTimeout     = 45 * time.Second
)

// ErrUnusableResponse is returned when the model reply cannot be turned into
// an [Analysis].
var ErrUnusableResponse = errors.New("analyzer: unusable response")

// Method records which path produced an [Analysis].
type Method string

const (
	MethodLLM          Method = "llm"
	MethodFallback     Method = "simple_fallback"
	MethodFallbackMute Method = "simple_fallback_empty_audio"
)

// Request is the input of an analysis.
type Request struct {
	// Text is the written sentence or word the speaker attempted.
	Text string

	// Target and Produced are normalized token sequences.
	Target   []string
	Produced []string
}

// Silent reports whether nothing was produced.
func (r Request) Silent() bool { return len(r.Produced) == 0 }

// Commentary is the model's note on one alignment position. Position is
// 1-based.
type Commentary struct {
	Position   int     `json:"position"`
	Target     string  `json:"target"`
	User       string  `json:"user"`
	Status     string  `json:"status"`
	Similarity float64 `json:"similarity_score"`
	Feedback   string  `json:"feedback"`
}

// Issue describes one pronunciation problem.
type Issue struct {
	Phoneme    string `json:"phoneme"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// Analysis is the narrative part of a pronunciation report.
type Analysis struct {
	OverallFeedback      string       `json:"overall_feedback"`
	NativeUnderstandable bool         `json:"native_understandable"`
	Intelligibility      string       `json:"intelligibility_level,omitempty"`
	Confidence           string       `json:"confidence_level,omitempty"`
	Comparison           []Commentary `json:"phoneme_comparison,omitempty"`
	Issues               []Issue      `json:"specific_issues,omitempty"`
	Strengths            []string     `json:"strengths,omitempty"`
	Tips                 []string     `json:"improvement_tips,omitempty"`
	Method               Method       `json:"method"`

	// Error carries the reason a fallback was used.
	Error string `json:"error,omitempty"`
}

// Analyzer produces an [Analysis] for a request. Implementations return an
// error when they cannot produce a usable analysis; they never substitute a
// fallback themselves.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Analysis, error)
}

// Option is a functional option for configuring an [LLM].
type Option func(*LLM)

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(a *LLM) { a.temperature = temp }
}

// WithMaxTokens caps the reply length. Default: 4096. Requests never ask for
// more than the model's MaxOutputTokens.
func WithMaxTokens(n int) Option {
	return func(a *LLM) { a.maxTokens = n }
}

// WithTimeout bounds a single analysis call. Zero disables the bound.
// Default: 45s.
func WithTimeout(d time.Duration) Option {
	return func(a *LLM) { a.timeout = d }
}

// LLM is an [Analyzer] backed by an [llm.Provider]. It is safe for
// concurrent use.
type LLM struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

var _ Analyzer = (*LLM)(nil)

// New returns an [LLM] analyzer backed by provider.
func New(provider llm.Provider, opts ...Option) *LLM {
	a := &LLM{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		timeout:     defaultTimeout,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze asks the model for an analysis of req. Provider errors, timeouts
// and unusable replies are returned as errors; the caller decides on the
// fallback.
func (a *LLM) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	maxTokens := a.maxTokens
	if limit := a.llm.Capabilities().MaxOutputTokens; limit > 0 && maxTokens > limit {
		maxTokens = limit
	}

	resp, err := a.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(req)},
		},
		Temperature: a.temperature,
		MaxTokens:   maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: complete: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty reply", ErrUnusableResponse)
	}

	analysis, err := parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}
	analysis.Method = MethodLLM
	return analysis, nil
}

// silentMarker replaces the produced phonemes in the prompt when nothing was
// recognized.
const silentMarker = "[SILENT/NO AUDIO DETECTED]"

const systemPrompt = `You are an expert phonetician and pronunciation coach. You compare the phonemes a learner produced against the target phonemes of an English text.

Rules:
- If the user phonemes are "` + silentMarker + `", nothing was pronounced. Mark every target phoneme as "missing", set native_understandable to false and say that no audio was detected.
- Never assume a phoneme was pronounced correctly when it is absent from the user phonemes.
- Consider phonetic similarity: voiced/voiceless pairs (p/b, t/d, k/g, f/v, s/z, ʃ/ʒ, θ/ð), vowel variations (i/ɪ, ɛ/æ, ʌ/ə, ɔ/ɑ, u/ʊ), liquids, nasals (m/n, n/ŋ) and diphthongs (eɪ, aɪ, ɔɪ, aʊ, oʊ).
- Focus on intelligibility. Be accurate but encouraging.
- "position" is the 1-based index of the phoneme in the alignment.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "native_understandable": <true/false>,
  "overall_feedback": "<brief assessment>",
  "phoneme_comparison": [
    {"position": <number>, "target": "<target phoneme>", "user": "<user phoneme or empty string>", "status": "<correct/similar/incorrect/missing/extra>", "similarity_score": <0-100>, "feedback": "<specific feedback>"}
  ],
  "specific_issues": [
    {"phoneme": "<problematic phoneme>", "issue": "<description>", "suggestion": "<improvement tip>"}
  ],
  "strengths": ["<correctly pronounced phonemes or aspects>"],
  "improvement_tips": ["<practical pronunciation tips>"],
  "intelligibility_level": "<Native/Near-Native/Intermediate/Beginner>",
  "confidence_level": "<High/Medium/Low>"
}`

func buildUserMessage(req Request) string {
	produced := strings.Join(req.Produced, " ")
	if req.Silent() {
		produced = silentMarker
	}
	return fmt.Sprintf(
		"Original text: %q\nTarget phonemes (correct): %s\nUser phonemes (actual): %s",
		req.Text,
		strings.Join(req.Target, " "),
		produced,
	)
}
