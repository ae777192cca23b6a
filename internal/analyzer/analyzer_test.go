package analyzer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/phonoscore/internal/analyzer"
	llm "github.com/MrWong99/phonoscore/pkg/provider/llm"
	"github.com/MrWong99/phonoscore/pkg/provider/llm/mock"
)

const validReply = `{
  "native_understandable": true,
  "overall_feedback": "Good attempt, watch the final consonant.",
  "phoneme_comparison": [
    {"position": 1, "target": "h", "user": "h", "status": "correct", "similarity_score": 100, "feedback": "Clear"},
    {"position": 4, "target": "oʊ", "user": "ɔ", "status": "incorrect", "similarity_score": 0.5, "feedback": "Glide to the u"}
  ],
  "specific_issues": [{"phoneme": "oʊ", "issue": "Monophthong", "suggestion": "Round the lips at the end"}],
  "strengths": ["Clear h"],
  "improvement_tips": ["Slow down"],
  "intelligibility_level": "Intermediate",
  "confidence_level": "High",
  "accuracy_score": 12
}`

func helloRequest() analyzer.Request {
	return analyzer.Request{
		Text:     "hello",
		Target:   []string{"h", "ə", "l", "oʊ"},
		Produced: []string{"h", "ə", "l", "ɔ"},
	}
}

func TestLLM_BuildsPrompt(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validReply},
	}
	a := analyzer.New(provider, analyzer.WithTemperature(0.3), analyzer.WithMaxTokens(512))

	if _, err := a.Analyze(context.Background(), helloRequest()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 Complete call, got %d", len(calls))
	}
	req := calls[0].Req
	if !req.JSONMode {
		t.Error("JSONMode not set")
	}
	if req.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", req.Temperature)
	}
	if req.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", req.MaxTokens)
	}
	if !strings.Contains(req.SystemPrompt, "JSON") {
		t.Errorf("system prompt does not ask for JSON:\n%s", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	msg := req.Messages[0].Content
	for _, want := range []string{`"hello"`, "h ə l oʊ", "h ə l ɔ"} {
		if !strings.Contains(msg, want) {
			t.Errorf("user message missing %q:\n%s", want, msg)
		}
	}
}

func TestLLM_ClampsMaxTokensToModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "unknown limit", limit: 0, want: 4096},
		{name: "roomy model", limit: 8192, want: 4096},
		{name: "small model", limit: 1024, want: 1024},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			provider := &mock.Provider{
				CompleteResponse:  &llm.CompletionResponse{Content: validReply},
				ModelCapabilities: llm.ModelCapabilities{MaxOutputTokens: tc.limit},
			}
			if _, err := analyzer.New(provider).Analyze(context.Background(), helloRequest()); err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if got := provider.Calls()[0].Req.MaxTokens; got != tc.want {
				t.Errorf("MaxTokens = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestLLM_SilentPromptMarker(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validReply},
	}
	a := analyzer.New(provider)

	req := helloRequest()
	req.Produced = nil
	if _, err := a.Analyze(context.Background(), req); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	msg := provider.Calls()[0].Req.Messages[0].Content
	if !strings.Contains(msg, "[SILENT/NO AUDIO DETECTED]") {
		t.Errorf("silent request not marked:\n%s", msg)
	}
}

func TestLLM_ParsesReply(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validReply},
	}
	got, err := analyzer.New(provider).Analyze(context.Background(), helloRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if got.Method != analyzer.MethodLLM {
		t.Errorf("Method = %q, want %q", got.Method, analyzer.MethodLLM)
	}
	if !got.NativeUnderstandable {
		t.Error("NativeUnderstandable = false, want true")
	}
	if got.OverallFeedback != "Good attempt, watch the final consonant." {
		t.Errorf("OverallFeedback = %q", got.OverallFeedback)
	}
	if len(got.Comparison) != 2 || got.Comparison[1].Feedback != "Glide to the u" {
		t.Errorf("Comparison = %+v", got.Comparison)
	}
	if len(got.Issues) != 1 || got.Issues[0].Phoneme != "oʊ" {
		t.Errorf("Issues = %+v", got.Issues)
	}
	if got.Intelligibility != "Intermediate" || got.Confidence != "High" {
		t.Errorf("levels = %q/%q", got.Intelligibility, got.Confidence)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}
}

func TestLLM_ToleratesWrapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "markdown fence", content: "```json\n" + validReply + "\n```"},
		{name: "bare fence", content: "```\n" + validReply + "\n```"},
		{name: "prose around", content: "Here is the analysis:\n" + validReply + "\nHope this helps."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			provider := &mock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: tc.content},
			}
			got, err := analyzer.New(provider).Analyze(context.Background(), helloRequest())
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if !strings.HasPrefix(got.OverallFeedback, "Good attempt") {
				t.Errorf("OverallFeedback = %q", got.OverallFeedback)
			}
		})
	}
}

func TestLLM_UnusableReplies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "prose only", content: "I cannot analyze this."},
		{name: "broken json", content: `{"overall_feedback": "ok",`},
		{name: "reversed braces", content: "} nope {"},
		{name: "error field", content: `{"error": "quota exceeded", "overall_feedback": "x"}`},
		{name: "no feedback", content: `{"native_understandable": true}`},
		{name: "wrong types", content: `{"overall_feedback": 3}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			provider := &mock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: tc.content},
			}
			_, err := analyzer.New(provider).Analyze(context.Background(), helloRequest())
			if !errors.Is(err, analyzer.ErrUnusableResponse) {
				t.Errorf("err = %v, want ErrUnusableResponse", err)
			}
		})
	}
}

func TestLLM_NilReply(t *testing.T) {
	t.Parallel()

	_, err := analyzer.New(&mock.Provider{}).Analyze(context.Background(), helloRequest())
	if !errors.Is(err, analyzer.ErrUnusableResponse) {
		t.Errorf("err = %v, want ErrUnusableResponse", err)
	}
}

func TestLLM_ProviderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("service unavailable")
	provider := &mock.Provider{CompleteErr: boom}
	_, err := analyzer.New(provider).Analyze(context.Background(), helloRequest())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestLLM_Timeout(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validReply},
		Delay:            time.Second,
	}
	a := analyzer.New(provider, analyzer.WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := a.Analyze(context.Background(), helloRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Analyze took %v, timeout not honoured", elapsed)
	}
}
