// Package openai implements llm.Provider with the official OpenAI Go SDK
// (github.com/openai/openai-go). Compatible servers such as Azure OpenAI,
// vLLM or LM Studio are reached through [WithBaseURL].
//
//	p, err := openai.New(os.Getenv("OPENAI_API_KEY"), "gpt-4o-mini")
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/phonoscore/pkg/provider/llm"
)

// Option configures [New].
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithBaseURL(url)) }
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithOrganization(org)) }
}

// WithTimeout bounds every HTTP request. Zero keeps the SDK default.
func WithTimeout(d time.Duration) Option {
	return func(o *[]option.RequestOption) {
		if d > 0 {
			*o = append(*o, option.WithHTTPClient(&http.Client{Timeout: d}))
		}
	}
}

// Provider implements llm.Provider using chat completions.
type Provider struct {
	client oai.Client
	model  string
	caps   modelInfo
}

// New creates a Provider for model authenticated with apiKey.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		caps:   lookupModel(model),
	}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}

	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.caps.ModelCapabilities
}

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return oai.ChatCompletionNewParams{}, errors.New("no messages")
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	// Reasoning models reject any temperature other than the default.
	if req.Temperature != 0 && !p.caps.reasoning {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.JSONMode {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role %q", m.Role)
}

type modelInfo struct {
	llm.ModelCapabilities
	reasoning bool
}

// modelFamilies is matched by prefix in order; more specific prefixes first.
var modelFamilies = []struct {
	prefix string
	info   modelInfo
}{
	{"gpt-4o", modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}}},
	{"gpt-4.1", modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}}},
	{"gpt-4-turbo", modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}}},
	{"gpt-4", modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}}},
	{"gpt-3.5-turbo", modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}}},
	{"o1", modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}, reasoning: true}},
	{"o3", modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}, reasoning: true}},
	{"o4", modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}, reasoning: true}},
}

func lookupModel(model string) modelInfo {
	lower := strings.ToLower(model)
	for _, f := range modelFamilies {
		if strings.HasPrefix(lower, f.prefix) {
			return f.info
		}
	}
	return modelInfo{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}}
}
