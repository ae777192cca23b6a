// Package llm defines the Provider interface for generative text backends.
//
// A provider wraps a remote or local model API (Gemini, OpenAI, a local Ollama
// instance, ...) and exposes the single request/response call that the
// pronunciation analyzer needs, without coupling callers to any specific SDK.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn of the prompt.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the backend.
// Counts are in the model's native token unit.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered prompt. The last message is typically from the
	// user role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// Messages. Providers without a dedicated system field prepend it as a
	// system-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0].
	// Zero leaves the provider default in place.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// JSONMode asks the backend to constrain its reply to a single JSON object
	// where the API supports it. Callers must still tolerate non-JSON replies.
	JSONMode bool
}

// CompletionResponse is the full reply to a CompletionRequest.
type CompletionResponse struct {
	// Content is the text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// ModelCapabilities describes static limits of the underlying model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum number of tokens generated in one reply.
	MaxOutputTokens int
}

// Provider is the abstraction over any generative text backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It must return promptly once ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata for the provider's model. The result
	// is constant for the lifetime of the Provider.
	Capabilities() ModelCapabilities
}
