// Package llm defines the language-model provider interface used by the
// classification engine. Implementations live in subpackages (openai, anyllm)
// and are selected by name through the config registry.
package llm

import "context"

// Message is a single chat message in a completion request.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// CompletionRequest describes a single-shot completion. The classification
// engine always requests a complete response — streaming buys nothing when
// the output must be parsed as one JSON object.
type CompletionRequest struct {
	Messages []Message

	// Temperature controls decoding variance. The classifier pins this low
	// (0.1) so prompts map to stable structured output.
	Temperature float64

	// MaxTokens bounds the response length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the raw text of the first choice.
	Content string

	// Model is the concrete model identifier that served the request, used
	// for audit provenance.
	Model string
}

// Provider is a language-model backend capable of single-shot completions.
type Provider interface {
	// Complete sends the request and returns the model's response. It must
	// respect ctx cancellation and return an error wrapping fault.ErrUpstream
	// when the backend answers with a non-success status.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend (e.g., "openai", "ollama") for logs and
	// audit records.
	Name() string
}
