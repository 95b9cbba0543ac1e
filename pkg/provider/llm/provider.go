// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI, Anthropic,
// Gemini, or a local Ollama instance) and exposes a uniform interface that the
// tutor uses for every generation request: opening lines, replies, corrections,
// hints, listening quizzes, reports, and sentence plans.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"

	"github.com/MrWong99/lingoxa/pkg/types"
)

// ErrTruncated reports a completion cut off at the token limit. A truncated
// JSON object cannot be decoded, so callers treat it like any other failed
// request.
var ErrTruncated = errors.New("llm: completion truncated at token limit")

// ResponseFormat selects the shape of the model output.
type ResponseFormat int

const (
	// FormatText requests free-form text. This is the zero value.
	FormatText ResponseFormat = iota

	// FormatJSON requests a single JSON object. Providers with a native JSON
	// mode enable it; others rely on the prompt and the caller strips any
	// markdown fences before decoding.
	FormatJSON
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages or SystemPrompt must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []types.Message

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation history. Providers without a dedicated system field prepend
	// it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// means provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// Format selects free text or a JSON object.
	Format ResponseFormat
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines and
// must return promptly when ctx is cancelled.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens messages would consume in the
	// model's context window. The estimate must not undercount; callers use it
	// to trim transcript context before sending a request.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata describing the underlying model.
	Capabilities() types.ModelCapabilities
}

// EstimateTokens is the shared rough token estimate (~4 characters per token
// plus per-message framing) used by providers without a local tokenizer.
func EstimateTokens(messages []types.Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total
}
