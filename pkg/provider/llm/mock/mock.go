// Package mock provides a test double for the llm.Provider interface.
//
// Responses are served from a FIFO queue so a test can script a whole
// exchange (opening line, correction, reply, ...). When the queue is empty,
// CompleteResponse and CompleteErr are returned. CompleteFunc overrides both
// and is the hook for blocking or inspecting individual requests.
//
// Example:
//
//	p := &mock.Provider{}
//	p.Enqueue(`{"is_correct": true}`)
//	p.Enqueue("Great, what would you like to drink?")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingoxa/pkg/provider/llm"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Result is one scripted outcome of Complete.
type Result struct {
	Content string
	Err     error
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// CompleteFunc, when set, handles every Complete call. It runs without
	// the mock's lock held so it may block on ctx or a test channel.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// CompleteResponse is returned by Complete once the queue is drained.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned once the queue is drained.
	CompleteErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities types.ModelCapabilities

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	queue []Result
}

var _ llm.Provider = (*Provider)(nil)

// Enqueue appends successful responses to the queue.
func (p *Provider) Enqueue(contents ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range contents {
		p.queue = append(p.queue, Result{Content: c})
	}
}

// EnqueueErr appends a failing response to the queue.
func (p *Provider) EnqueueErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, Result{Err: err})
}

// Pending returns the number of queued results not yet consumed.
func (p *Provider) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Complete records the call and returns the next scripted result.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	fn := p.CompleteFunc
	if fn == nil && len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		if next.Err != nil {
			return nil, next.Err
		}
		return &llm.CompletionResponse{Content: next.Content}, nil
	}
	resp, err := p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

// CountTokens implements llm.Provider with the shared estimate.
func (p *Provider) CountTokens(messages []types.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities returns ModelCapabilities.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns a copy of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}

// Reset clears recorded calls and the response queue.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.queue = nil
}
