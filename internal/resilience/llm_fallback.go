package resilience

import (
	"context"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/pkg/provider/llm"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// LLMFallback is an [llm.Provider] that fails over between generation
// backends. Every failed attempt is counted in
// lingoxa.provider.errors{provider,kind="llm"}.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns an LLMFallback with primary as the preferred backend.
// A nil metrics uses [observe.DefaultMetrics].
func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig, metrics *observe.Metrics) *LLMFallback {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	report := cfg.OnFailure
	cfg.OnFailure = func(provider string, err error) {
		metrics.RecordProviderError(context.Background(), provider, "llm")
		if report != nil {
			report(provider, err)
		}
	}
	return &LLMFallback{group: NewFallbackGroup(primary, name, cfg)}
}

// AddFallback registers another backend, tried after those already added.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) {
	f.group.AddFallback(name, p)
}

// Backends returns the backend names in failover order.
func (f *LLMFallback) Backends() []string { return f.group.Names() }

func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// CountTokens uses the primary's estimate. Token counting is local and never
// fails over.
func (f *LLMFallback) CountTokens(messages []types.Message) (int, error) {
	return f.group.Primary().CountTokens(messages)
}

// Capabilities reports the primary's model.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	return f.group.Primary().Capabilities()
}
