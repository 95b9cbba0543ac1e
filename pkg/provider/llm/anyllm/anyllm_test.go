package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/lingoxa/pkg/provider/llm"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// ── convertMessage ────────────────────────────────────────────────────────────

func TestConvertMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   types.Message
	}{
		{"user", types.Message{Role: "user", Content: "Can I get a latte?"}},
		{"assistant", types.Message{Role: "assistant", Content: "Sure, what size?"}},
		{"named", types.Message{Role: "assistant", Content: "Hi", Name: "Sarah"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := convertMessage(tt.in)
			if got.Role != tt.in.Role {
				t.Errorf("role = %q, want %q", got.Role, tt.in.Role)
			}
			if got.ContentString() != tt.in.Content {
				t.Errorf("content = %q, want %q", got.ContentString(), tt.in.Content)
			}
			if got.Name != tt.in.Name {
				t.Errorf("name = %q, want %q", got.Name, tt.in.Name)
			}
		})
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams_SystemPromptFirst(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gemini-2.5-flash"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a barista.",
		Messages:     []types.Message{{Role: "user", Content: "Hello"}},
	})
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q, want system", params.Messages[0].Role)
	}
	if params.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q", params.Model)
	}
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("zero temperature and max tokens must stay unset")
	}
}

func TestBuildParams_JSONFormatAddsInstruction(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "llama3.1"}
	params := p.buildParams(llm.CompletionRequest{
		Format:   llm.FormatJSON,
		Messages: []types.Message{{Role: "user", Content: "grade this"}},
	})
	if len(params.Messages) != 2 {
		t.Fatalf("expected system message to be added, got %d messages", len(params.Messages))
	}
	if !strings.Contains(params.Messages[0].ContentString(), "single JSON object") {
		t.Errorf("system prompt missing JSON instruction: %q", params.Messages[0].ContentString())
	}
}

func TestBuildParams_TemperatureAndMaxTokens(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{Temperature: 0.3, MaxTokens: 256})
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("temperature not forwarded: %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 256 {
		t.Errorf("max tokens not forwarded: %v", params.MaxTokens)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model    string
		window   int
		jsonMode bool
	}{
		{"gpt-4o-mini", 128_000, true},
		{"GPT-4o", 128_000, true},
		{"claude-sonnet-4", 200_000, false},
		{"gemini-2.5-flash", 1_048_576, true},
		{"gemini-1.5-pro", 128_000, false},
		{"llama3.1", 128_000, false},
		{"some-unknown-model", 32_768, false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			t.Parallel()
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.window {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.window)
			}
			if caps.SupportsJSONMode != tt.jsonMode {
				t.Errorf("SupportsJSONMode = %v, want %v", caps.SupportsJSONMode, tt.jsonMode)
			}
		})
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty backend name")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestNew_OpenAIWithKey(t *testing.T) {
	t.Parallel()
	p, err := New("OpenAI", "gpt-4o", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "gpt-4o" || p.name != "openai" {
		t.Errorf("unexpected provider fields: name=%q model=%q", p.name, p.model)
	}
}

func TestNewOllama_NoAPIKey(t *testing.T) {
	t.Parallel()
	p, err := NewOllama("llama3.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestCountTokens(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gpt-4o"}
	n, err := p.CountTokens([]types.Message{{Role: "user", Content: "12345678"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 6 {
		t.Errorf("CountTokens = %d, want 6", n)
	}
}
