package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/lingoxa/internal/config"
	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/resilience"
	"github.com/MrWong99/lingoxa/pkg/provider/llm"
	"github.com/MrWong99/lingoxa/pkg/provider/llm/mock"
)

const cliConfig = `
server:
  log_level: warn
scenarios:
  - id: bakery
    title: Bakery
    emoji: "🥐"
    description: Buy bread.
    difficulty: easy
    category: daily
    setting: A small bakery.
    user_role: Customer
    ai_role: Baker
    ai_tutor_name: Mia
    task: Buy a baguette.
    initial_message: Good morning!
    key_phrases:
      - phrase: Could I have a baguette?
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	want := map[string]bool{"version": false, "serve": false, "scenarios": false, "chat": false}
	for _, c := range newRootCmd().Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q missing", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "lingoxa dev") {
		t.Errorf("output = %q", out)
	}
}

func TestScenariosCmd(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, cliConfig)

	out, err := runCmd(t, "scenarios", "--config", path, "--category", "daily")
	if err != nil {
		t.Fatalf("scenarios: %v", err)
	}
	if !strings.Contains(out, "bakery") || !strings.Contains(out, "DIFFICULTY") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "listening") {
		t.Errorf("category filter ignored: %q", out)
	}

	if _, err := runCmd(t, "scenarios", "--config", path, "--kind", "podcast"); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestScenariosCmd_MissingConfig(t *testing.T) {
	t.Parallel()

	_, err := runCmd(t, "scenarios", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestChatCmd_RequiresScenario(t *testing.T) {
	t.Parallel()

	if _, err := runCmd(t, "chat", "--config", writeConfig(t, cliConfig)); err == nil {
		t.Error("chat without --scenario succeeded")
	}
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	metrics := observe.DefaultMetrics()

	t.Run("nothing configured", func(t *testing.T) {
		t.Parallel()
		ps, err := buildProviders(&config.Config{}, reg, metrics)
		if err != nil {
			t.Fatalf("buildProviders: %v", err)
		}
		if ps.LLM != nil || ps.STT != nil || ps.TTS != nil {
			t.Errorf("providers = %+v, want none", ps)
		}
	})

	t.Run("unregistered name is skipped", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "acme", Model: "x"}}}
		ps, err := buildProviders(cfg, reg, metrics)
		if err != nil || ps.LLM != nil {
			t.Errorf("LLM = %v, err = %v", ps.LLM, err)
		}
	})

	t.Run("factory error", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai"}}}
		if _, err := buildProviders(cfg, reg, metrics); err == nil {
			t.Error("openai without key accepted")
		}
	})

	t.Run("fallbacks", func(t *testing.T) {
		t.Parallel()
		local := config.NewRegistry()
		local.RegisterLLM("fake", func(config.ProviderEntry) (llm.Provider, error) { return &mock.Provider{}, nil })
		cfg := &config.Config{Providers: config.ProvidersConfig{
			LLM:       config.ProviderEntry{Name: "fake", Model: "a"},
			Fallbacks: []config.ProviderEntry{{Name: "fake", Model: "b"}, {Name: "acme"}},
		}}
		ps, err := buildProviders(cfg, local, metrics)
		if err != nil {
			t.Fatalf("buildProviders: %v", err)
		}
		fb, ok := ps.LLM.(*resilience.LLMFallback)
		if !ok {
			t.Fatalf("LLM = %T, want *resilience.LLMFallback", ps.LLM)
		}
		if got := fb.Backends(); len(got) != 2 {
			t.Errorf("backends = %v, want primary plus one fallback", got)
		}
	})
}

func TestPrintProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, provider, model, want string
	}{
		{name: "unset", want: "(not configured)"},
		{name: "with model", provider: "openai", model: "gpt-4o", want: "openai / gpt-4o"},
		{name: "truncated", provider: "anthropic", model: "claude-sonnet-latest", want: "anthropic / claude…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			printProvider(&buf, "LLM", tt.provider, tt.model)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("line = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}
