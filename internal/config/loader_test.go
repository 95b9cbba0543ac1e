package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/lingoxa/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad log level",
			yaml: "server:\n  log_level: loud\n",
			want: "server.log_level",
		},
		{
			name: "half tls",
			yaml: "server:\n  tls:\n    cert_file: cert.pem\n",
			want: "server.tls",
		},
		{
			name: "nameless fallback",
			yaml: "providers:\n  llm:\n    name: openai\n  fallbacks:\n    - model: llama3\n",
			want: "providers.fallbacks[0].name",
		},
		{
			name: "negative hint window",
			yaml: "practice:\n  hint_window: -1\n",
			want: "practice.hint_window",
		},
		{
			name: "speed out of range",
			yaml: "practice:\n  voice:\n    speed_factor: 3\n",
			want: "practice.voice.speed_factor",
		},
		{
			name: "pitch out of range",
			yaml: "practice:\n  voice:\n    pitch_shift: -11\n",
			want: "practice.voice.pitch_shift",
		},
		{
			name: "invalid scenario",
			yaml: "scenarios:\n  - id: broken\n    title: Broken\n",
			want: "scenarios",
		},
		{
			name: "duplicate scenario",
			yaml: `
scenarios:
  - id: twin
    title: Twin
    setting: Somewhere
    difficulty: easy
    category: daily
    user_role: Guest
    ai_role: Host
    initial_message: Hi!
    key_phrases: [{phrase: Hello}]
  - id: twin
    title: Twin again
    setting: Elsewhere
    difficulty: easy
    category: daily
    user_role: Guest
    ai_role: Host
    initial_message: Hello!
    key_phrases: [{phrase: Hi}]
`,
			want: "already exists",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:   config.ServerConfig{LogLevel: "loud"},
		Practice: config.PracticeConfig{HintWindow: -1, ContextMessages: -2},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"log_level", "hint_window", "context_messages"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate_UnknownProviderOnlyWarns(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Providers: config.ProvidersConfig{
		LLM: config.ProviderEntry{Name: "my-proxy"},
		TTS: config.ProviderEntry{Name: "homegrown"},
	}}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("unknown provider names should only warn, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.TTS.Name != "elevenlabs" {
		t.Errorf("tts = %q", cfg.Providers.TTS.Name)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(unwrapAll(err)) {
		t.Errorf("Load missing file err = %v", err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("Load example: %v", err)
	}
	if len(cfg.Providers.Fallbacks) != 2 {
		t.Errorf("fallbacks = %d, want 2", len(cfg.Providers.Fallbacks))
	}
	if len(cfg.Scenarios) != 1 || cfg.Scenarios[0].ID != "bakery" {
		t.Errorf("scenarios = %+v", cfg.Scenarios)
	}
}

// unwrapAll returns the innermost wrapped error.
func unwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}
