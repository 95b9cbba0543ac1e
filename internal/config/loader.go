package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/lingoxa/internal/scenario"
)

// ValidProviderNames lists known provider names per provider kind. [Validate]
// warns about names outside this list.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram"},
	"tts": {"elevenlabs"},
}

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates it. Unknown keys
// are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg and returns every hard problem joined into one error.
// Soft problems are logged with slog.Warn.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; practice sessions cannot be started")
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	seen := map[string]int{cfg.Providers.LLM.Name + "/" + cfg.Providers.LLM.Model: -1}
	for i, fb := range cfg.Providers.Fallbacks {
		prefix := fmt.Sprintf("providers.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName("llm", fb.Name)
		key := fb.Name + "/" + fb.Model
		if _, dup := seen[key]; dup {
			slog.Warn("duplicate llm fallback", "entry", prefix, "name", fb.Name, "model", fb.Model)
		}
		seen[key] = i
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; voice capture will be unavailable")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; message playback will be unavailable")
	}

	p := cfg.Practice
	if p.HintWindow < 0 {
		errs = append(errs, fmt.Errorf("practice.hint_window %d must not be negative", p.HintWindow))
	}
	if p.ContextMessages < 0 {
		errs = append(errs, fmt.Errorf("practice.context_messages %d must not be negative", p.ContextMessages))
	}
	if p.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("practice.request_timeout %s must not be negative", p.RequestTimeout))
	}
	if p.Voice.SpeedFactor != 0 && (p.Voice.SpeedFactor < 0.5 || p.Voice.SpeedFactor > 2.0) {
		errs = append(errs, fmt.Errorf("practice.voice.speed_factor %.2f is out of range [0.5, 2.0]", p.Voice.SpeedFactor))
	}
	if p.Voice.PitchShift < -10 || p.Voice.PitchShift > 10 {
		errs = append(errs, fmt.Errorf("practice.voice.pitch_shift %.2f is out of range [-10, 10]", p.Voice.PitchShift))
	}
	if cfg.Providers.TTS.Name != "" && p.Voice.VoiceID == "" {
		slog.Warn("practice.voice.voice_id is empty; the TTS provider default voice is used")
	}

	if _, err := scenario.NewCatalog(cfg.Scenarios...); err != nil {
		errs = append(errs, fmt.Errorf("scenarios: %w", err))
	}

	if cfg.Archive.PostgresDSN == "" {
		slog.Debug("archive.postgres_dsn is empty; reports will not be archived")
	}

	return errors.Join(errs...)
}

// validateProviderName warns when name is set but not a known provider of
// kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known := ValidProviderNames[kind]
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
