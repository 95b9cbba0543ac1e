// Package config provides the configuration schema, loader, provider
// registry and hot-reload watcher for the Lingoxa server.
package config

import (
	"time"

	"github.com/MrWong99/lingoxa/internal/scenario"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults used when the file leaves a value unset.
const (
	DefaultListenAddr      = ":8080"
	DefaultNativeLanguage  = "Korean"
	DefaultHintWindow      = 6
	DefaultContextMessages = 20
	DefaultRequestTimeout  = 45 * time.Second
)

// Config is the root configuration structure. Load it with [Load] or
// [LoadFromReader].
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Providers ProvidersConfig     `yaml:"providers"`
	Practice  PracticeConfig      `yaml:"practice"`
	Scenarios []scenario.Scenario `yaml:"scenarios"`
	Archive   ArchiveConfig       `yaml:"archive"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on. Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the backend for each capability. Every entry names
// a factory registered in the [Registry].
type ProvidersConfig struct {
	// LLM is the primary generation backend. It is required.
	LLM ProviderEntry `yaml:"llm"`

	// Fallbacks are tried in order when the primary fails or its circuit is
	// open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// STT enables voice capture. Optional.
	STT ProviderEntry `yaml:"stt"`

	// TTS enables message playback. Optional.
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation, e.g. "openai" or "deepgram".
	Name string `yaml:"name"`

	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// PracticeConfig tunes the practice sessions.
type PracticeConfig struct {
	// NativeLanguage is the learner's first language. Explanations are given
	// in it and input written in its script is treated as a translation
	// request. Default: Korean.
	NativeLanguage string `yaml:"native_language"`

	// HintWindow is the number of recent messages hints are generated from.
	HintWindow int `yaml:"hint_window"`

	// ContextMessages caps the transcript turns sent with each reply.
	ContextMessages int `yaml:"context_messages"`

	// RequestTimeout bounds every generation request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig describes the voice AI messages are spoken with.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// SpeedFactor adjusts speaking rate in [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`

	// PitchShift adjusts pitch in [-10, +10]. 0 means default.
	PitchShift float64 `yaml:"pitch_shift"`
}

// ArchiveConfig enables the report archive.
type ArchiveConfig struct {
	// PostgresDSN is the connection string of the archive database. Empty
	// disables archiving.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Addr returns the listen address, defaulted.
func (s ServerConfig) Addr() string {
	if s.ListenAddr == "" {
		return DefaultListenAddr
	}
	return s.ListenAddr
}

// Language returns the native language, defaulted.
func (p PracticeConfig) Language() string {
	if p.NativeLanguage == "" {
		return DefaultNativeLanguage
	}
	return p.NativeLanguage
}

// Hints returns the hint window, defaulted.
func (p PracticeConfig) Hints() int {
	if p.HintWindow <= 0 {
		return DefaultHintWindow
	}
	return p.HintWindow
}

// Context returns the context message cap, defaulted.
func (p PracticeConfig) Context() int {
	if p.ContextMessages <= 0 {
		return DefaultContextMessages
	}
	return p.ContextMessages
}

// Timeout returns the request timeout, defaulted.
func (p PracticeConfig) Timeout() time.Duration {
	if p.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return p.RequestTimeout
}
