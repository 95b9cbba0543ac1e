package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/lingoxa/internal/config"
	"github.com/MrWong99/lingoxa/internal/scenario"
)

func diffScenario(id, setting string) scenario.Scenario {
	return scenario.Scenario{
		ID:             id,
		Title:          id,
		Difficulty:     scenario.DifficultyEasy,
		Category:       scenario.CategoryDaily,
		Setting:        setting,
		UserRole:       "Guest",
		AIRole:         "Host",
		InitialMessage: "Hello!",
		KeyPhrases:     []scenario.KeyPhrase{{Phrase: "Nice to meet you"}},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogInfo},
		Scenarios: []scenario.Scenario{diffScenario("cafe", "A cafe")},
	}
	if d := config.Diff(cfg, cfg); !d.Empty() {
		t.Errorf("identical configs produced %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()

	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v", d)
	}
	if d.Empty() {
		t.Error("Empty() = true for a log level change")
	}
}

func TestDiff_Scenarios(t *testing.T) {
	t.Parallel()

	old := &config.Config{Scenarios: []scenario.Scenario{
		diffScenario("cafe", "A cafe"),
		diffScenario("hotel", "A hotel lobby"),
		diffScenario("bank", "A bank"),
	}}
	new := &config.Config{Scenarios: []scenario.Scenario{
		diffScenario("cafe", "A rooftop cafe"),
		diffScenario("airport", "Check-in desk"),
		diffScenario("bank", "A bank"),
	}}

	d := config.Diff(old, new)
	if d.LogLevelChanged {
		t.Error("LogLevelChanged = true, want false")
	}
	if len(d.ScenariosAdded) != 1 || d.ScenariosAdded[0].ID != "airport" {
		t.Errorf("added = %v", d.ScenariosAdded)
	}
	if len(d.ScenariosChanged) != 1 || d.ScenariosChanged[0].Setting != "A rooftop cafe" {
		t.Errorf("changed = %v", d.ScenariosChanged)
	}
	if !slices.Equal(d.ScenariosRemoved, []string{"hotel"}) {
		t.Errorf("removed = %v", d.ScenariosRemoved)
	}
}

func TestDiff_KeyPhraseChangeCounts(t *testing.T) {
	t.Parallel()

	before := diffScenario("cafe", "A cafe")
	after := diffScenario("cafe", "A cafe")
	after.KeyPhrases = append(after.KeyPhrases, scenario.KeyPhrase{Phrase: "To go, please"})

	d := config.Diff(
		&config.Config{Scenarios: []scenario.Scenario{before}},
		&config.Config{Scenarios: []scenario.Scenario{after}},
	)
	if len(d.ScenariosChanged) != 1 {
		t.Errorf("changed = %d, want 1", len(d.ScenariosChanged))
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	old := &config.Config{
		Server:    config.ServerConfig{ListenAddr: ":8080"},
		Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"}},
	}
	next := &config.Config{
		Server:    config.ServerConfig{ListenAddr: ":8080"},
		Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", Model: "gpt-4o"}},
		Archive:   config.ArchiveConfig{PostgresDSN: "postgres://localhost/lingoxa"},
	}

	d := config.Diff(old, next)
	if d.Empty() {
		t.Fatal("provider and archive changes reported as empty")
	}
	if want := []string{"providers", "archive"}; !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.LogLevelChanged || len(d.ScenariosAdded) > 0 {
		t.Errorf("unexpected hot changes: %+v", d)
	}
}
