package scenario_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/lingoxa/internal/scenario"
)

func TestScenario_Roles(t *testing.T) {
	t.Parallel()

	s := scenario.Scenario{UserRole: "Customer", AIRole: "Barista", InitialMessage: "Hi!", InitialMessageReversed: "One latte."}

	if u, a := s.Roles(false); u != "Customer" || a != "Barista" {
		t.Errorf("Roles(false) = %q, %q", u, a)
	}
	if u, a := s.Roles(true); u != "Barista" || a != "Customer" {
		t.Errorf("Roles(true) = %q, %q", u, a)
	}
	if s.Opening(true) != "One latte." || s.Opening(false) != "Hi!" {
		t.Error("Opening picks the wrong line")
	}

	s.InitialMessageReversed = ""
	if s.Opening(true) != "Hi!" {
		t.Error("Opening(true) should fall back to the default line")
	}
}

func TestScenario_Phrases(t *testing.T) {
	t.Parallel()

	s := scenario.Scenario{KeyPhrases: []scenario.KeyPhrase{
		{Phrase: " Could I get a latte? "},
		{Phrase: "   "},
		{Phrase: "For here or to go?"},
	}}
	want := []string{"Could I get a latte?", "For here or to go?"}
	if got := s.Phrases(); !slices.Equal(got, want) {
		t.Errorf("Phrases = %q, want %q", got, want)
	}
}

func TestScenario_SkipsRoleSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    scenario.Scenario
		want bool
	}{
		{"conversation", scenario.Scenario{Kind: scenario.KindConversation, Category: scenario.CategoryDaily}, false},
		{"listening", scenario.Scenario{Kind: scenario.KindListening, Category: scenario.CategoryListening}, true},
		{"custom", scenario.Scenario{Kind: scenario.KindConversation, Category: scenario.CategoryCustom}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.s.SkipsRoleSelection(); got != tt.want {
				t.Errorf("SkipsRoleSelection = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDifficulty_Rank(t *testing.T) {
	t.Parallel()
	if !(scenario.DifficultyEasy.Rank() < scenario.DifficultyMedium.Rank() &&
		scenario.DifficultyMedium.Rank() < scenario.DifficultyHard.Rank()) {
		t.Error("difficulties must be ordered easy < medium < hard")
	}
	if scenario.Difficulty("x").Rank() != -1 {
		t.Error("unknown difficulty should rank -1")
	}
}

func TestFreeChatPrompt(t *testing.T) {
	t.Parallel()
	got := scenario.FreeChatPrompt(" Hobbies ")
	want := `I want to have a free conversation about "Hobbies". The AI should act as a friendly conversation partner.`
	if got != want {
		t.Errorf("FreeChatPrompt = %q", got)
	}
	if len(scenario.Topics) != 6 || len(scenario.Destinations) != 6 {
		t.Error("unexpected topic or destination count")
	}
	if !strings.Contains(strings.Join(scenario.Destinations, ","), "Japan") {
		t.Error("Japan missing from destinations")
	}
}
