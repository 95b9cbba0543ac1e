package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/MrWong99/lingoxa/internal/scenario"
)

const (
	minKeyPhrases = 3
	maxKeyPhrases = 4
)

type synthesisResponse struct {
	ID                     string               `json:"id"`
	Title                  string               `json:"title"`
	Emoji                  string               `json:"emoji"`
	Description            string               `json:"description"`
	Difficulty             string               `json:"difficulty"`
	Setting                string               `json:"setting"`
	UserRole               string               `json:"userRole"`
	AIRole                 string               `json:"aiRole"`
	AITutorName            string               `json:"aiTutorName"`
	Task                   string               `json:"task"`
	InitialMessage         string               `json:"initialMessage"`
	InitialMessageReversed string               `json:"initialMessageReversed"`
	KeyPhrases             []scenario.KeyPhrase `json:"keyPhrases"`
}

// difficultyNames maps the difficulty spellings models tend to produce.
var difficultyNames = map[string]scenario.Difficulty{
	"easy":   scenario.DifficultyEasy,
	"medium": scenario.DifficultyMedium,
	"hard":   scenario.DifficultyHard,
	"쉬움":     scenario.DifficultyEasy,
	"중간":     scenario.DifficultyMedium,
	"어려움":    scenario.DifficultyHard,
}

// Synthesize derives a custom conversation scenario from a free-text
// description. The result is not yet in any catalog; see
// [scenario.Catalog.AdoptCustom].
func (t *Tutor) Synthesize(ctx context.Context, description string) (scenario.Scenario, error) {
	prompt := fmt.Sprintf(synthesisPromptTemplate, description, t.nativeLanguage)

	var r synthesisResponse
	if err := t.completeJSON(ctx, OpSynthesis, prompt, &r); err != nil {
		return scenario.Scenario{}, err
	}

	phrases := lo.Filter(r.KeyPhrases, func(kp scenario.KeyPhrase, _ int) bool {
		return strings.TrimSpace(kp.Phrase) != ""
	})
	if len(phrases) < minKeyPhrases {
		return scenario.Scenario{}, malformed(OpSynthesis, fmt.Sprintf("%d key phrases, want at least %d", len(phrases), minKeyPhrases))
	}
	phrases = phrases[:min(len(phrases), maxKeyPhrases)]

	required := []struct{ name, value string }{
		{"title", r.Title},
		{"setting", r.Setting},
		{"userRole", r.UserRole},
		{"aiRole", r.AIRole},
		{"aiTutorName", r.AITutorName},
		{"task", r.Task},
		{"initialMessage", r.InitialMessage},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return scenario.Scenario{}, malformed(OpSynthesis, "missing "+f.name)
		}
	}

	difficulty, ok := difficultyNames[strings.ToLower(strings.TrimSpace(r.Difficulty))]
	if !ok {
		difficulty = scenario.DifficultyMedium
	}

	return scenario.Scenario{
		ID:                     strings.TrimSpace(r.ID),
		Title:                  strings.TrimSpace(r.Title),
		Emoji:                  r.Emoji,
		Description:            strings.TrimSpace(r.Description),
		Difficulty:             difficulty,
		Category:               scenario.CategoryCustom,
		Kind:                   scenario.KindConversation,
		Setting:                strings.TrimSpace(r.Setting),
		UserRole:               strings.TrimSpace(r.UserRole),
		AIRole:                 strings.TrimSpace(r.AIRole),
		AITutorName:            strings.TrimSpace(r.AITutorName),
		Task:                   strings.TrimSpace(r.Task),
		InitialMessage:         strings.TrimSpace(r.InitialMessage),
		InitialMessageReversed: strings.TrimSpace(r.InitialMessageReversed),
		KeyPhrases:             phrases,
	}, nil
}
