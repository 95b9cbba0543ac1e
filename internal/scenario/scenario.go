// Package scenario defines practice scenarios and the catalog that serves them.
//
// A [Scenario] is an immutable role-play definition. Scenarios come from the
// catalog embedded in the binary, from the scenarios section of the config
// file, or are synthesized on demand from a free-text description. The
// scenario kind is fixed at creation and selects which sub-machine governs a
// session: conversation sessions use correction gating, listening sessions
// run a story quiz.
//
// All catalog operations are safe for concurrent use.
package scenario

import "strings"

// Kind selects the session sub-machine for a scenario.
type Kind string

const (
	// KindConversation is a role-play with correction gating.
	KindConversation Kind = "conversation"

	// KindListening is a story followed by comprehension questions.
	KindListening Kind = "listening"
)

// IsValid reports whether k is a recognised kind.
func (k Kind) IsValid() bool {
	return k == KindConversation || k == KindListening
}

// Category groups scenarios for browsing.
type Category string

const (
	CategoryDaily     Category = "daily"
	CategoryTravel    Category = "travel"
	CategoryBusiness  Category = "business"
	CategoryListening Category = "listening"
	CategoryCustom    Category = "custom"
)

// Categories lists all categories in display order.
var Categories = []Category{CategoryDaily, CategoryTravel, CategoryBusiness, CategoryListening, CategoryCustom}

// IsValid reports whether c is a recognised category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDaily, CategoryTravel, CategoryBusiness, CategoryListening, CategoryCustom:
		return true
	}
	return false
}

// Difficulty is one of three ordered levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is a recognised difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Rank orders difficulties: easy=0, medium=1, hard=2. Unknown values rank -1.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	}
	return -1
}

// KeyPhrase is a useful phrase for the scenario with its meaning in the
// learner's native language.
type KeyPhrase struct {
	Phrase  string `yaml:"phrase" json:"phrase"`
	Meaning string `yaml:"meaning" json:"meaning"`
}

// Scenario is an immutable definition of a practice situation.
type Scenario struct {
	ID          string     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Emoji       string     `yaml:"emoji,omitempty" json:"emoji,omitempty"`
	Description string     `yaml:"description" json:"description"`
	Difficulty  Difficulty `yaml:"difficulty" json:"difficulty"`
	Category    Category   `yaml:"category" json:"category"`

	// Kind defaults to conversation when omitted in YAML.
	Kind Kind `yaml:"kind,omitempty" json:"kind"`

	// Setting is the narrative scene description given to the model.
	Setting string `yaml:"setting" json:"setting"`

	UserRole    string `yaml:"user_role" json:"user_role"`
	AIRole      string `yaml:"ai_role" json:"ai_role"`
	AITutorName string `yaml:"ai_tutor_name" json:"ai_tutor_name"`

	// Task is what the learner should try to accomplish.
	Task string `yaml:"task" json:"task"`

	InitialMessage         string `yaml:"initial_message" json:"initial_message"`
	InitialMessageReversed string `yaml:"initial_message_reversed" json:"initial_message_reversed"`

	KeyPhrases []KeyPhrase `yaml:"key_phrases" json:"key_phrases"`

	// UserPrompt is the description a custom scenario was synthesized from.
	UserPrompt string `yaml:"user_prompt,omitempty" json:"user_prompt,omitempty"`
}

// Roles returns the learner's and the AI's role names for the given
// role-reversal flag.
func (s Scenario) Roles(reversed bool) (userRole, aiRole string) {
	if reversed {
		return s.AIRole, s.UserRole
	}
	return s.UserRole, s.AIRole
}

// Opening returns the static opening line for the given role-reversal flag.
func (s Scenario) Opening(reversed bool) string {
	if reversed && s.InitialMessageReversed != "" {
		return s.InitialMessageReversed
	}
	return s.InitialMessage
}

// SkipsRoleSelection reports whether sessions for s always start with the
// default roles. Listening and custom scenarios have no reversed variant.
func (s Scenario) SkipsRoleSelection() bool {
	return s.Kind == KindListening || s.Category == CategoryCustom
}

// Phrases returns the key phrase texts, which double as the default hints.
func (s Scenario) Phrases() []string {
	out := make([]string, 0, len(s.KeyPhrases))
	for _, kp := range s.KeyPhrases {
		if p := strings.TrimSpace(kp.Phrase); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// withDefaults fills optional fields that have a well-defined default.
func (s Scenario) withDefaults() Scenario {
	if s.Kind == "" {
		s.Kind = KindConversation
	}
	if s.Kind == KindListening && s.Category == "" {
		s.Category = CategoryListening
	}
	return s
}
