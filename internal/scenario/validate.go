package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks a [Scenario] for required fields and valid enums.
//
// Rules:
//   - ID, Title, Setting, AIRole and InitialMessage must be non-empty.
//   - Kind, Category and Difficulty must be recognised values.
//   - Conversation scenarios need a UserRole and at least one key phrase.
//   - Every key phrase must have a non-empty phrase.
func Validate(s Scenario) error {
	var errs []error

	required := []struct{ name, value string }{
		{"id", s.ID},
		{"title", s.Title},
		{"setting", s.Setting},
		{"ai_role", s.AIRole},
		{"initial_message", s.InitialMessage},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", f.name))
		}
	}

	if !s.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("kind %q is not recognised", s.Kind))
	}
	if !s.Category.IsValid() {
		errs = append(errs, fmt.Errorf("category %q is not recognised", s.Category))
	}
	if !s.Difficulty.IsValid() {
		errs = append(errs, fmt.Errorf("difficulty %q is not recognised", s.Difficulty))
	}

	if s.Kind == KindConversation {
		if strings.TrimSpace(s.UserRole) == "" {
			errs = append(errs, errors.New("user_role must not be empty for conversation scenarios"))
		}
		if len(s.KeyPhrases) == 0 {
			errs = append(errs, errors.New("conversation scenarios need at least one key phrase"))
		}
	}

	for i, kp := range s.KeyPhrases {
		if strings.TrimSpace(kp.Phrase) == "" {
			errs = append(errs, fmt.Errorf("key_phrases[%d]: phrase must not be empty", i))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
