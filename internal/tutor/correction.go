package tutor

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/MrWong99/lingoxa/internal/transcript"
)

// nativeScripts maps a lowercase language name to the scripts whose presence
// marks input as written in that language.
var nativeScripts = map[string][]*unicode.RangeTable{
	"korean":   {unicode.Hangul},
	"japanese": {unicode.Hiragana, unicode.Katakana, unicode.Han},
	"chinese":  {unicode.Han},
}

// IsNativeScript reports whether text contains a letter of the script used
// by language. Languages written in Latin script are never detected.
func IsNativeScript(language, text string) bool {
	tables, ok := nativeScripts[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return false
	}
	for _, r := range text {
		if unicode.IsOneOf(tables, r) {
			return true
		}
	}
	return false
}

type correctionResponse struct {
	IsCorrect   *bool                   `json:"is_correct"`
	Original    string                  `json:"original"`
	Suggestions []transcript.Suggestion `json:"suggestions"`

	ToneFeedback      string            `json:"tone_feedback"`
	FormalityFeedback string            `json:"formality_feedback"`
	CulturalNote      string            `json:"cultural_note"`
	Idiom             *transcript.Idiom `json:"idiom_suggestion"`

	IsTranslationSuggestion bool `json:"is_translation_suggestion"`
}

// Correct checks text in the context of the conversation so far. It returns
// nil when the text needs no correction.
//
// Input written in the native language's script always yields a translation
// aid, which never carries style feedback.
func (t *Tutor) Correct(ctx context.Context, text string, history []transcript.Message) (*transcript.Correction, error) {
	translation := IsNativeScript(t.nativeLanguage, text)

	var prompt string
	if translation {
		prompt = fmt.Sprintf(translationPromptTemplate, t.nativeLanguage, text)
	} else {
		lastAI := noPreviousMessage
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Role == transcript.RoleAI {
				lastAI = transcript.StripMarkup(history[i].Text)
				break
			}
		}
		prompt = fmt.Sprintf(correctionPromptTemplate, t.nativeLanguage, lastAI, text)
	}

	var r correctionResponse
	if err := t.completeJSON(ctx, OpCorrection, prompt, &r); err != nil {
		return nil, err
	}
	if r.IsCorrect == nil {
		return nil, malformed(OpCorrection, "missing is_correct")
	}
	if *r.IsCorrect && !translation {
		return nil, nil
	}

	suggestions := lo.Filter(r.Suggestions, func(s transcript.Suggestion, _ int) bool {
		return strings.TrimSpace(s.Suggestion) != ""
	})
	if len(suggestions) == 0 {
		return nil, malformed(OpCorrection, "correction without suggestions")
	}

	c := &transcript.Correction{
		Original:    lo.Ternary(r.Original != "", r.Original, text),
		Suggestions: suggestions,
	}
	if translation {
		c.IsTranslationSuggestion = true
		return c, nil
	}
	c.ToneFeedback = strings.TrimSpace(r.ToneFeedback)
	c.FormalityFeedback = strings.TrimSpace(r.FormalityFeedback)
	c.CulturalNote = strings.TrimSpace(r.CulturalNote)
	if r.Idiom != nil && strings.TrimSpace(r.Idiom.Phrase) != "" {
		c.Idiom = r.Idiom
	}
	return c, nil
}
