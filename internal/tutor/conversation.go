package tutor

import (
	"context"
	"regexp"

	"github.com/MrWong99/lingoxa/internal/scenario"
	"github.com/MrWong99/lingoxa/internal/transcript"
	"github.com/MrWong99/lingoxa/pkg/provider/llm"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// Opening is the first AI line of a session.
type Opening struct {
	Text string

	// ExtractedName is the name the AI introduced itself with in a generated
	// opening, or empty.
	ExtractedName string

	// Generated reports whether the line came from the model rather than the
	// scenario definition.
	Generated bool
}

// nameChars matches a capitalised name with accented Latin, kana or CJK
// letters.
const nameChars = `([A-Z][a-zà-žÀ-Ž\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FFF}]+)`

// namePatterns are tried in order on a generated opening line.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:my name is|i'm|i am|this is)\s+` + nameChars),
	regexp.MustCompile(`^` + nameChars + `\s+(?i:here|speaking)`),
	regexp.MustCompile(`^(?:Hi|Hello|Hey|Bonjour|Hola|Ciao|こんにちは|你好)[,!]?\s+(?:(?i:I'm|I am|my name is)\s+)?` + nameChars),
}

// ExtractName returns the name a speaker introduces themselves with in text,
// or the empty string.
func ExtractName(text string) string {
	plain := transcript.StripMarkup(text)
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(plain); m != nil {
			return m[1]
		}
	}
	return ""
}

// Opening returns the first line of a session. Conversation scenarios with a
// travel destination get a generated, localised line with the character's
// invented name extracted; everything else uses the scenario's static line.
func (t *Tutor) Opening(ctx context.Context, p Persona) (Opening, error) {
	if p.Destination == "" || p.Scenario.Kind != scenario.KindConversation {
		return Opening{Text: p.Scenario.Opening(p.Reversed)}, nil
	}
	text, err := t.complete(ctx, OpOpening, llm.CompletionRequest{
		SystemPrompt: SystemInstruction(p),
		Messages:     []types.Message{{Role: "user", Content: openingCue}},
		Temperature:  defaultTemperature,
	})
	if err != nil {
		return Opening{}, err
	}
	return Opening{Text: text, ExtractedName: ExtractName(text), Generated: true}, nil
}

// Reply returns the character's answer to text given the earlier history.
// history must not include text itself.
func (t *Tutor) Reply(ctx context.Context, p Persona, history []transcript.Message, text string) (string, error) {
	msgs := append(t.history(history), types.Message{Role: "user", Content: text})
	return t.complete(ctx, OpReply, llm.CompletionRequest{
		SystemPrompt: SystemInstruction(p),
		Messages:     msgs,
		Temperature:  defaultTemperature,
	})
}
