package transcript

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// StripMarkup removes every markup tag from s and trims the result.
func StripMarkup(s string) string {
	return strings.TrimSpace(markupTag.ReplaceAllString(s, ""))
}

// Export renders messages as a plain-text conversation. User turns are
// prefixed "You:" and AI turns with aiName; turns are separated by a blank
// line.
func Export(messages []Message, aiName string) string {
	lines := lo.Map(messages, func(m Message, _ int) string {
		speaker := lo.Ternary(m.Role == RoleUser, "You", aiName)
		return speaker + ": " + StripMarkup(m.Text)
	})
	return strings.Join(lines, "\n\n")
}

// FileName is the download name of an exported conversation.
func FileName(scenarioID string) string {
	return fmt.Sprintf("lingoxa-conversation-%s.txt", scenarioID)
}

// ForReport renders messages one per line as "User: ..." and "AI: ...".
func ForReport(messages []Message) string {
	lines := lo.Map(messages, func(m Message, _ int) string {
		return lo.Ternary(m.Role == RoleUser, "User: ", "AI: ") + StripMarkup(m.Text)
	})
	return strings.Join(lines, "\n")
}
