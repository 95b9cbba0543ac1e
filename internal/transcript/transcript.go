// Package transcript holds the ordered message log of one practice session.
//
// A [Transcript] only grows. Messages are values; the single permitted
// in-place update is [Transcript.AttachCorrection], which attaches feedback to
// the user message that was just sent.
//
// Transcript is not safe for concurrent use. The owning session serialises
// access.
package transcript

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotAttachable is returned by AttachCorrection when the target is not
// the latest message, is not a user message, or already carries a correction.
var ErrNotAttachable = errors.New("transcript: correction can only be attached to the latest uncorrected user message")

// Role identifies who spoke a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Suggestion is one proposed rewrite of the learner's sentence.
type Suggestion struct {
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation"`
}

// Idiom is a natural expression offered instead of a literal phrasing.
type Idiom struct {
	Phrase  string `json:"phrase"`
	Meaning string `json:"meaning"`
}

// Correction is feedback attached to a user message. Its presence on the
// latest user message gates the session until a resubmission passes.
type Correction struct {
	Original    string       `json:"original"`
	Suggestions []Suggestion `json:"suggestions"`

	ToneFeedback      string `json:"tone_feedback,omitempty"`
	FormalityFeedback string `json:"formality_feedback,omitempty"`
	CulturalNote      string `json:"cultural_note,omitempty"`
	Idiom             *Idiom `json:"idiom_suggestion,omitempty"`

	// IsTranslationSuggestion marks a translation aid for native-language
	// input, as opposed to a correction of English input. Translation aids
	// never carry style feedback.
	IsTranslationSuggestion bool `json:"is_translation_suggestion"`
}

// HasStyleFeedback reports whether any tone, formality, cultural or idiom
// feedback is present.
func (c Correction) HasStyleFeedback() bool {
	return c.ToneFeedback != "" || c.FormalityFeedback != "" || c.CulturalNote != "" || c.Idiom != nil
}

// Message is one turn of the conversation.
type Message struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`

	// Text may contain speech markup (<speak>, <prosody>, <emphasis>). Use
	// [StripMarkup] for display.
	Text string `json:"text"`

	Correction *Correction `json:"correction,omitempty"`

	// ExtractedName is the character name the AI introduced itself with, set
	// only on a generated opening line.
	ExtractedName string `json:"extracted_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Transcript is an append-only sequence of messages.
type Transcript struct {
	messages []Message
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Append adds a message spoken by role and returns it.
func (t *Transcript) Append(role Role, text string) Message {
	return t.AppendMessage(Message{Role: role, Text: text})
}

// AppendMessage adds m, assigning a time-ordered ID and creation time when
// they are unset, and returns the stored value.
func (t *Transcript) AppendMessage(m Message) Message {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	t.messages = append(t.messages, m)
	return m
}

// AttachCorrection attaches c to the message with the given ID. Only the
// latest message may be updated, and only when it is an uncorrected user
// message.
func (t *Transcript) AttachCorrection(id string, c Correction) (Message, error) {
	last := len(t.messages) - 1
	if last < 0 {
		return Message{}, ErrNotAttachable
	}
	m := &t.messages[last]
	if m.ID != id || m.Role != RoleUser || m.Correction != nil {
		return Message{}, fmt.Errorf("message %s: %w", id, ErrNotAttachable)
	}
	m.Correction = &c
	return *m, nil
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.messages) }

// Messages returns a copy of all messages in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Tail returns a copy of the last n messages (all of them when n exceeds
// the length or is not positive).
func (t *Transcript) Tail(n int) []Message {
	if n <= 0 || n >= len(t.messages) {
		return t.Messages()
	}
	out := make([]Message, n)
	copy(out, t.messages[len(t.messages)-n:])
	return out
}

// Last returns the latest message.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// LastBy returns the latest message spoken by role.
func (t *Transcript) LastBy(role Role) (Message, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == role {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

// Get returns the message with the given ID.
func (t *Transcript) Get(id string) (Message, bool) {
	for _, m := range t.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// newID returns a UUIDv7 string. Version 7 IDs sort by creation time.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
