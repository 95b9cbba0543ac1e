package scenario

import (
	"fmt"
	"strings"
)

// Topic is a free-chat subject offered when the learner just wants to talk.
type Topic struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// Topics lists the free-chat subjects.
var Topics = []Topic{
	{Name: "Weekend Plans", Emoji: "🎉"},
	{Name: "Hobbies", Emoji: "🎨"},
	{Name: "Recent Movie or Show", Emoji: "🎬"},
	{Name: "Favorite Foods", Emoji: "🍕"},
	{Name: "Dream Vacation", Emoji: "🏝️"},
	{Name: "Work or School", Emoji: "💼"},
}

// FreeChatPrompt returns the synthesis description for a free-chat topic.
func FreeChatPrompt(topic string) string {
	return fmt.Sprintf("I want to have a free conversation about %q. The AI should act as a friendly conversation partner.", strings.TrimSpace(topic))
}

// Destinations lists the suggested travel destinations. Any other non-empty
// destination is accepted as a custom one.
var Destinations = []string{"Japan", "USA", "Spain", "France", "Italy", "China"}

// NormalizeDestination trims d. The empty string means no travel mode.
func NormalizeDestination(d string) string {
	return strings.TrimSpace(d)
}
