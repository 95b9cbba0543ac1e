// Package speech turns AI messages into audio and learner speech into text.
//
// It owns two single-slot resources per voice channel: a [Player] that speaks
// at most one message at a time and a [Capture] that records at most one
// utterance at a time. AI text may carry a small SSML subset (<speak>,
// <prosody rate pitch>, <emphasis>); [Segments] maps it onto synthesis
// parameters.
package speech

import (
	"regexp"
	"strings"

	"github.com/MrWong99/lingoxa/internal/transcript"
)

// Segment is a run of text spoken with one rate and pitch.
type Segment struct {
	Text  string
	Rate  float64
	Pitch float64
}

var (
	wrapperTags = regexp.MustCompile(`(?i)</?(?:speak|emphasis)\b[^>]*>`)
	prosodyTag  = regexp.MustCompile(`(?is)<prosody\b([^>]*)>(.*?)</prosody>`)
	attribute   = regexp.MustCompile(`(\w+)\s*=\s*['"]([^'"]*)['"]`)
)

var (
	rates   = map[string]float64{"slow": 0.8, "fast": 1.3}
	pitches = map[string]float64{"low": 0.8, "high": 1.2}
)

// Segments splits text into prosody runs. Speak and emphasis tags are
// dropped; text outside any prosody tag is spoken at normal rate and pitch.
// Text without usable segments falls back to a single plain segment.
func Segments(text string) []Segment {
	body := wrapperTags.ReplaceAllString(text, "")

	var out []Segment
	add := func(s string, rate, pitch float64) {
		if s = strings.TrimSpace(transcript.StripMarkup(s)); s != "" {
			out = append(out, Segment{Text: s, Rate: rate, Pitch: pitch})
		}
	}

	last := 0
	for _, m := range prosodyTag.FindAllStringSubmatchIndex(body, -1) {
		add(body[last:m[0]], 1, 1)
		rate, pitch := prosody(body[m[2]:m[3]])
		add(body[m[4]:m[5]], rate, pitch)
		last = m[1]
	}
	add(body[last:], 1, 1)

	if len(out) == 0 {
		if plain := transcript.StripMarkup(text); plain != "" {
			return []Segment{{Text: plain, Rate: 1, Pitch: 1}}
		}
	}
	return out
}

// prosody reads the rate and pitch attributes of a prosody tag.
func prosody(attrs string) (rate, pitch float64) {
	rate, pitch = 1, 1
	for _, m := range attribute.FindAllStringSubmatch(attrs, -1) {
		value := strings.ToLower(m[2])
		switch strings.ToLower(m[1]) {
		case "rate":
			if r, ok := rates[value]; ok {
				rate = r
			}
		case "pitch":
			if p, ok := pitches[value]; ok {
				pitch = p
			}
		}
	}
	return rate, pitch
}
