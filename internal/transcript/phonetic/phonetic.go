// Package phonetic snaps recognised speech onto the vocabulary of the
// scenario being practised (its key phrases and the AI character's name)
// using Double Metaphone encoding combined with Jaro-Winkler similarity.
//
// Matching proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word of the input and of every vocabulary term. A term whose codes
//     overlap the input's becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the term with the
//     highest case-insensitive similarity wins, provided it reaches the
//     phonetic threshold. Without a phonetic candidate, pure Jaro-Winkler
//     similarity is tested against the higher fuzzy threshold.
//
// Learners mishear and misspell names ("sara" for "Sarah") and longer words
// from the key phrases ("reservasion"); recognisers do the same. Snapping
// only ever rewrites towards a known term and never touches short function
// words, so a learner's grammar mistakes survive for the correction check.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// minTermLetters is the shortest key-phrase word worth snapping onto.
	minTermLetters = 6
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is a phonetic vocabulary matcher. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Substitution records one rewrite made by [Matcher.Snap].
type Substitution struct {
	Original   string
	Corrected  string
	Confidence float64
}

// Match finds the term most phonetically similar to word. word may be a
// single word or a space-separated phrase. When matched is false, corrected
// equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	if len(terms) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}
	wordTokens := normalizeTokens(word)
	best := m.rank(wordTokens, prepare(terms), bestJWScore)
	if best.term == nil {
		return word, 0, false
	}
	return best.term.text, best.score, true
}

// Snap rewrites every stretch of text that sounds like a vocabulary term into
// that term's canonical spelling. Multi-word terms take precedence over
// single words. Punctuation trailing the rewritten stretch is preserved.
func (m *Matcher) Snap(text string, vocabulary []string) (string, []Substitution) {
	tokens := strings.Fields(text)
	terms := prepare(vocabulary)
	if len(tokens) == 0 || len(terms) == 0 {
		return text, nil
	}
	maxWords := 0
	for _, t := range terms {
		maxWords = max(maxWords, len(t.tokens))
	}

	var (
		out  []string
		subs []Substitution
	)
	for i := 0; i < len(tokens); {
		consumed := 1
		replacement := tokens[i]
		for n := min(maxWords, len(tokens)-i); n >= 1; n-- {
			window := tokens[i : i+n]
			windowTokens := normalizeTokens(strings.Join(window, " "))
			candidates := make([]*term, 0, len(terms))
			for _, t := range terms {
				if comparable(windowTokens, t) {
					candidates = append(candidates, t)
				}
			}
			best := m.rank(windowTokens, candidates, wholeJWScore)
			if best.term == nil {
				continue
			}
			original := strings.Join(window, " ")
			consumed, replacement = n, original
			if strings.Join(windowTokens, " ") != strings.Join(best.term.tokens, " ") {
				replacement = best.term.text + trailingPunct(window[n-1])
				subs = append(subs, Substitution{Original: original, Corrected: best.term.text, Confidence: best.score})
			}
			break
		}
		out = append(out, replacement)
		i += consumed
	}
	if len(subs) == 0 {
		return text, nil
	}
	return strings.Join(out, " "), subs
}

// Vocabulary builds the snapping vocabulary for a scenario: the AI display
// name plus every distinct key-phrase word of at least six letters.
func Vocabulary(aiName string, phrases []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok || s == "" {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	if name := strings.Join(strings.FieldsFunc(aiName, isSeparator), " "); name != "" {
		add(name)
	}
	for _, p := range phrases {
		for _, w := range strings.FieldsFunc(p, isSeparator) {
			if letterCount(w) >= minTermLetters {
				add(w)
			}
		}
	}
	return out
}

type term struct {
	text   string
	tokens []string
	concat string
	codes  map[string]struct{}
}

func prepare(vocabulary []string) []*term {
	out := make([]*term, 0, len(vocabulary))
	for _, v := range vocabulary {
		tokens := normalizeTokens(v)
		if len(tokens) == 0 {
			continue
		}
		out = append(out, &term{
			text:   strings.TrimSpace(v),
			tokens: tokens,
			concat: strings.Join(tokens, ""),
			codes:  codesForTokens(tokens),
		})
	}
	return out
}

type candidate struct {
	term     *term
	score    float64
	phonetic bool
}

type scoreFunc func(inputTokens, termTokens []string) float64

// rank applies the two-stage selection over terms.
func (m *Matcher) rank(inputTokens []string, terms []*term, score scoreFunc) candidate {
	inputCodes := codesForTokens(inputTokens)
	var best candidate
	for _, t := range terms {
		s := score(inputTokens, t.tokens)
		if codesOverlap(inputCodes, t.codes) {
			if s >= m.phoneticThreshold && (!best.phonetic || s > best.score) {
				best = candidate{term: t, score: s, phonetic: true}
			}
		} else if !best.phonetic && s >= m.fuzzyThreshold && s > best.score {
			best = candidate{term: t, score: s}
		}
	}
	return best
}

// comparable reports whether a window could plausibly be a spoken rendition
// of t: the same number of words and a similar number of letters.
func comparable(window []string, t *term) bool {
	if len(window) == 0 || len(window) != len(t.tokens) {
		return false
	}
	a, b := len(strings.Join(window, "")), len(t.concat)
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff*4 <= max(a, b)
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest of the full-string, space-stripped and best
// pairwise token similarities.
func bestJWScore(inputTokens, termTokens []string) float64 {
	score := wholeJWScore(inputTokens, termTokens)
	for _, it := range inputTokens {
		for _, tt := range termTokens {
			score = max(score, matchr.JaroWinkler(it, tt, false))
		}
	}
	return score
}

// wholeJWScore compares the input with the term as a whole, never word by
// word, so a window sharing one common word with a long term does not win.
func wholeJWScore(inputTokens, termTokens []string) float64 {
	score := matchr.JaroWinkler(strings.Join(inputTokens, " "), strings.Join(termTokens, " "), false)
	if len(inputTokens) > 1 || len(termTokens) > 1 {
		score = max(score, matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(termTokens, ""), false))
	}
	return score
}

func normalizeTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), isSeparator)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func trailingPunct(tok string) string {
	end := len(tok)
	for end > 0 && strings.ContainsRune(".,!?;:", rune(tok[end-1])) {
		end--
	}
	return tok[end:]
}
