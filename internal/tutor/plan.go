package tutor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Block is one grammatical slot of a sentence plan.
type Block struct {
	Part     string `json:"part"`
	Question string `json:"question"`
	Example  string `json:"example"`
}

// Plan decomposes an intended meaning into ordered slots. Template names the
// slots with {part} placeholders.
type Plan struct {
	Blocks       []Block  `json:"blocks"`
	Template     string   `json:"final_sentence_structure"`
	Alternatives []string `json:"alternative_sentences"`
}

// PartValidation is the verdict on one slot value.
type PartValidation struct {
	IsValid bool `json:"is_valid"`

	// Suggestion is the value to store when valid (possibly normalised) or
	// the corrected phrase when not.
	Suggestion string `json:"suggestion"`
	Feedback   string `json:"feedback"`
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Placeholders returns the part names referenced by template, in order.
func Placeholders(template string) []string {
	return lo.Map(placeholder.FindAllStringSubmatch(template, -1), func(m []string, _ int) string {
		return strings.TrimSpace(m[1])
	})
}

type planResponse struct {
	Blocks                 []Block  `json:"blocks"`
	FinalSentenceStructure string   `json:"finalSentenceStructure"`
	AlternativeSentences   []string `json:"alternativeSentences"`
}

// Plan requests a sentence plan for a description written in the native
// language. Every placeholder of the template must name a block.
func (t *Tutor) Plan(ctx context.Context, description string) (Plan, error) {
	prompt := fmt.Sprintf(planPromptTemplate, t.nativeLanguage, description)

	var r planResponse
	if err := t.completeJSON(ctx, OpPlan, prompt, &r); err != nil {
		return Plan{}, err
	}
	if len(r.Blocks) == 0 || strings.TrimSpace(r.FinalSentenceStructure) == "" {
		return Plan{}, malformed(OpPlan, "missing blocks or finalSentenceStructure")
	}

	parts := make(map[string]struct{}, len(r.Blocks))
	blocks := make([]Block, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		b.Part = strings.TrimSpace(b.Part)
		if b.Part == "" || strings.TrimSpace(b.Question) == "" {
			return Plan{}, malformed(OpPlan, "block without part or question")
		}
		if _, dup := parts[b.Part]; dup {
			return Plan{}, malformed(OpPlan, fmt.Sprintf("duplicate part %q", b.Part))
		}
		parts[b.Part] = struct{}{}
		blocks = append(blocks, b)
	}
	for _, name := range Placeholders(r.FinalSentenceStructure) {
		if _, ok := parts[name]; !ok {
			return Plan{}, malformed(OpPlan, fmt.Sprintf("placeholder {%s} has no block", name))
		}
	}

	return Plan{
		Blocks:   blocks,
		Template: r.FinalSentenceStructure,
		Alternatives: lo.FilterMap(r.AlternativeSentences, func(s string, _ int) (string, bool) {
			s = strings.TrimSpace(s)
			return s, s != ""
		}),
	}, nil
}

type partValidationResponse struct {
	IsValid    *bool  `json:"is_valid"`
	Suggestion string `json:"suggestion"`
	Feedback   string `json:"feedback"`
}

// ValidatePart judges input as the value for block. A valid verdict without
// a suggestion keeps the learner's input.
func (t *Tutor) ValidatePart(ctx context.Context, description string, block Block, input string) (PartValidation, error) {
	prompt := fmt.Sprintf(validatePartTemplate, t.nativeLanguage, description, block.Part, block.Question, input)

	var r partValidationResponse
	if err := t.completeJSON(ctx, OpValidatePart, prompt, &r); err != nil {
		return PartValidation{}, err
	}
	if r.IsValid == nil {
		return PartValidation{}, malformed(OpValidatePart, "missing is_valid")
	}
	v := PartValidation{
		IsValid:    *r.IsValid,
		Suggestion: strings.TrimSpace(r.Suggestion),
		Feedback:   strings.TrimSpace(r.Feedback),
	}
	if v.IsValid && v.Suggestion == "" {
		v.Suggestion = strings.TrimSpace(input)
	}
	return v, nil
}
