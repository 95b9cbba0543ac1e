package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/MrWong99/lingoxa/internal/transcript"
)

// maxReportItems caps the corrections and vocabulary entries of a report.
const maxReportItems = 3

// KeyCorrection is one of the most important corrections of a session.
type KeyCorrection struct {
	Original    string `json:"original"`
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation"`
}

// Vocabulary is a word or phrase the learner could pick up.
type Vocabulary struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

// Report is the learning report that ends a session.
type Report struct {
	FluencyScore     int             `json:"fluency_score"`
	PositiveFeedback string          `json:"positive_feedback"`
	KeyCorrections   []KeyCorrection `json:"key_corrections"`
	NewVocabulary    []Vocabulary    `json:"new_vocabulary"`
	NextSteps        string          `json:"next_steps"`
}

type reportResponse struct {
	FluencyScore     *int            `json:"fluency_score"`
	PositiveFeedback string          `json:"positive_feedback"`
	KeyCorrections   []KeyCorrection `json:"key_corrections"`
	NewVocabulary    []Vocabulary    `json:"new_vocabulary"`
	NextSteps        string          `json:"next_steps"`
}

// Report scores the full conversation.
func (t *Tutor) Report(ctx context.Context, msgs []transcript.Message) (Report, error) {
	prompt := fmt.Sprintf(reportPromptTemplate, t.nativeLanguage, transcript.ForReport(msgs))

	var r reportResponse
	if err := t.completeJSON(ctx, OpReport, prompt, &r); err != nil {
		return Report{}, err
	}
	switch {
	case r.FluencyScore == nil:
		return Report{}, malformed(OpReport, "missing fluency_score")
	case *r.FluencyScore < 0 || *r.FluencyScore > 100:
		return Report{}, malformed(OpReport, fmt.Sprintf("fluency_score %d out of range", *r.FluencyScore))
	case strings.TrimSpace(r.PositiveFeedback) == "":
		return Report{}, malformed(OpReport, "missing positive_feedback")
	}

	corrections := lo.Filter(r.KeyCorrections, func(c KeyCorrection, _ int) bool {
		return strings.TrimSpace(c.Suggestion) != ""
	})
	vocabulary := lo.Filter(r.NewVocabulary, func(v Vocabulary, _ int) bool {
		return strings.TrimSpace(v.Word) != ""
	})
	return Report{
		FluencyScore:     *r.FluencyScore,
		PositiveFeedback: strings.TrimSpace(r.PositiveFeedback),
		KeyCorrections:   corrections[:min(len(corrections), maxReportItems)],
		NewVocabulary:    vocabulary[:min(len(vocabulary), maxReportItems)],
		NextSteps:        strings.TrimSpace(r.NextSteps),
	}, nil
}
