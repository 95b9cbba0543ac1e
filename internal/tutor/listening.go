package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/lingoxa/internal/transcript"
	"github.com/MrWong99/lingoxa/pkg/provider/llm"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// Story is the narrative of a listening exercise and its first question.
type Story struct {
	Text          string
	FirstQuestion string
}

// Evaluation is the verdict on one listening answer.
type Evaluation struct {
	IsCorrect    bool
	Feedback     string
	NextQuestion string
	IsFinished   bool
}

// Story asks the storyteller for the narrative and then for the first
// comprehension question. Both requests must succeed.
func (t *Tutor) Story(ctx context.Context, p Persona, history []transcript.Message) (Story, error) {
	system := SystemInstruction(p)
	msgs := append(t.history(history), types.Message{Role: "user", Content: storyCue})

	story, err := t.complete(ctx, OpStory, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     msgs,
		Temperature:  defaultTemperature,
	})
	if err != nil {
		return Story{}, err
	}

	msgs = append(msgs,
		types.Message{Role: "assistant", Content: story},
		types.Message{Role: "user", Content: questionCue},
	)
	question, err := t.complete(ctx, OpStory, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     msgs,
		Temperature:  defaultTemperature,
	})
	if err != nil {
		return Story{}, err
	}
	return Story{Text: story, FirstQuestion: question}, nil
}

type evaluationResponse struct {
	IsCorrect    *bool  `json:"is_correct"`
	Feedback     string `json:"feedback"`
	NextQuestion string `json:"next_question"`
	IsFinished   *bool  `json:"is_finished"`
}

// Evaluate judges answer against the stored story and the question that was
// asked.
func (t *Tutor) Evaluate(ctx context.Context, story, question, answer string) (Evaluation, error) {
	prompt := fmt.Sprintf(listeningEvaluationTemplate,
		story, transcript.StripMarkup(question), answer, t.nativeLanguage)

	var r evaluationResponse
	if err := t.completeJSON(ctx, OpEvaluation, prompt, &r); err != nil {
		return Evaluation{}, err
	}
	switch {
	case r.IsCorrect == nil || r.IsFinished == nil:
		return Evaluation{}, malformed(OpEvaluation, "missing is_correct or is_finished")
	case strings.TrimSpace(r.Feedback) == "" || strings.TrimSpace(r.NextQuestion) == "":
		return Evaluation{}, malformed(OpEvaluation, "missing feedback or next_question")
	}
	return Evaluation{
		IsCorrect:    *r.IsCorrect,
		Feedback:     strings.TrimSpace(r.Feedback),
		NextQuestion: strings.TrimSpace(r.NextQuestion),
		IsFinished:   *r.IsFinished,
	}, nil
}
