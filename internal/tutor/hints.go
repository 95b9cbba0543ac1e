package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/MrWong99/lingoxa/internal/transcript"
)

// MaxHints caps the number of hints kept from one response.
const MaxHints = 4

type hintsResponse struct {
	Hints []string `json:"hints"`
}

// Hints suggests short phrases the learner could say next, based on the
// recent messages. Empty suggestions are dropped and at most [MaxHints] are
// returned. The result may be empty.
func (t *Tutor) Hints(ctx context.Context, p Persona, recent []transcript.Message) ([]string, error) {
	userRole, aiRole := p.Scenario.Roles(p.Reversed)
	prompt := fmt.Sprintf(hintsPromptTemplate,
		p.Scenario.Setting, userRole, aiRole, p.Scenario.Task, transcript.ForReport(recent))

	var r hintsResponse
	if err := t.completeJSON(ctx, OpHints, prompt, &r); err != nil {
		return nil, err
	}
	hints := lo.Uniq(lo.FilterMap(r.Hints, func(h string, _ int) (string, bool) {
		h = strings.TrimSpace(h)
		return h, h != ""
	}))
	if len(hints) > MaxHints {
		hints = hints[:MaxHints]
	}
	return hints, nil
}
