// Package tutor is the typed request/response boundary to the generation
// service.
//
// Every request a practice session makes (opening lines, replies,
// corrections, hints, listening quizzes, reports, sentence plans, scenario
// synthesis) has one method here. Structured requests ask the model for a
// single JSON object, decode it into a typed result and validate its shape;
// anything that does not fit is rejected with [ErrMalformedResponse] instead
// of being passed on.
//
// A Tutor is stateless apart from its configuration and is safe for
// concurrent use.
package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/scenario"
	"github.com/MrWong99/lingoxa/internal/transcript"
	"github.com/MrWong99/lingoxa/pkg/provider/llm"
	"github.com/MrWong99/lingoxa/pkg/types"
)

// ErrMalformedResponse is returned when the model's output does not match the
// shape the request expects.
var ErrMalformedResponse = errors.New("tutor: malformed response")

// Operation names used for metrics, spans and error prefixes.
const (
	OpOpening      = "opening"
	OpReply        = "reply"
	OpCorrection   = "correction"
	OpHints        = "hints"
	OpStory        = "listening_story"
	OpEvaluation   = "listening_evaluation"
	OpSynthesis    = "scenario_synthesis"
	OpReport       = "report"
	OpPlan         = "sentence_plan"
	OpValidatePart = "sentence_part_validation"
)

const (
	defaultNativeLanguage  = "Korean"
	defaultContextMessages = 20
	defaultTemperature     = 0.8
	structuredTemperature  = 0.2
)

// Persona binds a scenario to the role assignment and optional travel
// destination of one session.
type Persona struct {
	Scenario    scenario.Scenario
	Reversed    bool
	Destination string
}

// Option is a functional option for [New].
type Option func(*Tutor)

// WithNativeLanguage sets the learner's native language. Explanations are
// requested in it and input written in its script takes the translation
// path. Default: Korean.
func WithNativeLanguage(lang string) Option {
	return func(t *Tutor) {
		if lang = strings.TrimSpace(lang); lang != "" {
			t.nativeLanguage = lang
		}
	}
}

// WithContextMessages caps the transcript turns sent with replies and
// listening requests. Default: 20.
func WithContextMessages(n int) Option {
	return func(t *Tutor) {
		if n > 0 {
			t.contextMessages = n
		}
	}
}

// WithRequestTimeout bounds every generation request. Zero disables the
// bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(t *Tutor) {
		t.timeout = d
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Tutor) {
		t.metrics = m
	}
}

// Tutor issues generation requests through an [llm.Provider].
type Tutor struct {
	llm             llm.Provider
	nativeLanguage  string
	contextMessages int
	timeout         time.Duration
	metrics         *observe.Metrics
}

// New returns a Tutor backed by provider.
func New(provider llm.Provider, opts ...Option) *Tutor {
	t := &Tutor{
		llm:             provider,
		nativeLanguage:  defaultNativeLanguage,
		contextMessages: defaultContextMessages,
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// NativeLanguage returns the configured native language.
func (t *Tutor) NativeLanguage() string { return t.nativeLanguage }

// complete sends req and returns the trimmed response text. It owns the
// span, the timeout and the metrics for one request.
func (t *Tutor) complete(ctx context.Context, op string, req llm.CompletionRequest) (_ string, err error) {
	ctx, span := observe.StartSpan(ctx, "tutor."+op)
	defer span.End()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		t.metrics.RecordGeneration(ctx, op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observe.Logger(ctx).Warn("generation request failed", "operation", op, "err", err)
		}
	}()

	resp, err := t.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("tutor: %s: %w", op, err)
	}
	if resp == nil {
		return "", fmt.Errorf("tutor: %s: empty response: %w", op, ErrMalformedResponse)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("tutor: %s: empty content: %w", op, ErrMalformedResponse)
	}
	return text, nil
}

// completeJSON sends a single-prompt structured request and decodes the
// model's JSON object into out.
func (t *Tutor) completeJSON(ctx context.Context, op, prompt string, out any) error {
	text, err := t.complete(ctx, op, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: structuredTemperature,
		Format:      llm.FormatJSON,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		return fmt.Errorf("tutor: %s: %w: %v", op, ErrMalformedResponse, err)
	}
	return nil
}

// malformed wraps ErrMalformedResponse with the operation and a reason.
func malformed(op, reason string) error {
	return fmt.Errorf("tutor: %s: %w: %s", op, ErrMalformedResponse, reason)
}

// extractJSON strips markdown fences and any prose around the outermost
// JSON object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
			s = s[i : j+1]
		}
	}
	return s
}

// history converts transcript messages to chat turns, keeping the last
// contextMessages of them.
func (t *Tutor) history(msgs []transcript.Message) []types.Message {
	if len(msgs) > t.contextMessages {
		msgs = msgs[len(msgs)-t.contextMessages:]
	}
	return lo.Map(msgs, func(m transcript.Message, _ int) types.Message {
		return types.Message{
			Role:    lo.Ternary(m.Role == transcript.RoleUser, "user", "assistant"),
			Content: m.Text,
		}
	})
}
