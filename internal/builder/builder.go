// Package builder implements the step-by-step sentence builder.
//
// A learner describes what they want to say in their native language. The
// builder requests a plan of grammatical slots, asks for one slot at a time,
// validates each value and finally assembles the sentence from the plan's
// template. The flow is independent of any practice session; its result is
// plain text handed back to the caller.
package builder

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

var (
	// ErrBusy is returned while a plan or validation request is in flight.
	ErrBusy = errors.New("builder: a request is already in progress")

	// ErrWrongState is returned when an operation does not fit the current
	// state.
	ErrWrongState = errors.New("builder: operation not allowed in current state")

	// ErrStale is returned when the flow was closed while a request was in
	// flight. The result is discarded.
	ErrStale = errors.New("builder: flow was closed")
)

// State is the position of the flow.
type State string

const (
	StateIdle        State = "idle"
	StateLoadingPlan State = "loading_plan"
	StateBuilding    State = "building"
	StateValidating  State = "validating"
	StateComplete    State = "complete"
)

// Planner is the subset of [tutor.Tutor] the builder uses.
type Planner interface {
	Plan(ctx context.Context, description string) (tutor.Plan, error)
	ValidatePart(ctx context.Context, description string, block tutor.Block, input string) (tutor.PartValidation, error)
}

var _ Planner = (*tutor.Tutor)(nil)

// Part is an accepted slot value.
type Part struct {
	Part  string `json:"part"`
	Value string `json:"value"`
}

// Builder runs one sentence-building flow at a time. The zero value is not
// usable; create one with [New]. All methods are safe for concurrent use.
type Builder struct {
	planner Planner

	mu          sync.Mutex
	token       string
	state       State
	description string
	plan        tutor.Plan
	cursor      int
	values      map[string]string
	verdict     *tutor.PartValidation
	lastErr     string
}

// New returns an idle builder.
func New(planner Planner) *Builder {
	return &Builder{planner: planner, token: uuid.NewString(), state: StateIdle}
}

// Begin requests a plan for description. On failure the builder returns to
// idle with no plan retained.
func (b *Builder) Begin(ctx context.Context, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("builder: empty description: %w", ErrWrongState)
	}

	b.mu.Lock()
	switch b.state {
	case StateLoadingPlan, StateValidating:
		b.mu.Unlock()
		return ErrBusy
	case StateIdle:
	default:
		b.mu.Unlock()
		return ErrWrongState
	}
	token := b.token
	b.state = StateLoadingPlan
	b.lastErr = ""
	b.mu.Unlock()

	plan, err := b.planner.Plan(ctx, description)

	b.mu.Lock()
	defer b.mu.Unlock()
	if token != b.token {
		return ErrStale
	}
	if err != nil {
		b.resetLocked()
		b.lastErr = err.Error()
		observe.Logger(ctx).Warn("sentence plan failed", "err", err)
		return fmt.Errorf("builder: plan: %w", err)
	}
	b.state = StateBuilding
	b.description = description
	b.plan = plan
	b.cursor = 0
	b.values = make(map[string]string, len(plan.Blocks))
	return nil
}

// Submit validates text as the value of the current block. A valid value is
// stored in the validator's normalised form and the cursor advances; an
// invalid one leaves the cursor in place with the verdict available from
// [Builder.Snapshot]. The verdict is returned either way.
func (b *Builder) Submit(ctx context.Context, text string) (tutor.PartValidation, error) {
	text = strings.TrimSpace(text)

	b.mu.Lock()
	switch b.state {
	case StateLoadingPlan, StateValidating:
		b.mu.Unlock()
		return tutor.PartValidation{}, ErrBusy
	case StateBuilding:
	default:
		b.mu.Unlock()
		return tutor.PartValidation{}, ErrWrongState
	}
	if text == "" {
		b.mu.Unlock()
		return tutor.PartValidation{}, fmt.Errorf("builder: empty value: %w", ErrWrongState)
	}
	token := b.token
	block := b.plan.Blocks[b.cursor]
	description := b.description
	b.state = StateValidating
	b.lastErr = ""
	b.mu.Unlock()

	v, err := b.planner.ValidatePart(ctx, description, block, text)

	b.mu.Lock()
	defer b.mu.Unlock()
	if token != b.token {
		return tutor.PartValidation{}, ErrStale
	}
	b.state = StateBuilding
	if err != nil {
		b.lastErr = err.Error()
		observe.Logger(ctx).Warn("sentence part validation failed", "part", block.Part, "err", err)
		return tutor.PartValidation{}, fmt.Errorf("builder: validate %s: %w", block.Part, err)
	}
	b.verdict = &v
	if !v.IsValid {
		return v, nil
	}
	b.values[block.Part] = v.Suggestion
	b.cursor++
	if b.cursor >= len(b.plan.Blocks) {
		b.state = StateComplete
	}
	return v, nil
}

// Choices returns the assembled sentence followed by the plan's
// alternatives. It is only available once every block has a value.
func (b *Builder) Choices() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateComplete {
		return nil, ErrWrongState
	}
	return b.choicesLocked(), nil
}

// Choose returns the choice at index and closes the flow.
func (b *Builder) Choose(index int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateComplete {
		return "", ErrWrongState
	}
	choices := b.choicesLocked()
	if index < 0 || index >= len(choices) {
		return "", fmt.Errorf("builder: choice %d out of range [0,%d): %w", index, len(choices), ErrWrongState)
	}
	b.resetLocked()
	return choices[index], nil
}

// Close discards the flow and any pending result.
func (b *Builder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.lastErr = ""
}

// Snapshot is a point-in-time view of the flow.
type Snapshot struct {
	State        State                 `json:"state"`
	Description  string                `json:"description,omitempty"`
	Blocks       []tutor.Block         `json:"blocks,omitempty"`
	Current      *tutor.Block          `json:"current,omitempty"`
	Step         int                   `json:"step"`
	Parts        []Part                `json:"parts,omitempty"`
	Verdict      *tutor.PartValidation `json:"verdict,omitempty"`
	Error        string                `json:"error,omitempty"`
	Choices      []string              `json:"choices,omitempty"`
	Alternatives []string              `json:"alternatives,omitempty"`
}

// Snapshot returns the current state.
func (b *Builder) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		State:        b.state,
		Description:  b.description,
		Blocks:       append([]tutor.Block(nil), b.plan.Blocks...),
		Step:         b.cursor,
		Verdict:      b.verdict,
		Error:        b.lastErr,
		Alternatives: append([]string(nil), b.plan.Alternatives...),
	}
	for _, blk := range b.plan.Blocks[:min(b.cursor, len(b.plan.Blocks))] {
		snap.Parts = append(snap.Parts, Part{Part: blk.Part, Value: b.values[blk.Part]})
	}
	if (b.state == StateBuilding || b.state == StateValidating) && b.cursor < len(b.plan.Blocks) {
		blk := b.plan.Blocks[b.cursor]
		snap.Current = &blk
	}
	if b.state == StateComplete {
		snap.Choices = b.choicesLocked()
	}
	return snap
}

func (b *Builder) choicesLocked() []string {
	out := []string{Assemble(b.plan.Template, b.values)}
	return append(out, b.plan.Alternatives...)
}

// resetLocked returns to idle and invalidates in-flight requests. b.mu must
// be held.
func (b *Builder) resetLocked() {
	b.token = uuid.NewString()
	b.state = StateIdle
	b.description = ""
	b.plan = tutor.Plan{}
	b.cursor = 0
	b.values = nil
	b.verdict = nil
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Assemble substitutes values into template, collapses whitespace,
// capitalises the first letter and ends the sentence with a period unless it
// already ends in terminal punctuation. An empty result stays empty.
func Assemble(template string, values map[string]string) string {
	filled := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		return strings.TrimSpace(values[strings.TrimSpace(m[1:len(m)-1])])
	})
	s := strings.Join(strings.Fields(filled), " ")
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(r)) + s[size:]
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") {
		s += "."
	}
	return s
}
