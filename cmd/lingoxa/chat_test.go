package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/lingoxa/internal/app"
	"github.com/MrWong99/lingoxa/internal/builder"
	"github.com/MrWong99/lingoxa/internal/tutor"
)

// flakyPlanner serves a fixed plan and fails the validation calls listed in
// failOn (1-based). It records a builder snapshot at every validation.
type flakyPlanner struct {
	b      *builder.Builder
	failOn map[int]bool

	mu    sync.Mutex
	calls int
	seen  []builder.Snapshot
}

func (p *flakyPlanner) Plan(context.Context, string) (tutor.Plan, error) {
	return tutor.Plan{
		Blocks: []tutor.Block{
			{Part: "subject", Question: "누가?", Example: "I"},
			{Part: "verb", Question: "무엇을?", Example: "want"},
		},
		Template:     "{subject} {verb}",
		Alternatives: []string{"I'd love one."},
	}, nil
}

func (p *flakyPlanner) ValidatePart(_ context.Context, _ string, _ tutor.Block, input string) (tutor.PartValidation, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()

	snap := p.b.Snapshot()
	p.mu.Lock()
	p.seen = append(p.seen, snap)
	p.mu.Unlock()

	if p.failOn[call] {
		return tutor.PartValidation{}, errors.New("network blip")
	}
	return tutor.PartValidation{IsValid: true, Suggestion: input, Feedback: "좋아요"}, nil
}

func newBuildChat(input string, failOn ...int) (*chat, *flakyPlanner, *bytes.Buffer) {
	p := &flakyPlanner{failOn: make(map[int]bool)}
	for _, n := range failOn {
		p.failOn[n] = true
	}
	b := builder.New(p)
	p.b = b
	var out bytes.Buffer
	c := &chat{
		out:   &out,
		in:    bufio.NewScanner(strings.NewReader(input)),
		entry: &app.Entry{Builder: b},
	}
	return c, p, &out
}

func TestChatBuild_ValidationFailureKeepsProgress(t *testing.T) {
	t.Parallel()

	// The second validation fails; the verb is entered again and then a
	// mistyped choice precedes the real one.
	c, p, out := newBuildChat("I\nneed tea\nneed tea\n7\ntwo\n1\n", 2)

	got, err := c.build(context.Background(), "차 한 잔")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got != "I need tea." {
		t.Errorf("sentence = %q, want %q", got, "I need tea.")
	}
	if !strings.Contains(out.String(), "network blip") {
		t.Errorf("failure not shown inline:\n%s", out.String())
	}
	if strings.Count(out.String(), "send which?") != 3 {
		t.Errorf("bad choices should prompt again:\n%s", out.String())
	}

	if len(p.seen) != 3 {
		t.Fatalf("validations = %d, want 3", len(p.seen))
	}
	resubmit := p.seen[2]
	if resubmit.Step != 1 || len(resubmit.Parts) != 1 || resubmit.Parts[0].Value != "I" {
		t.Errorf("resubmit saw step %d parts %+v, want step 1 with the subject kept", resubmit.Step, resubmit.Parts)
	}
	if snap := c.entry.Builder.Snapshot(); snap.State != builder.StateIdle {
		t.Errorf("state after choosing = %s, want idle", snap.State)
	}
}

func TestChatBuild_FailureThenEndOfInput(t *testing.T) {
	t.Parallel()

	c, _, _ := newBuildChat("I\nneed tea\n", 2)

	got, err := c.build(context.Background(), "차 한 잔")
	if err != nil || got != "" {
		t.Fatalf("build = %q, %v; want an abandoned flow", got, err)
	}
	if snap := c.entry.Builder.Snapshot(); snap.State != builder.StateIdle || len(snap.Parts) != 0 {
		t.Errorf("end of input should discard the flow, snapshot = %+v", snap)
	}
}

func TestChatBuild_Cancel(t *testing.T) {
	t.Parallel()

	c, p, _ := newBuildChat("I\n/cancel\n")

	got, err := c.build(context.Background(), "차 한 잔")
	if err != nil || got != "" {
		t.Fatalf("build = %q, %v; want a cancelled flow", got, err)
	}
	if p.calls != 1 {
		t.Errorf("validations = %d, want 1", p.calls)
	}
	if snap := c.entry.Builder.Snapshot(); snap.State != builder.StateIdle {
		t.Errorf("state after cancel = %s, want idle", snap.State)
	}
}
