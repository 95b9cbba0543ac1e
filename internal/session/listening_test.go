package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/lingoxa/internal/session"
)

func TestListening_FullQuiz(t *testing.T) {
	t.Parallel()

	s, p := start(t, park())

	if _, err := s.Submit(context.Background(), "yes"); !errors.Is(err, session.ErrWrongPhase) {
		t.Fatalf("answer before the story err = %v, want ErrWrongPhase", err)
	}

	p.Enqueue("Mia fed the ducks by the pond.", "Who fed the ducks?")
	msgs, err := s.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != session.StoryPrefix+"Mia fed the ducks by the pond." || msgs[1].Text != "Who fed the ducks?" {
		t.Fatalf("story messages = %+v", msgs)
	}
	if lp := s.Snapshot().Listening; lp != session.ListeningWaiting {
		t.Fatalf("listening phase = %q, want waiting_for_answer", lp)
	}

	p.Enqueue(`{"is_correct": true, "feedback": "That's right!", "next_question": "Where were the ducks?", "is_finished": false}`)
	msgs, err = s.Submit(context.Background(), "Mia")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(msgs) != 3 || msgs[1].Text != "That's right!" || msgs[2].Text != "Where were the ducks?" {
		t.Fatalf("evaluation messages = %+v", msgs)
	}
	eval := p.Calls()[2].Req.Messages[0].Content
	if !strings.Contains(eval, `The story was: "Mia fed the ducks by the pond."`) ||
		!strings.Contains(eval, `Your last question was: "Who fed the ducks?"`) {
		t.Errorf("evaluation prompt lacks story or question:\n%s", eval)
	}
	if lp := s.Snapshot().Listening; lp != session.ListeningWaiting {
		t.Fatalf("listening phase = %q, want waiting_for_answer", lp)
	}

	p.Enqueue(`{"is_correct": true, "feedback": "Correct!", "next_question": "Great job! You've completed the listening practice.", "is_finished": true}`)
	if _, err := s.Submit(context.Background(), "By the pond"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := s.Snapshot()
	if snap.Listening != session.ListeningFinished {
		t.Fatalf("listening phase = %q, want finished", snap.Listening)
	}
	if r := roles(snap.Messages); r != "aaauaauaa" {
		t.Errorf("roles = %q", r)
	}
	if _, err := s.Submit(context.Background(), "more"); !errors.Is(err, session.ErrWrongPhase) {
		t.Errorf("answer after the quiz err = %v, want ErrWrongPhase", err)
	}

	p.Enqueue(`{"fluency_score": 80, "positive_feedback": "잘 들었어요"}`)
	if _, err := s.Finish(context.Background()); err != nil {
		t.Fatalf("Finish: %v", err)
	}
}

func TestListening_StoryFailureKeepsReady(t *testing.T) {
	t.Parallel()

	s, p := start(t, park())
	p.Enqueue("A story.")
	p.EnqueueErr(errors.New("timeout"))

	if _, err := s.StartListening(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	snap := s.Snapshot()
	if snap.Listening != session.ListeningReady || snap.Busy {
		t.Errorf("snapshot = %+v, want ready and idle", snap)
	}
	if len(snap.Messages) != 1 {
		t.Errorf("failed start appended %d messages", len(snap.Messages)-1)
	}

	p.Enqueue("Another story.", "What happened?")
	if _, err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("retry StartListening: %v", err)
	}
}

func TestListening_EvaluationFailureWaitsAgain(t *testing.T) {
	t.Parallel()

	s, p := start(t, park())
	p.Enqueue("A story.", "A question?")
	if _, err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}

	p.Enqueue(`{"is_correct": true}`)
	msgs, err := s.Submit(context.Background(), "An answer")
	if err == nil {
		t.Fatal("expected an error for a malformed evaluation")
	}
	if len(msgs) != 1 {
		t.Errorf("messages = %+v, want only the kept answer", msgs)
	}
	snap := s.Snapshot()
	if snap.Listening != session.ListeningWaiting || len(snap.Messages) != 4 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestListening_NotForConversation(t *testing.T) {
	t.Parallel()

	s, _ := start(t, cafe())
	if _, err := s.StartListening(context.Background()); !errors.Is(err, session.ErrWrongPhase) {
		t.Fatalf("err = %v, want ErrWrongPhase", err)
	}
}
